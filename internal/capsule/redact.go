package capsule

import "regexp"

// Redaction is regex-based and best-effort. It reduces accidental
// leakage in text sent to the external diagnosis service; it is not a
// security boundary and does not guarantee removal of all secrets.
// Capsules are persisted verbatim; only outbound diagnosis text passes
// through Redact.

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// Three dot-separated base64url segments beginning eyJ.
	jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

	// Common API key prefixes.
	apiKeyPattern = regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{10,}|pk_(?:live|test)_[A-Za-z0-9]{10,}|ghp_[A-Za-z0-9]{20,}|xox[a-z]-[A-Za-z0-9-]{10,}|AKIA[0-9A-Z]{16})\b`)

	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/-]+=*`)
)

// Redact scrubs known secret-shaped substrings from free text, in
// order: emails, JWTs, API keys, bearer tokens.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, "[REDACTED_EMAIL]")
	text = jwtPattern.ReplaceAllString(text, "[REDACTED_JWT]")
	text = apiKeyPattern.ReplaceAllString(text, "[REDACTED_KEY]")
	text = bearerPattern.ReplaceAllString(text, "Bearer [REDACTED]")
	return text
}
