package capsule

import (
	"time"
)

// Normalize converts an arbitrary, untrusted evidence payload into a
// bounded Capsule. It never fails: every field access falls back to a
// zero value on missing or wrong-typed input, strings are cut to their
// bound (no ellipsis), and collections keep the most recent entries.
func Normalize(raw map[string]any, id string, receivedAt time.Time) Capsule {
	ctx := asMap(raw["context"])

	c := Capsule{
		ID:           id,
		ReceivedAt:   receivedAt,
		Instructions: truncate(asString(raw["instructions"]), MaxInstructionsChars),
		Context: Context{
			URL:       truncate(asString(ctx["url"]), MaxURLChars),
			Title:     truncate(asString(ctx["title"]), MaxTitleChars),
			Selection: truncate(asString(ctx["selection"]), MaxSelectionChars),
			DOM:       truncate(asString(ctx["dom"]), MaxDOMChars),
			Actions:   normalizeActions(ctx["actions"]),
			Signals:   normalizeSignals(asMap(ctx["signals"])),
		},
	}
	return c
}

func normalizeActions(v any) []Action {
	items := asSlice(v)
	items = tail(items, MaxActions)

	actions := make([]Action, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		actions = append(actions, Action{
			Type:      truncate(asString(m["type"]), 64),
			Target:    truncate(asString(m["target"]), MaxActionTargetChars),
			Timestamp: asInt64(m["timestamp"]),
		})
	}
	return actions
}

func normalizeSignals(m map[string]any) Signals {
	return Signals{
		LastError:              normalizeSignal(m["lastError"]),
		LastUnhandledRejection: normalizeSignal(m["lastUnhandledRejection"]),
		LastConsoleError:       normalizeSignal(m["lastConsoleError"]),
		FailedFetches:          normalizeFailedFetches(m["failedFetches"]),
	}
}

func normalizeSignal(v any) *Signal {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}

	s := &Signal{
		Kind:      truncate(asString(m["kind"]), 64),
		Message:   truncate(asString(m["message"]), MaxSignalMsgChars),
		Stack:     truncate(asString(m["stack"]), MaxSignalStackChars),
		Filename:  truncate(asString(m["filename"]), MaxURLChars),
		Lineno:    asInt64(m["lineno"]),
		Colno:     asInt64(m["colno"]),
		Timestamp: asInt64(m["timestamp"]),
	}

	for _, arg := range tail(asSlice(m["argsPreview"]), MaxArgsPreview) {
		s.ArgsPreview = append(s.ArgsPreview, truncate(asString(arg), MaxArgPreviewChars))
	}
	return s
}

func normalizeFailedFetches(v any) []FailedFetch {
	items := tail(asSlice(v), MaxFailedFetches)

	fetches := make([]FailedFetch, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		f := FailedFetch{
			Kind:       truncate(asString(m["kind"]), 64),
			URL:        truncate(asString(m["url"]), MaxURLChars),
			Method:     truncate(asString(m["method"]), 16),
			StatusText: truncate(asString(m["statusText"]), 200),
			DurationMS: asInt64(m["durationMs"]),
			Error:      truncate(asString(m["error"]), MaxSignalMsgChars),
			Timestamp:  asInt64(m["timestamp"]),
		}
		if status, ok := asNumber(m["status"]); ok {
			code := int64(status)
			f.Status = &code
		}
		fetches = append(fetches, f)
	}
	return fetches
}

// Decode-with-default helpers. All bounds and defaults for untrusted
// payloads live in this file so they stay visible in one place.

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// asNumber handles the types encoding/json may produce for a number.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt64(v any) int64 {
	n, ok := asNumber(v)
	if !ok {
		return 0
	}
	return int64(n)
}

// truncate cuts s to at most max runes. No ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// tail keeps the most recent n elements (oldest discarded first).
func tail(items []any, n int) []any {
	if len(items) > n {
		return items[len(items)-n:]
	}
	return items
}
