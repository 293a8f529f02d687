package relay

import "encoding/json"

// Inbound message types.
const (
	TypeAuth            = "auth"
	TypeCaptureRequest  = "capture_request"
	TypeDiagnoseRequest = "diagnose_request"
	TypeFixRequest      = "fix_request" // alias of diagnose_request
)

// Outbound message types.
const (
	TypeStatus       = "status"
	TypeError        = "error"
	TypeCapsuleSaved = "capsule_saved"
	TypeDiagnosis    = "diagnosis"
)

// Acknowledgement payloads.
const (
	MsgConnected    = "CORTEX_CONNECTED"
	MsgDisconnected = "CORTEX_DISCONNECTED"
	MsgInvalidAuth  = "INVALID_AUTH"
	MsgSaveFailed   = "CAPSULE_SAVE_FAILED"
)

// Message is one relay frame in either direction. Type discriminates;
// fields not used by a given type stay empty. Payloads that do not
// decode into this shape, or that carry no recognized type, are
// discarded at the boundary.
type Message struct {
	Type string `json:"type"`

	// auth
	Code string `json:"code,omitempty"`

	// capture/diagnose/fix requests
	Instructions string         `json:"instructions,omitempty"`
	Context      map[string]any `json:"context,omitempty"`

	// acknowledgements
	Msg   string `json:"msg,omitempty"`
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Model string `json:"model,omitempty"`
}

// ParseFrame decodes an inbound relay frame into its type and the loose
// payload map. The final return is false for frames that are not
// parseable JSON objects or carry no type string; such frames are
// discarded without acknowledgement. The payload stays loosely typed on
// purpose: field-level validation happens in the normalizer, which
// defaults rather than rejects.
func ParseFrame(data []byte) (string, map[string]any, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, false
	}
	msgType, ok := raw["type"].(string)
	if !ok || msgType == "" {
		return "", nil, false
	}
	return msgType, raw, true
}

// IsHighValue reports whether a message type is eligible for bounded
// buffering while the bridge is disconnected or unauthenticated.
func IsHighValue(msgType string) bool {
	switch msgType {
	case TypeCaptureRequest, TypeDiagnoseRequest, TypeFixRequest:
		return true
	}
	return false
}

// WantsDiagnosis reports whether a request type asks the daemon for a
// diagnosis in addition to persistence.
func WantsDiagnosis(msgType string) bool {
	return msgType == TypeDiagnoseRequest || msgType == TypeFixRequest
}

func boolPtr(b bool) *bool {
	return &b
}
