package capsule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return m
}

func TestNormalizeEmptyPayload(t *testing.T) {
	now := time.Now()
	c := Normalize(map[string]any{}, "01TEST", now)

	if c.ID != "01TEST" {
		t.Errorf("ID = %q, want 01TEST", c.ID)
	}
	if !c.ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", c.ReceivedAt, now)
	}
	if c.Instructions != "" || c.Context.URL != "" {
		t.Error("empty payload should produce zero-valued fields")
	}
	if c.Context.Signals.LastError != nil {
		t.Error("LastError should be nil when absent")
	}
}

func TestNormalizeNilMapsAndWrongTypes(t *testing.T) {
	raw := decodeJSON(t, `{
		"instructions": 42,
		"context": {
			"url": ["not", "a", "string"],
			"actions": "nope",
			"signals": {"lastError": "nope", "failedFetches": {"also": "nope"}}
		}
	}`)

	c := Normalize(raw, "01TEST", time.Now())
	if c.Instructions != "" {
		t.Errorf("wrong-typed instructions should default to empty, got %q", c.Instructions)
	}
	if len(c.Context.Actions) != 0 {
		t.Errorf("wrong-typed actions should default to empty, got %d", len(c.Context.Actions))
	}
	if c.Context.Signals.LastError != nil {
		t.Error("wrong-typed lastError should be nil")
	}
	if len(c.Context.Signals.FailedFetches) != 0 {
		t.Error("wrong-typed failedFetches should be empty")
	}
}

func TestNormalizeBounds(t *testing.T) {
	raw := map[string]any{
		"instructions": strings.Repeat("i", MaxInstructionsChars+500),
		"context": map[string]any{
			"url":       strings.Repeat("u", MaxURLChars+1),
			"title":     strings.Repeat("t", MaxTitleChars+1),
			"selection": strings.Repeat("s", MaxSelectionChars+1),
			"dom":       strings.Repeat("d", MaxDOMChars+1),
		},
	}

	c := Normalize(raw, "01TEST", time.Now())

	checks := []struct {
		name  string
		value string
		max   int
	}{
		{"instructions", c.Instructions, MaxInstructionsChars},
		{"url", c.Context.URL, MaxURLChars},
		{"title", c.Context.Title, MaxTitleChars},
		{"selection", c.Context.Selection, MaxSelectionChars},
		{"dom", c.Context.DOM, MaxDOMChars},
	}
	for _, check := range checks {
		if got := len([]rune(check.value)); got != check.max {
			t.Errorf("%s truncated to %d runes, want exactly %d", check.name, got, check.max)
		}
		if strings.HasSuffix(check.value, "...") {
			t.Errorf("%s should be cut without ellipsis", check.name)
		}
	}
}

func TestNormalizeTruncatesRunesNotBytes(t *testing.T) {
	raw := map[string]any{
		"context": map[string]any{
			"selection": strings.Repeat("é", MaxSelectionChars+10),
		},
	}
	c := Normalize(raw, "01TEST", time.Now())
	if got := len([]rune(c.Context.Selection)); got != MaxSelectionChars {
		t.Errorf("selection = %d runes, want %d", got, MaxSelectionChars)
	}
}

func TestNormalizeActionsTailKeep(t *testing.T) {
	actions := make([]any, 0, MaxActions+20)
	for i := 0; i < MaxActions+20; i++ {
		actions = append(actions, map[string]any{
			"type":      "click",
			"target":    "BUTTON",
			"timestamp": float64(i),
		})
	}
	raw := map[string]any{"context": map[string]any{"actions": actions}}

	c := Normalize(raw, "01TEST", time.Now())
	if len(c.Context.Actions) != MaxActions {
		t.Fatalf("actions = %d, want %d", len(c.Context.Actions), MaxActions)
	}
	// Most recent kept: the first surviving action is the 21st submitted.
	if c.Context.Actions[0].Timestamp != 20 {
		t.Errorf("first kept action timestamp = %d, want 20", c.Context.Actions[0].Timestamp)
	}
	if c.Context.Actions[MaxActions-1].Timestamp != int64(MaxActions+19) {
		t.Errorf("last kept action timestamp = %d, want %d",
			c.Context.Actions[MaxActions-1].Timestamp, MaxActions+19)
	}
}

func TestNormalizeFailedFetchesTailKeep(t *testing.T) {
	fetches := make([]any, 0, MaxFailedFetches+5)
	for i := 0; i < MaxFailedFetches+5; i++ {
		fetches = append(fetches, map[string]any{
			"url":       "https://api.example.com/v1/users",
			"method":    "GET",
			"status":    float64(500),
			"timestamp": float64(i),
		})
	}
	raw := map[string]any{"context": map[string]any{
		"signals": map[string]any{"failedFetches": fetches},
	}}

	c := Normalize(raw, "01TEST", time.Now())
	got := c.Context.Signals.FailedFetches
	if len(got) != MaxFailedFetches {
		t.Fatalf("failedFetches = %d, want %d", len(got), MaxFailedFetches)
	}
	if got[0].Timestamp != 5 {
		t.Errorf("first kept fetch timestamp = %d, want 5", got[0].Timestamp)
	}
	if got[0].Status == nil || *got[0].Status != 500 {
		t.Errorf("status not decoded: %v", got[0].Status)
	}
}

func TestNormalizeFetchWithoutStatus(t *testing.T) {
	raw := decodeJSON(t, `{"context": {"signals": {"failedFetches": [
		{"url": "https://x.test/a", "method": "POST", "status": null, "error": "TypeError: Failed to fetch"}
	]}}}`)

	c := Normalize(raw, "01TEST", time.Now())
	fetches := c.Context.Signals.FailedFetches
	if len(fetches) != 1 {
		t.Fatalf("failedFetches = %d, want 1", len(fetches))
	}
	if fetches[0].Status != nil {
		t.Errorf("null status should stay nil, got %v", *fetches[0].Status)
	}
	if fetches[0].Error != "TypeError: Failed to fetch" {
		t.Errorf("error = %q", fetches[0].Error)
	}
}

func TestNormalizeSignals(t *testing.T) {
	raw := decodeJSON(t, `{"context": {"signals": {
		"lastError": {"kind": "error", "message": "boom", "filename": "app.js", "lineno": 10, "colno": 4, "stack": "Error: boom"},
		"lastConsoleError": {"kind": "console_error", "argsPreview": ["a", "b"]}
	}}}`)

	c := Normalize(raw, "01TEST", time.Now())
	if c.Context.Signals.LastError == nil {
		t.Fatal("lastError should be decoded")
	}
	if c.Context.Signals.LastError.Message != "boom" {
		t.Errorf("message = %q", c.Context.Signals.LastError.Message)
	}
	if c.Context.Signals.LastError.Lineno != 10 {
		t.Errorf("lineno = %d", c.Context.Signals.LastError.Lineno)
	}
	if c.Context.Signals.LastUnhandledRejection != nil {
		t.Error("absent rejection should be nil")
	}
	if got := c.Context.Signals.LastConsoleError.ArgsPreview; len(got) != 2 || got[0] != "a" {
		t.Errorf("argsPreview = %v", got)
	}
}

func TestNewIDSortableAndSafe(t *testing.T) {
	a := NewID()
	time.Sleep(2 * time.Millisecond)
	b := NewID()

	if len(a) != 26 {
		t.Errorf("id length = %d, want 26 (ULID)", len(a))
	}
	if !(a < b) {
		t.Errorf("ids should sort by creation time: %q then %q", a, b)
	}
	if strings.ContainsAny(a, "/\\. ") {
		t.Errorf("id %q should be filesystem-safe", a)
	}
}
