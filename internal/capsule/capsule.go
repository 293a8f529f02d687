package capsule

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Field bounds. Every bounded field is truncated to its bound, never
// rejected; collections keep the most recent entries.
const (
	MaxInstructionsChars = 1000
	MaxURLChars          = 2000
	MaxTitleChars        = 300
	MaxSelectionChars    = 256
	MaxDOMChars          = 5000
	MaxActions           = 50
	MaxFailedFetches     = 10
	MaxActionTargetChars = 200
	MaxSignalMsgChars    = 500
	MaxSignalStackChars  = 2000
	MaxArgsPreview       = 10
	MaxArgPreviewChars   = 200
)

// Capsule is a normalized, bounded snapshot of browser runtime evidence
// plus an operator instruction. Immutable once written to the store.
type Capsule struct {
	// ID is a ULID: timestamp prefix plus random suffix, sortable by
	// creation time and filesystem-safe.
	ID string `json:"id"`

	// ReceivedAt is when the daemon normalized the capsule.
	ReceivedAt time.Time `json:"receivedAt"`

	// Instructions is the free-text request from the operator.
	Instructions string `json:"instructions"`

	Context Context `json:"context"`
}

// Context carries the page-side evidence.
type Context struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	Selection string   `json:"selection"`
	DOM       string   `json:"dom"`
	Actions   []Action `json:"actions"`
	Signals   Signals  `json:"signals"`
}

// Action is one recorded page interaction.
type Action struct {
	Type      string `json:"type"`
	Target    string `json:"target"`
	Timestamp int64  `json:"timestamp"`
}

// Signals holds the most recent runtime error evidence observed in the
// page. The three "last" slots are nil when never observed.
type Signals struct {
	LastError              *Signal       `json:"lastError"`
	LastUnhandledRejection *Signal       `json:"lastUnhandledRejection"`
	LastConsoleError       *Signal       `json:"lastConsoleError"`
	FailedFetches          []FailedFetch `json:"failedFetches"`
}

// Signal is a single error observation (runtime error, unhandled
// rejection, or console.error call).
type Signal struct {
	Kind        string   `json:"kind"`
	Message     string   `json:"message,omitempty"`
	Stack       string   `json:"stack,omitempty"`
	Filename    string   `json:"filename,omitempty"`
	Lineno      int64    `json:"lineno,omitempty"`
	Colno       int64    `json:"colno,omitempty"`
	ArgsPreview []string `json:"argsPreview,omitempty"`
	Timestamp   int64    `json:"timestamp"`
}

// FailedFetch is one failed network call. Status is nil when the request
// never produced a response (network error).
type FailedFetch struct {
	Kind       string `json:"kind,omitempty"`
	URL        string `json:"url"`
	Method     string `json:"method"`
	Status     *int64 `json:"status"`
	StatusText string `json:"statusText"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// NewID generates a new capsule ULID.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
