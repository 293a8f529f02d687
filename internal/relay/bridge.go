package relay

import (
	"log"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/hpungsan/cortex/internal/errors"
)

// Bridge defaults.
const (
	PendingQueueCap   = 10
	DefaultRetryDelay = 5 * time.Second
)

// Target is a downstream consumer of daemon messages (in the browser
// this is a tab; in tests, a channel). A Target whose Deliver fails is
// pruned from the bridge.
type Target interface {
	Deliver(msg Message) error
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(msg Message) error

// Deliver implements Target.
func (f TargetFunc) Deliver(msg Message) error {
	return f(msg)
}

// Bridge is the producer-side relay: it keeps a WebSocket connection to
// the daemon, tracks authentication separately from connectivity,
// buffers undeliverable high-value messages in a bounded FIFO, and
// reconnects with a fixed delay forever. Best effort only: at most the
// last PendingQueueCap high-value messages submitted while not ready
// survive to be flushed.
type Bridge struct {
	url        string
	origin     string
	secret     string
	retryDelay time.Duration

	mu            sync.Mutex
	ws            *websocket.Conn
	connected     bool
	connecting    bool
	authenticated bool
	pending       []Message
	targets       map[Target]struct{}
	closed        bool
	retryTimer    *time.Timer
}

// NewBridge creates a bridge for the given relay URL (ws://host:port)
// and shared secret. An empty secret leaves the bridge unable to
// authenticate: high-value messages are refused rather than buffered.
func NewBridge(url, secret string) *Bridge {
	return &Bridge{
		url:        url,
		origin:     "http://localhost/",
		secret:     secret,
		retryDelay: DefaultRetryDelay,
		targets:    make(map[Target]struct{}),
	}
}

// SetRetryDelay overrides the fixed reconnection delay. Tests use this
// to keep reconnect cycles fast.
func (b *Bridge) SetRetryDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retryDelay = d
}

// AddTarget registers a downstream delivery target.
func (b *Bridge) AddTarget(t Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets[t] = struct{}{}
}

// Connected reports transport connectivity.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Authenticated reports whether the daemon acknowledged our secret on
// the current connection.
func (b *Bridge) Authenticated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.authenticated
}

// PendingLen reports the number of buffered high-value messages.
func (b *Bridge) PendingLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Connect starts the connect/auth cycle if it is not already running.
func (b *Bridge) Connect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectLocked()
}

func (b *Bridge) connectLocked() {
	if b.closed || b.connected || b.connecting {
		return
	}
	b.connecting = true
	go b.dialLoopOnce()
}

// dialLoopOnce performs one dial attempt. Failures schedule the next
// attempt after the fixed delay; no jitter, no giving up.
func (b *Bridge) dialLoopOnce() {
	ws, err := websocket.Dial(b.url, "", b.origin)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		b.connecting = false
		log.Printf("bridge: dial %s failed: %v (retrying in %s)", b.url, err, b.retryDelay)
		b.scheduleReconnectLocked()
		b.mu.Unlock()
		return
	}

	b.ws = ws
	b.connected = true
	b.connecting = false
	secret := b.secret
	b.mu.Unlock()

	// Authenticate immediately on transport open. Authenticated is not
	// set until the explicit CORTEX_CONNECTED acknowledgement arrives.
	if err := websocket.JSON.Send(ws, Message{Type: TypeAuth, Code: secret}); err != nil {
		b.handleDisconnect(ws)
		return
	}

	b.readLoop(ws)
}

func (b *Bridge) readLoop(ws *websocket.Conn) {
	for {
		var msg Message
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			b.handleDisconnect(ws)
			return
		}

		if msg.Type == TypeStatus && msg.Msg == MsgConnected {
			b.handleAuthenticated(ws)
		}

		b.fanOut(msg)
	}
}

// handleAuthenticated marks the session authenticated and flushes the
// pending queue in FIFO order, one message per successful send.
func (b *Bridge) handleAuthenticated(ws *websocket.Conn) {
	b.mu.Lock()
	if b.ws != ws || b.closed {
		b.mu.Unlock()
		return
	}
	b.authenticated = true
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	for i, msg := range queued {
		if err := websocket.JSON.Send(ws, msg); err != nil {
			// Requeue what was not sent; the disconnect path runs off
			// the read loop.
			b.mu.Lock()
			b.pending = append(queued[i:], b.pending...)
			if len(b.pending) > PendingQueueCap {
				b.pending = b.pending[len(b.pending)-PendingQueueCap:]
			}
			b.mu.Unlock()
			return
		}
	}
}

// handleDisconnect resets both connectivity and authentication, tells
// every delivery target, and schedules the reconnection attempt.
func (b *Bridge) handleDisconnect(ws *websocket.Conn) {
	ws.Close()

	b.mu.Lock()
	if b.ws != ws {
		// A newer connection already took over.
		b.mu.Unlock()
		return
	}
	b.ws = nil
	b.connected = false
	b.connecting = false
	b.authenticated = false
	closed := b.closed
	if !closed {
		b.scheduleReconnectLocked()
	}
	b.mu.Unlock()

	if !closed {
		b.fanOut(Message{Type: TypeStatus, Msg: MsgDisconnected})
	}
}

func (b *Bridge) scheduleReconnectLocked() {
	if b.closed || b.retryTimer != nil {
		return
	}
	b.retryTimer = time.AfterFunc(b.retryDelay, func() {
		b.mu.Lock()
		b.retryTimer = nil
		b.connectLocked()
		b.mu.Unlock()
	})
}

// fanOut delivers a daemon message to every target, pruning targets
// that fail.
func (b *Bridge) fanOut(msg Message) {
	b.mu.Lock()
	targets := make([]Target, 0, len(b.targets))
	for t := range b.targets {
		targets = append(targets, t)
	}
	b.mu.Unlock()

	for _, t := range targets {
		if err := t.Deliver(msg); err != nil {
			b.mu.Lock()
			delete(b.targets, t)
			b.mu.Unlock()
		}
	}
}

// Send relays a message toward the daemon. Ready (connected and
// authenticated) messages forward immediately. While not ready,
// high-value messages are buffered (bounded FIFO, oldest dropped) when
// a secret is configured; without a secret the originator is told the
// bridge cannot authenticate. Low-value messages are dropped while not
// ready.
func (b *Bridge) Send(msg Message) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return errors.NewUnavailable("bridge is closed")
	}

	if b.connected && b.authenticated {
		ws := b.ws
		b.mu.Unlock()
		if err := websocket.JSON.Send(ws, msg); err != nil {
			b.handleDisconnect(ws)
			return errors.NewUnavailable("send failed; reconnecting")
		}
		return nil
	}

	if !IsHighValue(msg.Type) {
		b.mu.Unlock()
		return nil
	}

	if b.secret == "" {
		b.mu.Unlock()
		return errors.NewUnavailable("not authenticated: no shared secret configured")
	}

	b.pending = append(b.pending, msg)
	if len(b.pending) > PendingQueueCap {
		b.pending = b.pending[len(b.pending)-PendingQueueCap:]
	}
	b.connectLocked()
	b.mu.Unlock()
	return nil
}

// Pending returns a copy of the buffered queue, oldest first.
func (b *Bridge) Pending() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.pending))
	copy(out, b.pending)
	return out
}

// Close stops the bridge: no further reconnects, current connection
// closed.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
	ws := b.ws
	b.ws = nil
	b.connected = false
	b.authenticated = false
	b.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}
