package relay

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/hpungsan/cortex/internal/capsule"
	"github.com/hpungsan/cortex/internal/config"
	"github.com/hpungsan/cortex/internal/diagnose"
	"github.com/hpungsan/cortex/internal/store"
)

// Diagnoser requests a diagnosis for a capsule. Satisfied by
// diagnose.Client.
type Diagnoser interface {
	Diagnose(ctx context.Context, c capsule.Capsule) diagnose.Result
}

// Server is the daemon side of the relay: a WebSocket endpoint that
// gates connections behind the shared secret, normalizes and persists
// incoming capsules, and fans diagnosis requests out to the external
// reasoning service. Each connection is independent; no failure on one
// connection affects another or the process.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	diagnoser Diagnoser

	// baseCtx parents diagnosis calls so they survive the message loop
	// but stop on server shutdown.
	baseCtx context.Context
}

// NewServer creates a relay server.
func NewServer(cfg *config.Config, st *store.Store, diagnoser Diagnoser) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		diagnoser: diagnoser,
		baseCtx:   context.Background(),
	}
}

// Handler returns the WebSocket handler serving the relay protocol.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.handleConn)
}

// Run binds the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx

	listener, err := net.Listen("tcp", s.cfg.RelayAddr())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	srv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// conn is one transport session. Ephemeral: authentication state lives
// and dies with the connection and is never persisted.
type conn struct {
	ws            *websocket.Conn
	sendMu        sync.Mutex
	authenticated bool
}

func (c *conn) send(msg Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return websocket.JSON.Send(c.ws, msg)
}

func (s *Server) handleConn(ws *websocket.Conn) {
	defer ws.Close()

	ws.MaxPayloadBytes = s.cfg.MaxPayloadBytes
	c := &conn{ws: ws}
	log.Printf("relay: sensor connected remote=%s", ws.Request().RemoteAddr)

	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Printf("relay: sensor disconnected remote=%s", ws.Request().RemoteAddr)
			case errors.Is(err, websocket.ErrFrameTooLarge):
				log.Printf("relay: dropping connection, frame exceeds %d bytes remote=%s",
					s.cfg.MaxPayloadBytes, ws.Request().RemoteAddr)
			default:
				log.Printf("relay: read failed remote=%s err=%v", ws.Request().RemoteAddr, err)
			}
			return
		}

		msgType, raw, ok := ParseFrame(data)
		if !ok {
			// Malformed frame. Discarded without acknowledgement.
			continue
		}

		if msgType == TypeAuth {
			s.handleAuth(c, raw)
			continue
		}

		if !c.authenticated {
			// Silent drop: no acknowledgement leaks gate state to
			// unauthenticated peers.
			log.Printf("relay: unauthorized %s dropped remote=%s", msgType, ws.Request().RemoteAddr)
			continue
		}

		switch msgType {
		case TypeCaptureRequest, TypeDiagnoseRequest, TypeFixRequest:
			s.handleCapsule(c, msgType, raw)
		default:
			// Unrecognized type from an authenticated peer. Ignored.
		}
	}
}

// handleAuth re-evaluates every auth message; there is no lockout and
// no attempt limit.
func (s *Server) handleAuth(c *conn, raw map[string]any) {
	code, _ := raw["code"].(string)
	if code == s.cfg.AuthCode {
		c.authenticated = true
		log.Printf("relay: authentication successful remote=%s", c.ws.Request().RemoteAddr)
		_ = c.send(Message{Type: TypeStatus, Msg: MsgConnected})
		return
	}
	log.Printf("relay: authentication failed remote=%s", c.ws.Request().RemoteAddr)
	_ = c.send(Message{Type: TypeError, Msg: MsgInvalidAuth})
}

func (s *Server) handleCapsule(c *conn, msgType string, raw map[string]any) {
	id := capsule.NewID()
	caps := capsule.Normalize(raw, id, time.Now().UTC())

	log.Printf("relay: incoming capsule id=%s url=%s actions=%d",
		id, caps.Context.URL, len(caps.Context.Actions))

	if err := s.store.Save(caps); err != nil {
		log.Printf("relay: capsule save failed id=%s err=%v", id, err)
		_ = c.send(Message{Type: TypeError, Msg: MsgSaveFailed, ID: id})
	} else {
		_ = c.send(Message{Type: TypeCapsuleSaved, ID: id})
	}

	// The diagnosis attempt runs regardless of the save outcome; the
	// two writes are independent and unordered.
	if WantsDiagnosis(msgType) {
		go s.runDiagnosis(c, caps)
	}
}

func (s *Server) runDiagnosis(c *conn, caps capsule.Capsule) {
	result := s.diagnoser.Diagnose(s.baseCtx, caps)

	if result.OK {
		if err := s.store.SaveDiagnosis(caps.ID, result.Text); err != nil {
			log.Printf("relay: diagnosis save failed id=%s err=%v", caps.ID, err)
		}
		_ = c.send(Message{
			Type:  TypeDiagnosis,
			ID:    caps.ID,
			OK:    boolPtr(true),
			Msg:   result.Text,
			Model: result.Model,
		})
		return
	}

	log.Printf("relay: diagnosis failed id=%s err=%s", caps.ID, result.Err)
	_ = c.send(Message{
		Type: TypeDiagnosis,
		ID:   caps.ID,
		OK:   boolPtr(false),
		Msg:  result.Err,
	})
}
