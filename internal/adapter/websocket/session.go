package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/hansxu66/btcpredict-kalshi/internal/broadcast"
	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

const (
	// pongWait must exceed the writer's 30s ping interval.
	pongWait       = 60 * time.Second
	maxMessageSize = 4096
	pingText       = "ping"
)

// SessionState is the lifecycle of one client session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Registry is the subset of the broadcaster a session needs.
type Registry interface {
	Register(conn broadcast.Conn) (*broadcast.Client, error)
	Unregister(client *broadcast.Client)
}

// Session handles one accepted websocket connection. Outbound frames are written by
// the broadcaster's per-client writer; the session owns the read side.
type Session struct {
	conn      *gorilla.Conn
	registry  Registry
	clock     clockwork.Clock
	state     atomic.Int32
	client    *broadcast.Client
	closeOnce sync.Once
}

func NewSession(conn *gorilla.Conn, registry Registry, clock clockwork.Clock) *Session {
	return &Session{conn: conn, registry: registry, clock: clock}
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run registers the connection and reads until the transport fails or closes.
// The connection is unregistered and released exactly once before Run returns.
func (s *Session) Run(ctx context.Context) error {
	client, err := s.registry.Register(s.conn)
	if err != nil {
		s.state.Store(int32(StateClosed))
		_ = s.conn.Close()
		return err
	}
	s.client = client
	s.state.Store(int32(StateActive))
	defer s.close()

	ctx = correlation.WithID(ctx, client.ID().String())
	slog.InfoContext(ctx, "Client connected", "remote_addr", s.conn.RemoteAddr().String())

	s.conn.SetReadLimit(maxMessageSize)
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.logReadError(ctx, err)
			return nil
		}
		s.extendReadDeadline()

		if messageType != gorilla.TextMessage || string(data) != pingText {
			continue
		}
		if err := client.Reply(domain.PongMessage()); err != nil {
			slog.DebugContext(ctx, "Pong not sent, client writer gone", "error", err)
			return nil
		}
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.registry.Unregister(s.client)
		_ = s.conn.Close()
	})
}

func (s *Session) extendReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongWait))
}

func (s *Session) logReadError(ctx context.Context, err error) {
	if gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway, gorilla.CloseNoStatusReceived) {
		slog.WarnContext(ctx, "Client connection lost", "error", err)
		return
	}
	var closeErr *gorilla.CloseError
	if errors.As(err, &closeErr) {
		slog.InfoContext(ctx, "Client disconnected", "code", closeErr.Code)
		return
	}
	slog.DebugContext(ctx, "Client read ended", "error", err)
}
