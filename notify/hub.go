package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// DefaultSessionBuffer is the per-session queue length.
const DefaultSessionBuffer = 16

// Session is one connected user. Messages not addressed to the user are
// dropped by the hub before they reach C.
type Session struct {
	ID     string
	UserID int64
	C      <-chan Message

	mu      sync.RWMutex
	closed  bool
	ch      chan Message
	dropped atomic.Int64
}

type sendResult int

const (
	sendQueued sendResult = iota
	sendDropped
	sendClosed
)

// send queues msg without blocking.
func (s *Session) send(msg Message) sendResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sendClosed
	}
	select {
	case s.ch <- msg:
		return sendQueued
	default:
		s.dropped.Add(1)
		return sendDropped
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Dropped returns how many messages were discarded because the session queue
// was full.
func (s *Session) Dropped() int64 {
	return s.dropped.Load()
}

// Hub fans messages out to the sessions connected to this process.
type Hub struct {
	sessions *xsync.MapOf[string, *Session]
	buffer   int
	logger   *zap.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-session queue length.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubLogger sets the logger. Defaults to a no-op logger.
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions: xsync.NewMapOf[string, *Session](),
		buffer:   DefaultSessionBuffer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("hub")
	return h
}

// Join connects a session for userID.
func (h *Hub) Join(userID int64) *Session {
	ch := make(chan Message, h.buffer)
	s := &Session{ID: uuid.NewString(), UserID: userID, C: ch, ch: ch}
	h.sessions.Store(s.ID, s)
	return s
}

// Leave disconnects s and closes its channel.
func (h *Hub) Leave(s *Session) {
	if _, ok := h.sessions.LoadAndDelete(s.ID); ok {
		s.close()
	}
}

// Len returns the number of connected sessions.
func (h *Hub) Len() int {
	return h.sessions.Size()
}

// Deliver hands msg to every session whose user is a recipient. A full
// session queue drops the message for that session only.
func (h *Hub) Deliver(msg Message) int {
	delivered := 0
	h.sessions.Range(func(_ string, s *Session) bool {
		if !msg.For(s.UserID) {
			return true
		}
		switch s.send(msg) {
		case sendQueued:
			delivered++
		case sendDropped:
			h.logger.Warn("session queue full, message dropped",
				zap.String("session", s.ID),
				zap.Int64("user", s.UserID),
			)
		}
		return true
	})
	return delivered
}

// Publish implements Publisher for single-process deployments.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.Deliver(msg)
	return nil
}
