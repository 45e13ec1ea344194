// Package sse implements the persistent-stream transport: per-client
// sessions over server-sent events, with tool-call messages posted to a
// side channel referencing the session id.
package sse

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// outboxSize bounds how many responses may queue for a slow client before
// senders block.
const outboxSize = 16

// Session is one live client connection.  It implements the protocol
// library's ClientSession so the dispatcher can address notifications to it.
type Session struct {
	id     string
	outbox chan []byte
	notifs chan mcp.JSONRPCNotification
	done   chan struct{}

	closeOnce   sync.Once
	initialized bool
	initMu      sync.RWMutex
}

func newSession() *Session {
	return &Session{
		id:     uuid.NewString(),
		outbox: make(chan []byte, outboxSize),
		notifs: make(chan mcp.JSONRPCNotification, outboxSize),
		done:   make(chan struct{}),
	}
}

// SessionID returns the opaque session identifier.
func (s *Session) SessionID() string { return s.id }

// NotificationChannel returns the channel the dispatcher sends server
// notifications on.
func (s *Session) NotificationChannel() chan<- mcp.JSONRPCNotification { return s.notifs }

// Initialize marks the session as having completed the protocol handshake.
func (s *Session) Initialize() {
	s.initMu.Lock()
	s.initialized = true
	s.initMu.Unlock()
}

// Initialized reports whether the handshake has completed.
func (s *Session) Initialized() bool {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initialized
}

// send queues data for delivery on the session's stream.  It reports false
// when the session has been closed; the caller must discard the write
// rather than treat it as an error.
func (s *Session) send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- data:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Registry tracks live sessions by id.  It is the sole owner of session
// lifecycle: sessions are created on stream establishment and removed on
// stream close or transport error.  Operations on independent sessions
// never block one another.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open allocates a new session and registers it.
func (r *Registry) Open() *Session {
	s := newSession()
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session with the given id, if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	return s, ok
}

// Close removes and closes the session with the given id.  Closing an
// unknown or already-closed id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
