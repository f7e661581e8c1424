// Package registry implements the process-local device session table: the
// single mapping from device id to its live bidirectional channel. Binding a
// new session for a device id evicts any prior one; eviction and lookups are
// serialized by one mutex, but the evicted channel is always closed outside
// the lock.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/alaska-icy-giant/simbridge/internal/models"
)

// sendTimeout bounds every channel send so a stuck peer cannot pin a caller
// indefinitely (spec's "channel sends bounded by a small timeout").
const sendTimeout = 5 * time.Second

// Session is a live bidirectional channel bound to one device id.
type Session struct {
	DeviceID int64
	Role     models.DeviceRole
	BoundAt  time.Time

	conn   *websocket.Conn
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSession wraps an accepted WebSocket connection. cancel is invoked when
// the session ends, to stop its heartbeat task.
func NewSession(deviceID int64, role models.DeviceRole, conn *websocket.Conn, cancel context.CancelFunc) *Session {
	return &Session{
		DeviceID: deviceID,
		Role:     role,
		BoundAt:  time.Now(),
		conn:     conn,
		cancel:   cancel,
	}
}

// Send writes payload as a single text message, bounded by sendTimeout.
func (s *Session) Send(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

// Read blocks for the next inbound message on the channel. It is only ever
// called from the session's own read loop, so it takes no internal lock.
func (s *Session) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	return s.conn.Read(ctx)
}

// Close closes the underlying connection with the given status and reason,
// and cancels the session's heartbeat task. Safe to call more than once.
func (s *Session) Close(code websocket.StatusCode, reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.conn.Close(code, reason)
}

// Registry is the single device_id -> Session table.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Bind installs session as the current entry for deviceID and returns
// whatever session previously occupied that slot (nil if none). The caller
// closes the evicted session outside any lock the caller itself holds —
// Bind does not close it.
func (r *Registry) Bind(deviceID int64, session *Session) *Session {
	r.mu.Lock()
	prev := r.sessions[deviceID]
	r.sessions[deviceID] = session
	r.mu.Unlock()
	return prev
}

// UnbindIf removes the entry for deviceID only if it is identically session,
// so a session that already lost a race to a successor cannot evict it.
func (r *Registry) UnbindIf(deviceID int64, session *Session) {
	r.mu.Lock()
	if r.sessions[deviceID] == session {
		delete(r.sessions, deviceID)
	}
	r.mu.Unlock()
}

// Lookup returns the current session for deviceID, or (nil, false).
func (r *Registry) Lookup(deviceID int64) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[deviceID]
	r.mu.Unlock()
	return s, ok
}

// IsOnline reports whether deviceID currently has a live session. Backs the
// is_online field on GET /devices.
func (r *Registry) IsOnline(deviceID int64) bool {
	_, ok := r.Lookup(deviceID)
	return ok
}
