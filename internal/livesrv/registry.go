package livesrv

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConnState tracks where a connection is in its lifecycle.
type ConnState string

const (
	StateActive   ConnState = "active"
	StateDraining ConnState = "draining"
	StateClosed   ConnState = "closed"
)

// Conn is one registered live session connection.
type Conn struct {
	SessionID string
	StudentID int64
	Subject   string
	Remote    string
	StartedAt time.Time

	mu     sync.Mutex
	state  ConnState
	frames atomic.Int64
}

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// FramesWritten returns the number of outbound frames written so far.
func (c *Conn) FramesWritten() int64 { return c.frames.Load() }

// Registry tracks the connections currently owned by this server instance.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Add registers a connection under its session ID.
func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	c.state = StateActive
	r.conns[c.SessionID] = c
	r.mu.Unlock()
}

// Remove deregisters the connection for the given session ID.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.conns, sessionID)
	r.mu.Unlock()
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ConnInfo is a read-only snapshot of one connection for the state API.
type ConnInfo struct {
	SessionID     string    `json:"session_id"`
	StudentID     int64     `json:"student_id"`
	Subject       string    `json:"subject"`
	Remote        string    `json:"remote"`
	StartedAt     time.Time `json:"started_at"`
	State         ConnState `json:"state"`
	FramesWritten int64     `json:"frames_written"`
}

// Snapshot returns a copy of all registered connections.
func (r *Registry) Snapshot() []ConnInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]ConnInfo, 0, len(r.conns))
	for _, c := range r.conns {
		res = append(res, ConnInfo{
			SessionID:     c.SessionID,
			StudentID:     c.StudentID,
			Subject:       c.Subject,
			Remote:        c.Remote,
			StartedAt:     c.StartedAt,
			State:         c.State(),
			FramesWritten: c.FramesWritten(),
		})
	}
	return res
}

// WaitForZero blocks until no connections remain or done is closed. It
// reports whether the registry drained.
func (r *Registry) WaitForZero(done <-chan struct{}) bool {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-done:
			return r.Count() == 0
		case <-t.C:
		}
	}
}
