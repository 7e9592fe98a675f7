package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/DavidYu75/intreview/internal/eventlog"
	"github.com/DavidYu75/intreview/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFailed   = errors.New("session failed")
	ErrSessionActive   = errors.New("session still active")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrDraining        = errors.New("server is draining")
)

// Registry is the process-wide session store. It also tracks live
// streaming connections and supports graceful draining: once draining,
// new sessions and connections are rejected while open ones finish.
//
// The mu mutex makes the draining check and wg.Add atomic in AddConn,
// so StartDraining+Wait cannot slip between them.
type Registry struct {
	engine    *Engine
	logger    *log.Logger
	maxActive int

	mu       sync.Mutex
	sessions map[string]*Session
	draining bool
	wg       sync.WaitGroup
	conns    atomic.Int64
}

// NewRegistry creates a Registry. maxActive <= 0 means unlimited.
func NewRegistry(engine *Engine, maxActive int, logger *log.Logger) *Registry {
	return &Registry{
		engine:    engine,
		logger:    logger,
		maxActive: maxActive,
		sessions:  make(map[string]*Session),
	}
}

// Start creates a new Active session owned by owner.
func (r *Registry) Start(owner string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.draining {
		return nil, ErrDraining
	}
	if r.maxActive > 0 && r.activeLocked() >= r.maxActive {
		return nil, ErrTooManySessions
	}

	s := newSession(uuid.NewString(), owner, r.engine)
	r.sessions[s.id] = s

	metrics.SessionsStarted.Inc()
	metrics.SessionsActive.Inc()
	r.engine.cfg.Events.LogAsync(s.id, eventlog.EventSessionStarted, map[string]any{"owner": owner})
	r.logger.Printf("session: started %s", s.id)
	return s, nil
}

func (r *Registry) activeLocked() int {
	n := 0
	for _, s := range r.sessions {
		if !s.terminal.Load() {
			n++
		}
	}
	return n
}

// Get returns the session if it exists and belongs to owner. An empty owner
// skips the ownership check.
func (r *Registry) Get(id, owner string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok || (owner != "" && s.owner != owner) {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the owner's sessions, newest first.
func (r *Registry) List(owner string) []Info {
	out := []Info{}
	for _, s := range r.snapshot() {
		if owner != "" && s.owner != owner {
			continue
		}
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Remove drops a session from the registry without finalizing it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep finalizes sessions with no activity for longer than idle and
// evicts terminal sessions that ended more than retention ago. Zero
// durations disable the respective step.
func (r *Registry) Sweep(ctx context.Context, idle, retention time.Duration) (expired, evicted int) {
	now := r.engine.now()

	for _, s := range r.snapshot() {
		if !s.terminal.Load() {
			if idle <= 0 || now.Sub(s.LastActivity()) <= idle {
				continue
			}
			r.engine.cfg.Events.LogAsync(s.id, eventlog.EventSessionExpired, map[string]any{
				"idle_seconds": int(now.Sub(s.LastActivity()).Seconds()),
			})
			_, _ = s.Finalize(ctx)
			expired++
			continue
		}

		if retention > 0 && now.Sub(time.Unix(0, s.endedAtNano.Load())) > retention {
			r.Remove(s.id)
			evicted++
		}
	}
	return expired, evicted
}

// Shutdown finalizes every session that is still Active.
func (r *Registry) Shutdown(ctx context.Context) int {
	n := 0
	for _, s := range r.snapshot() {
		if s.terminal.Load() {
			continue
		}
		_, _ = s.Finalize(ctx)
		n++
	}
	return n
}

// AddConn registers a live streaming connection. Returns false if the
// registry is draining, meaning no new connections should be accepted.
func (r *Registry) AddConn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return false
	}
	r.wg.Add(1)
	r.conns.Add(1)
	metrics.LiveConnections.Inc()
	return true
}

// DoneConn marks a connection as closed. Must be called exactly once per successful AddConn.
func (r *Registry) DoneConn() {
	r.conns.Add(-1)
	metrics.LiveConnections.Dec()
	r.wg.Done()
}

// StartDraining sets the draining flag so that future AddConn and Start calls fail.
func (r *Registry) StartDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
}

func (r *Registry) IsDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining
}

// ActiveConns returns the number of open streaming connections.
func (r *Registry) ActiveConns() int64 {
	return r.conns.Load()
}

// Wait blocks until every connection added with AddConn is done.
func (r *Registry) Wait() {
	r.wg.Wait()
}
