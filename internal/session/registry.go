package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/glean/internal/apperr"
)

// Registry keeps at most one active Session per id.
type Registry struct {
	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry is a registry slot. ready is closed once activation has finished;
// s and err are set before that.
type entry struct {
	ready    chan struct{}
	s        *Session
	err      error
	lastUsed time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{deps: deps, now: time.Now, sessions: make(map[string]*entry)}
}

// Get returns the active session for id, activating it on first access.
// Activation runs outside the registry lock; concurrent callers for the
// same id wait for the first one.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return r.await(ctx, e)
	}
	e := &entry{ready: make(chan struct{})}
	r.sessions[id] = e
	r.mu.Unlock()

	s := New(id, r.deps)
	err := s.Activate(ctx)

	r.mu.Lock()
	kept := r.sessions[id] == e
	switch {
	case err != nil:
		if kept {
			delete(r.sessions, id)
		}
		e.err = err
	case !kept:
		// closed or deactivated while loading
		e.err = fmt.Errorf("session %s: %w", id, apperr.ErrSessionClosed)
	default:
		e.s = s
		e.lastUsed = r.now()
	}
	r.mu.Unlock()
	close(e.ready)

	if err == nil && !kept {
		_ = s.Close(context.Background())
	}
	if e.err != nil {
		return nil, e.err
	}
	return s, nil
}

func (r *Registry) await(ctx context.Context, e *entry) (*Session, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	r.mu.Lock()
	e.lastUsed = r.now()
	r.mu.Unlock()
	return e.s, nil
}

// Lookup returns the session only if it is already active.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.s == nil {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.s, true
}

// Active lists the ids of active sessions.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id, e := range r.sessions {
		if e.s != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Deactivate closes and forgets the session. Unknown ids are a no-op.
func (r *Registry) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok || e.s == nil {
		return nil
	}
	return e.s.Close(ctx)
}

// EvictIdle closes sessions not used for longer than idle and returns how
// many were closed.
func (r *Registry) EvictIdle(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, e := range r.sessions {
		if e.s != nil && e.lastUsed.Before(cutoff) {
			stale = append(stale, e.s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		if err := s.Close(ctx); err != nil {
			r.deps.Logger.Warn("session: evict failed",
				slog.String("session_id", s.ID()),
				slog.String("error", err.Error()))
		}
	}
	if len(stale) > 0 {
		r.deps.Logger.Info("session: evicted idle", slog.Int("count", len(stale)))
	}
	return len(stale)
}

// Sweep runs EvictIdle every interval until ctx is done.
func (r *Registry) Sweep(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ctx, idle)
		}
	}
}

// CloseAll closes every active session, flushing pending note edits.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	var errs []error
	closed := 0
	for _, e := range all {
		if e.s == nil {
			continue
		}
		closed++
		if err := e.s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if closed > 0 {
		r.deps.Logger.Info("session: closed all", slog.Int("count", closed))
	}
	return errors.Join(errs...)
}
