package session

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/smartaccess/internal/backend"
	"github.com/Domenick1991/smartaccess/internal/logger"
	"github.com/Domenick1991/smartaccess/internal/notice"
	"github.com/Domenick1991/smartaccess/internal/service/bookings"
	"github.com/Domenick1991/smartaccess/internal/service/catalog"
	"github.com/google/uuid"
)

type Option func(*Registry)

func WithShellOptions(opts ...catalog.Option) Option {
	return func(r *Registry) {
		r.deps.shellOpts = append(r.deps.shellOpts, opts...)
	}
}

func WithAdminOptions(opts ...bookings.AdminOption) Option {
	return func(r *Registry) {
		r.deps.adminOpts = append(r.deps.adminOpts, opts...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry keeps the live sessions of the process. Nothing survives a
// restart.
type Registry struct {
	deps *deps
	idle time.Duration
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(client backend.Client, board notice.Board, idle time.Duration, opts ...Option) *Registry {
	r := &Registry{
		deps:     &deps{client: client, board: board},
		idle:     idle,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure returns the session with id, or a new anonymous session when id is
// unknown.
func (r *Registry) Ensure(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if s, ok := r.sessions[id]; ok {
		s.touched = now
		return s
	}

	s := newSession(uuid.NewString(), r.deps, now)
	r.sessions[s.id] = s
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok {
		s.touched = r.now()
	}
	return s, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the configured period.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}

	r.mu.Lock()
	deadline := r.now().Add(-r.idle)
	var stale []*Session
	for id, s := range r.sessions {
		if s.touched.Before(deadline) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.FromContext(ctx).Info().Int("sessions", n).Msg("expired idle sessions")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
