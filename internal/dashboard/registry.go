package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
	"github.com/zsiec/hostpanel/internal/hosting"
	"github.com/zsiec/hostpanel/internal/logger"
	"github.com/zsiec/hostpanel/internal/metrics"
)

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	Session         Options
	IdleTimeout     time.Duration
	JanitorInterval time.Duration

	// OnExpire receives each expired session with its frozen last panel.
	OnExpire func(s *Session, final Panel)

	Now func() time.Time
}

// Registry tracks the live dashboards of the process.
type Registry struct {
	client hosting.Client
	opts   RegistryOptions
	log    *logger.SampledLogger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(client hosting.Client, opts RegistryOptions) *Registry {
	opts.Session = opts.Session.withDefaults()
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 10 * time.Minute
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = 30 * time.Second
	}
	return &Registry{
		client:   client,
		opts:     opts,
		log:      opts.Session.Logger,
		sessions: make(map[string]*Session),
	}
}

// Open registers a new session for owner and renders it through p.
func (r *Registry) Open(ctx context.Context, p Presenter, owner Owner) (*Session, error) {
	s := r.Create(owner)
	return s, s.Open(ctx, p)
}

// Create registers a new session for owner without rendering it, for
// callers that need the session id before the first panel is drawn.
func (r *Registry) Create(owner Owner) *Session {
	s := NewSession(uuid.NewString(), owner, r.client, r.opts.Session)
	s.now = r.opts.Now
	s.touch()

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.SetActiveSessions(n)

	r.log.WithFields(map[string]interface{}{"session_id": s.id, "owner_id": owner.ID}).Info("Dashboard opened")
	return s
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Dispatch routes a to session id. Unknown ids belong to panels that expired
// or predate a restart; the user is told so privately.
func (r *Registry) Dispatch(ctx context.Context, id string, p Presenter, a Action) error {
	if s, ok := r.Get(id); ok {
		return s.Dispatch(ctx, p, a)
	}

	r.log.DebugWithCategory(logger.CategoryLateCallback, "Action for unknown panel", map[string]interface{}{
		"session_id": id,
		"action":     string(a.Kind),
	})
	err := apperrors.NewExpiredError()
	d := r.opts.Session.Errors.Describe(err, nil)
	if nerr := p.Notify(ctx, Notification{Title: d.Title, Body: d.Detail, Severity: SeverityWarning}); nerr != nil {
		return nerr
	}
	return err
}

// Sweep expires sessions idle for longer than the idle timeout. A session
// with an action in flight is never idle.
func (r *Registry) Sweep() int {
	now := r.opts.Now()

	var idle []retired
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActive()) < r.opts.IdleTimeout {
			continue
		}
		final, ok := s.expireIdle()
		if !ok {
			continue
		}
		delete(r.sessions, id)
		idle = append(idle, retired{session: s, final: final})
	}
	n := len(r.sessions)
	r.mu.Unlock()

	r.retire(idle)
	metrics.SetActiveSessions(n)
	return len(idle)
}

// Close expires every session, used on shutdown.
func (r *Registry) Close() int {
	r.mu.Lock()
	all := make([]retired, 0, len(r.sessions))
	for id, s := range r.sessions {
		delete(r.sessions, id)
		if final, ok := s.expire(); ok {
			all = append(all, retired{session: s, final: final})
		}
	}
	r.mu.Unlock()

	r.retire(all)
	metrics.SetActiveSessions(0)
	return len(all)
}

type retired struct {
	session *Session
	final   Panel
}

func (r *Registry) retire(sessions []retired) {
	for _, e := range sessions {
		metrics.IncrementExpiredSessions()
		r.log.WithField("session_id", e.session.id).Debug("Dashboard expired")
		if r.opts.OnExpire != nil {
			r.opts.OnExpire(e.session, e.final)
		}
	}
}

// Run sweeps on the janitor interval until ctx is done, then closes every
// remaining session.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := r.Close(); n > 0 {
				r.log.Infof("Closed %d dashboards on shutdown", n)
			}
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debugf("Expired %d idle dashboards", n)
			}
		}
	}
}
