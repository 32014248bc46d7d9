package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"slingshot-be/pkg/research/domain"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is the idle time after which a session is evicted.
const DefaultTTL = 30 * time.Minute

// Registry maps session ids to sessions. Expiry is measured from the last
// Touch, so callers touch on every emission and subscriber activity.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	hooksMu sync.RWMutex
	evicted []func(*Session)
}

// NewRegistry creates a registry with the given idle TTL. Expired sessions are
// removed by Sweep or Janitor.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Registry{cache: cache.New(ttl, 0)}
	r.cache.OnEvicted(func(_ string, v interface{}) {
		s := v.(*Session)
		s.RequestStop("session expired")
		r.hooksMu.RLock()
		hooks := r.evicted
		r.hooksMu.RUnlock()
		for _, h := range hooks {
			h(s)
		}
	})
	return r
}

// OnEvicted registers fn to run whenever a session leaves the registry.
func (r *Registry) OnEvicted(fn func(*Session)) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.evicted = append(r.evicted, fn)
}

// Create inserts s. It fails with ErrSessionBusy when the id is taken.
func (r *Registry) Create(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.cache.Add(s.ID, s, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionBusy)
	}
	return nil
}

func (r *Registry) Get(id string) (*Session, error) {
	if v, ok := r.cache.Get(id); ok {
		return v.(*Session), nil
	}
	return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
}

// Touch restarts the idle clock of a session.
func (r *Registry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(id)
	if !ok {
		return false
	}
	r.cache.Set(id, v, cache.DefaultExpiration)
	return true
}

// Delete removes a session immediately, cancelling its run.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(id)
}

// Sweep evicts every expired session.
func (r *Registry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.DeleteExpired()
}

// Janitor sweeps every interval until ctx is done.
func (r *Registry) Janitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

// Running returns the sessions with an active pipeline run.
func (r *Registry) Running() []*Session {
	var out []*Session
	for _, it := range r.cache.Items() {
		if s := it.Object.(*Session); s.Running() {
			out = append(out, s)
		}
	}
	return out
}
