package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"studentportal.org/internal/portal"
)

const defaultIdleTTL = 30 * time.Minute

// Registry holds one Store per BFF session cookie. Only stores holding a session are
// kept; idle ones are evicted and rehydrate from the token store on the next request.
type Registry struct {
	identity portal.IdentityService
	tokens   TokenStore
	idleTTL  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

// entry is a store whose first rehydrate is done once ready is closed.
type entry struct {
	st    *Store
	ready chan struct{}
	err   error
	seen  time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL sets how long an unused store stays in memory.
func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

func NewRegistry(identity portal.IdentityService, tokens TokenStore, opts ...RegistryOption) *Registry {
	if tokens == nil {
		tokens = NewMemoryTokens()
	}
	r := &Registry{
		identity: identity,
		tokens:   tokens,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.now()
	return r
}

// NewKey returns a fresh random session key.
func (r *Registry) NewKey() string { return uuid.NewString() }

// ValidKey reports whether key could have been issued by NewKey.
func ValidKey(key string) bool {
	_, err := uuid.Parse(key)
	return err == nil && key != ""
}

// Get returns the store for key. The first caller for a key rehydrates it from the
// token store; concurrent callers for the same key wait for that rehydrate and share
// its outcome. A store that ends up without a session is not kept. Rehydration
// errors are returned together with the still-unauthenticated store.
func (r *Registry) Get(ctx context.Context, key string) (*Store, error) {
	r.mu.Lock()
	now := r.now()
	r.sweepLocked(now)
	if e, ok := r.entries[key]; ok {
		e.seen = now
		r.mu.Unlock()
		select {
		case <-e.ready:
			return e.st, e.err
		case <-ctx.Done():
			return e.st, ctx.Err()
		}
	}
	e := &entry{st: r.newStore(key), ready: make(chan struct{}), seen: now}
	r.entries[key] = e
	r.mu.Unlock()

	_, ok, err := e.st.Rehydrate(ctx)
	e.err = err
	close(e.ready)
	if err != nil || !ok {
		r.drop(e.st)
	}
	return e.st, err
}

// Retain keeps st after it logged in. A store obtained for a key without a session is
// not held by the registry until then.
func (r *Registry) Retain(st *Store) {
	if _, ok := st.Current(); !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e, ok := r.entries[st.Key()]; ok && e.st == st {
		e.seen = now
		return
	}
	ready := make(chan struct{})
	close(ready)
	r.entries[st.Key()] = &entry{st: st, ready: ready, seen: now}
}

// Forget drops the in-memory store for key. The persisted token is untouched.
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Len is the number of stores held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) newStore(key string) *Store {
	st := NewStore(r.identity, r.tokens, key)
	st.ended = r.drop
	return st
}

// drop removes st, leaving a newer store under the same key alone.
func (r *Registry) drop(st *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[st.Key()]; ok && e.st == st {
		delete(r.entries, st.Key())
	}
}

// sweepLocked evicts idle entries at most once a minute.
func (r *Registry) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < time.Minute {
		return
	}
	for k, e := range r.entries {
		select {
		case <-e.ready:
		default:
			continue
		}
		if now.Sub(e.seen) > r.idleTTL {
			delete(r.entries, k)
		}
	}
	r.lastSweep = now
}
