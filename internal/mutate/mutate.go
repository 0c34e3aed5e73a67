// Package mutate holds the write operations. Every mutation is one service call
// followed by a reload of the aggregate it affects; nothing is patched locally.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/audit"
	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
)

var (
	// ErrInFlight rejects a submission while the same one is still running.
	ErrInFlight = errors.New("mutate: operation already in flight")
	// ErrNotConfirmed is returned when a destructive action was not confirmed.
	ErrNotConfirmed = errors.New("mutate: action not confirmed")
)

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// Confirmed is a confirmation given up front, such as a confirm=true query parameter.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, string) (bool, error) { return bool(c), nil }

// Ops runs mutations against the services and reloads through queries.
type Ops struct {
	svc     portal.Services
	queries *aggregate.Queries

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(svc portal.Services, queries *aggregate.Queries) *Ops {
	if queries == nil {
		queries = aggregate.New(svc)
	}
	return &Ops{svc: svc, queries: queries, inflight: make(map[string]struct{})}
}

func (o *Ops) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Ops) release(key string) {
	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
}

func guardKey(parts ...string) string { return strings.Join(parts, "|") }

// fireAndRefetch runs call under the in-flight guard for key, then reloads. A call that
// failed with ErrNotFound still reloads, since the view is showing a stale id; the
// reloaded view comes back together with the original error.
func fireAndRefetch[R any](ctx context.Context, o *Ops, key string, call func(context.Context) error, reload func(context.Context) (R, error)) (R, error) {
	var zero R
	if !o.acquire(key) {
		return zero, ErrInFlight
	}
	defer o.release(key)

	if err := call(ctx); err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			if view, rerr := reload(ctx); rerr == nil {
				return view, err
			}
		}
		return zero, err
	}
	view, err := reload(ctx)
	if err != nil {
		return zero, fmt.Errorf("reload after mutation: %w", err)
	}
	return view, nil
}

func logged(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Warn("audit_failed", map[string]any{"event": event, "error": err.Error()})
	}
}
