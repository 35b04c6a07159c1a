package observer

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/observability"
)

// DefaultCapacity bounds the number of sessions whose last state is tracked
const DefaultCapacity = 10000

// Trigger receives the claims snapshot of a qualifying transition
type Trigger func(ctx context.Context, claims identity.Claims)

// Changed reports whether the auth flag or the claims snapshot differs
func Changed(prev, next identity.AuthState) bool {
	return !prev.Same(next)
}

// ShouldSync reports whether moving from prev to next must invoke the reconciler
func ShouldSync(prev, next identity.AuthState) bool {
	return Changed(prev, next) && next.Ready()
}

// Detector is a single-stream edge detector. Not safe for concurrent use.
type Detector struct {
	prev identity.AuthState
}

// NewDetector creates a detector whose previous state is unauthenticated
func NewDetector() *Detector {
	return &Detector{prev: identity.Unauthenticated}
}

// Next records state and returns the claims to sync when the transition qualifies
func (d *Detector) Next(state identity.AuthState) (identity.Claims, bool) {
	prev := d.prev
	d.prev = state
	if !ShouldSync(prev, state) {
		return identity.Claims{}, false
	}
	return *state.Claims, true
}

// Watch invokes trigger once per qualifying transition on states, in order.
// It returns when ctx is done or states is closed.
func Watch(ctx context.Context, states <-chan identity.AuthState, trigger Trigger) {
	d := NewDetector()
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if claims, fire := d.Next(state); fire {
				trigger(ctx, claims)
			}
		}
	}
}

// Observer tracks the last auth state of each browser session and fires the
// trigger on qualifying transitions. Safe for concurrent use.
type Observer struct {
	mu      sync.Mutex
	last    *lru.Cache[string, identity.AuthState]
	trigger Trigger
	metrics *observability.Metrics
}

// Option configures an Observer
type Option func(*Observer)

// WithMetrics counts triggers on m
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Observer) {
		o.metrics = m
	}
}

// New creates an Observer tracking at most capacity sessions
func New(capacity int, trigger Trigger, opts ...Option) (*Observer, error) {
	if trigger == nil {
		return nil, fmt.Errorf("observer trigger is required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	cache, err := lru.New[string, identity.AuthState](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer cache: %w", err)
	}

	o := &Observer{last: cache, trigger: trigger}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Observe feeds the current state of session key. The trigger runs at most
// once per transition, with the lock released.
func (o *Observer) Observe(ctx context.Context, key string, state identity.AuthState) {
	o.mu.Lock()
	prev, ok := o.last.Get(key)
	if !ok {
		prev = identity.Unauthenticated
	}
	fire := ShouldSync(prev, state)
	o.last.Add(key, state)
	o.mu.Unlock()

	if !fire {
		return
	}

	o.metrics.RecordTrigger()
	o.trigger(ctx, *state.Claims)
}

// Forget drops the tracked state of key, e.g. on logout
func (o *Observer) Forget(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last.Remove(key)
}

// Len returns the number of tracked sessions
func (o *Observer) Len() int {
	return o.last.Len()
}
