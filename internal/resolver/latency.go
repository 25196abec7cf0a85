package resolver

import (
	"context"
	"time"
)

// minLatency pads fast resolutions so asynchronous UI states stay
// observable. Purely a presentation concern; disabled when d is zero.
type minLatency struct {
	next Resolver
	d    time.Duration
}

// WithMinLatency wraps r so Resolve never returns before d has elapsed.
// A zero or negative d returns r unchanged.
func WithMinLatency(r Resolver, d time.Duration) Resolver {
	if d <= 0 {
		return r
	}
	return &minLatency{next: r, d: d}
}

func (m *minLatency) Resolve(ctx context.Context, q CaseQuery) Outcome {
	start := time.Now()
	out := m.next.Resolve(ctx, q)
	if remaining := m.d - time.Since(start); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
		}
	}
	return out
}
