package api

import (
	"context"
	"time"
)

// DefaultSweepTimeout bounds a background invitation sweep when none is configured
const DefaultSweepTimeout = 30 * time.Second

// WithSweepTimeout derives the context a background invitation sweep runs under.
// A non-positive timeout uses DefaultSweepTimeout.
func WithSweepTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultSweepTimeout
	}
	return context.WithTimeout(parent, timeout)
}
