package storage

import (
	"context"
	"time"

	"liquidityEngine/internal/model"
)

// WithRetry calls fn until it succeeds, doubling the delay after every
// failure, at most maxRetries extra times.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// Retrying wraps a sink so every batch is retried with backoff.
type Retrying struct {
	Sink       EventSink
	MaxRetries int
	BaseDelay  time.Duration
}

func (r Retrying) WriteEvents(ctx context.Context, events []model.Event) error {
	return WithRetry(ctx, r.MaxRetries, r.BaseDelay, func(ctx context.Context) error {
		return r.Sink.WriteEvents(ctx, events)
	})
}
