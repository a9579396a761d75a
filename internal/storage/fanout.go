package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"liquidityEngine/internal/model"
)

// Fanout writes every batch to all of its sinks concurrently and fails when
// any of them fails.
type Fanout []EventSink

func (f Fanout) WriteEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 || len(f) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range f {
		sink := sink
		g.Go(func() error {
			return sink.WriteEvents(ctx, events)
		})
	}
	return g.Wait()
}
