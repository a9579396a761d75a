package storage

import (
	"context"

	"liquidityEngine/internal/model"
)

// EventSink receives committed engine events in sequence order.
type EventSink interface {
	WriteEvents(ctx context.Context, events []model.Event) error
}

// Checkpointer persists the sequence number of the last written event.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastSeq uint64) error
}

// Skip drops the events at or below lastSeq.
func Skip(events []model.Event, lastSeq uint64) []model.Event {
	for i, ev := range events {
		if ev.Seq > lastSeq {
			return events[i:]
		}
	}
	return nil
}
