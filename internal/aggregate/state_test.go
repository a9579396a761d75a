package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"liquidityEngine/internal/storage"
)

func TestFileStateStoreRejectsRewind(t *testing.T) {
	ctx := context.Background()
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "nested", "state.json")}
	if _, ok, err := state.Load(ctx); ok || err != nil {
		t.Fatalf("empty store: %v, %v", ok, err)
	}

	if err := state.Save(ctx, 5); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := state.Save(ctx, 5); err != nil {
		t.Fatalf("save same seq: %v", err)
	}
	if err := state.Save(ctx, 3); !errors.Is(err, ErrStateRewind) {
		t.Fatalf("expected rewind error, got %v", err)
	}
	if seq, ok, _ := state.Load(ctx); !ok || seq != 5 {
		t.Fatalf("state after rejected save: %d, %v", seq, ok)
	}

	if err := state.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := state.Reset(ctx); err != nil {
		t.Fatalf("reset twice: %v", err)
	}
	if err := state.Save(ctx, 3); err != nil {
		t.Fatalf("save after reset: %v", err)
	}
	if seq, _, _ := state.Load(ctx); seq != 3 {
		t.Fatalf("expected seq 3, got %d", seq)
	}
}

func TestAggregatorRecomputeResetsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	input := filepath.Join(dir, "events.jsonl")
	events := sampleEvents()
	if err := storage.NewJsonlSink(input).WriteEvents(ctx, events); err != nil {
		t.Fatalf("write events: %v", err)
	}
	last := events[len(events)-1].Seq

	state := &FileStateStore{Path: filepath.Join(dir, "state.json")}
	out := &FileSummaryStore{Path: filepath.Join(dir, "summaries.json")}
	cfg := Config{BatchSize: 2, StateStore: state, Sinks: []SummarySink{out}}
	if err := NewAggregator(cfg, nil).Run(ctx, input); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cfg.RecomputeFrom = 1
	if err := NewAggregator(cfg, nil).Run(ctx, input); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if seq, ok, _ := state.Load(ctx); !ok || seq != last {
		t.Fatalf("state after recompute: %d, %v", seq, ok)
	}
}
