package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	BatchSize           uint64
	MaxRetries          int
	RetryBackoff        time.Duration
	Seed                string
	ProtocolFeeFraction uint16
	Recorder            *metrics.Recorder
}

// Result reports a finished replay.
type Result struct {
	Engine   *dex.Engine
	Actions  int
	Rejected int
	Written  int
	Skipped  int
}

// Runner replays scenarios and writes their events to a sink.
type Runner struct {
	cfg        RunConfig
	sink       storage.EventSink
	checkpoint storage.Checkpointer
	logger     *zap.Logger
}

// NewRunner builds a Runner with its dependencies. checkpoint may be nil.
func NewRunner(cfg RunConfig, sink storage.EventSink, checkpoint storage.Checkpointer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		sink:       sink,
		checkpoint: checkpoint,
		logger:     logger,
	}
}

// Run executes the scenario on a fresh engine. Actions run in batches; after
// each batch its events are written and the checkpoint advances. Events at or
// below the stored checkpoint were written by an earlier run and are skipped.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if r.sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if len(sc.Actions) == 0 {
		return nil, fmt.Errorf("scenario has no actions")
	}

	engine, err := r.newEngine(sc)
	if err != nil {
		return nil, err
	}

	var written uint64
	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			written = last
			r.logger.Info("resume from checkpoint", zap.Uint64("last_seq", last))
		}
	}

	ranges, err := Batches(len(sc.Actions), r.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	res := &Result{Engine: engine, Actions: len(sc.Actions)}
	s := &session{engine: engine, sc: sc, labels: make(map[string]pool.PositionID)}
	for _, batch := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for i := batch.From; i <= batch.To; i++ {
			rejected, err := apply(s, i, sc.Actions[i])
			if err != nil {
				return nil, err
			}
			if rejected {
				res.Rejected++
			}
		}

		events := engine.DrainEvents()
		fresh := storage.Skip(events, written)
		res.Skipped += len(events) - len(fresh)
		if err := r.write(ctx, fresh); err != nil {
			return nil, fmt.Errorf("write events: %w", err)
		}
		res.Written += len(fresh)
		if len(fresh) > 0 {
			written = fresh[len(fresh)-1].Seq
			if r.checkpoint != nil {
				if err := r.checkpoint.Save(ctx, written); err != nil {
					return nil, err
				}
			}
		}

		r.logger.Info("batch complete",
			zap.Int("from", batch.From),
			zap.Int("to", batch.To),
			zap.Int("actions", batch.Len()),
			zap.Int("events", len(fresh)),
			zap.Uint64("last_seq", engine.LastSeq()),
		)
	}

	return res, nil
}

func (r *Runner) newEngine(sc *Scenario) (*dex.Engine, error) {
	opts := dex.Options{
		Seed:                sc.Seed,
		ProtocolFeeFraction: sc.ProtocolFeeFraction,
		Logger:              r.logger,
	}
	if r.cfg.Seed != "" {
		opts.Seed = r.cfg.Seed
	}
	if r.cfg.ProtocolFeeFraction != 0 {
		opts.ProtocolFeeFraction = r.cfg.ProtocolFeeFraction
	}
	if r.cfg.Recorder != nil {
		opts.Observer = r.cfg.Recorder
	}
	return dex.New(opts)
}

func (r *Runner) write(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	err := storage.WithRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := r.sink.WriteEvents(ctx, events)
		if err != nil {
			r.logger.Warn("write events failed", zap.Error(err), zap.Uint64("first_seq", events[0].Seq))
		}
		return err
	})
	if r.cfg.Recorder != nil {
		r.cfg.Recorder.ObserveWrite(len(events), err)
	}
	return err
}

// apply runs one action and checks it against its expected error. It reports
// whether the engine rejected the call as expected.
func apply(s *session, index int, a Action) (bool, error) {
	err := handlers[a.Op](s, a)
	switch {
	case a.ExpectError == "" && err != nil:
		return false, fmt.Errorf("action %d (%s): %w", index, a.Op, err)
	case a.ExpectError == "":
		return false, nil
	case err == nil:
		return false, fmt.Errorf("action %d (%s): expected error %q: %w", index, a.Op, a.ExpectError, model.ErrWrongActionResult)
	case a.ExpectError != "any" && model.ErrorName(err) != a.ExpectError:
		return false, fmt.Errorf("action %d (%s): expected error %q, got %q: %w", index, a.Op, a.ExpectError, model.ErrorName(err), model.ErrWrongActionResult)
	default:
		return true, nil
	}
}
