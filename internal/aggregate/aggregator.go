package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	BatchSize int
	// RecomputeFrom restarts from scratch with the events at or after this
	// unix timestamp, ignoring stored state.
	RecomputeFrom uint64
	StateStore    StateStore
	Sinks         []SummarySink
}

// Aggregator folds engine events into per-pool summaries.
type Aggregator struct {
	cfg          Config
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	lastSeq      uint64
}

func NewAggregator(cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Aggregator{
		cfg:          cfg,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Restore continues from summaries written by an earlier run.
func (a *Aggregator) Restore(summaries []model.PoolSummary) error {
	for _, s := range summaries {
		acc, err := FromSummary(s)
		if err != nil {
			return err
		}
		a.accumulators[s.PoolKey()] = acc
	}
	return nil
}

// Add folds one record. Records that touch no pool are ignored.
func (a *Aggregator) Add(record model.EventRecord) error {
	if record.Seq > a.lastSeq {
		a.lastSeq = record.Seq
	}
	data, err := record.Decode()
	if err != nil {
		return err
	}
	token0, token1, ok, err := poolOf(data)
	if err != nil || !ok {
		return err
	}
	key := token0 + ":" + token1
	acc := a.accumulators[key]
	if acc == nil {
		acc = NewAccumulator(token0, token1)
		a.accumulators[key] = acc
	}
	return acc.AddEvent(record, data)
}

// Summaries lists the pools in key order.
func (a *Aggregator) Summaries() []model.PoolSummary {
	keys := make([]string, 0, len(a.accumulators))
	for key := range a.accumulators {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]model.PoolSummary, 0, len(keys))
	for _, key := range keys {
		out = append(out, a.accumulators[key].Summary())
	}
	return out
}

// Run aggregates an event JSONL file, skipping the events already covered by
// the state store.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	startSeq, err := a.loadStartSeq(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, applied, skipped, failed, pending int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode event record", zap.Error(err))
			continue
		}
		if record.Seq <= startSeq || record.Timestamp < a.cfg.RecomputeFrom {
			skipped++
			continue
		}
		if err := a.Add(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.Uint64("seq", record.Seq), zap.String("event", string(record.Name)))
			continue
		}
		applied++
		pending++

		if pending >= a.cfg.BatchSize {
			if err := a.flush(ctx); err != nil {
				return err
			}
			pending = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	if err := a.flush(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("pools", len(a.accumulators)),
	)
	return nil
}

func (a *Aggregator) loadStartSeq(ctx context.Context) (uint64, error) {
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	if a.cfg.RecomputeFrom > 0 {
		if r, ok := a.cfg.StateStore.(resetter); ok {
			if err := r.Reset(ctx); err != nil {
				return 0, err
			}
		}
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	a.lastSeq = last
	return last, nil
}

// flush hands the summaries to the sinks before the state moves forward.
func (a *Aggregator) flush(ctx context.Context) error {
	summaries := a.Summaries()
	for _, sink := range a.cfg.Sinks {
		if err := sink.WriteSummaries(ctx, summaries); err != nil {
			return err
		}
	}
	if a.cfg.StateStore == nil {
		return nil
	}
	return a.cfg.StateStore.Save(ctx, a.lastSeq)
}

// poolOf returns the canonical tokens of the pool an event belongs to.
func poolOf(data interface{}) (string, string, bool, error) {
	switch ev := data.(type) {
	case *model.SwapEventData:
		id, _, err := dex.NewPoolID(common.HexToAddress(ev.TokenIn), common.HexToAddress(ev.TokenOut))
		if err != nil {
			return "", "", false, err
		}
		return id.Left.Hex(), id.Right.Hex(), true, nil
	case *model.OpenPositionEventData:
		return ev.Token0, ev.Token1, true, nil
	case *model.ClosePositionEventData:
		return ev.Token0, ev.Token1, true, nil
	case *model.HarvestFeeEventData:
		return ev.Token0, ev.Token1, true, nil
	case *model.UpdatePoolStateEventData:
		return ev.Snapshot.Token0, ev.Snapshot.Token1, true, nil
	default:
		return "", "", false, nil
	}
}
