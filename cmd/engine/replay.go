package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/aggregate"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/replay"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/natsx"
	"liquidityEngine/internal/storage/postgres"
	"liquidityEngine/internal/storage/rediscache"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	sc, err := replay.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retrying := func(sink storage.EventSink) storage.EventSink {
		return storage.Retrying{Sink: sink, MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
	}

	// the JSONL file is appended to, so it is written once per batch and
	// only the network sinks retry
	sinks := storage.Fanout{storage.NewJsonlSink(cfg.Output)}
	var checkpoint storage.Checkpointer = storage.NewCheckpointStore(cfg.Checkpoint, cfg.RunName, cfg.CheckpointEnabled)

	var store *postgres.Store
	if cfg.DBDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		sinks = append(sinks, retrying(store))
		if cfg.CheckpointEnabled {
			checkpoint = postgres.Checkpoint{Store: store, Name: cfg.RunName}
		}
	}

	if cfg.NATS.URL != "" {
		publisher, err := natsx.NewPublisher(natsx.Config{
			URL:            cfg.NATS.URL,
			SubjectRoot:    cfg.NATS.Subject,
			PublishTimeout: cfg.NATS.Timeout,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, retrying(publisher))
	}

	if cfg.Redis.Addr != "" {
		cache, err := rediscache.New(rediscache.Config{
			Enabled:  true,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return err
		}
		defer cache.Close()
		sinks = append(sinks, retrying(cache))
	}

	recorder := metrics.NewRecorder(nil)
	runner := replay.NewRunner(replay.RunConfig{
		BatchSize:           uint64(cfg.BatchSize),
		Seed:                cfg.Seed,
		ProtocolFeeFraction: cfg.ProtocolFeeFraction,
		Recorder:            recorder,
	}, sinks, checkpoint, logger)

	logger.Info("replay start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("actions", len(sc.Actions)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("output", cfg.Output),
		zap.String("db_dsn", redactDSN(cfg.DBDSN)),
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("run_name", cfg.RunName),
	)

	res, err := runner.Run(ctx, sc)
	if err != nil {
		return err
	}

	snapshots, err := res.Engine.Snapshots()
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.UpsertPoolSnapshots(ctx, snapshots); err != nil {
			return fmt.Errorf("upsert snapshots: %w", err)
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	logger.Info("replay complete",
		zap.Int("actions", res.Actions),
		zap.Int("rejected", res.Rejected),
		zap.Int("written", res.Written),
		zap.Int("skipped", res.Skipped),
		zap.Int("pools", len(snapshots)),
		zap.Uint64("last_seq", res.Engine.LastSeq()),
	)

	return printSummaries(cfg.Output, logger)
}

// printSummaries logs the pool summaries of the whole event log.
func printSummaries(path string, logger *zap.Logger) error {
	records, err := storage.ReadJsonl(path)
	if err != nil {
		return err
	}
	agg := aggregate.NewAggregator(aggregate.Config{}, logger)
	for _, record := range records {
		if err := agg.Add(record); err != nil {
			return fmt.Errorf("aggregate seq %d: %w", record.Seq, err)
		}
	}
	for _, s := range agg.Summaries() {
		logger.Info("pool summary",
			zap.String("pool", s.PoolKey()),
			zap.Uint64("swaps", s.SwapCount),
			zap.String("volume0", s.Volume0),
			zap.String("volume1", s.Volume1),
			zap.String("fee0", s.Fee0),
			zap.String("fee1", s.Fee1),
			zap.String("reserve0", s.Reserve0),
			zap.String("reserve1", s.Reserve1),
		)
	}
	return nil
}
