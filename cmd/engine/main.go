package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Concentrated liquidity engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scenario and stream its events",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("scenario", "", "scenario YAML path")
	replayCmd.Flags().String("seed", "", "storage seed, overrides the scenario")
	replayCmd.Flags().Uint16("protocol-fee-fraction", 0, "protocol fee fraction in basis points, overrides the scenario")
	replayCmd.Flags().String("output", "./data/events.jsonl", "output events JSONL")
	replayCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().String("run-name", "replay", "checkpoint name of this run")
	replayCmd.Flags().Int("batch-size", 500, "actions per batch")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("db-dsn", "", "Postgres DSN")
	replayCmd.Flags().String("nats-url", "", "NATS URL")
	replayCmd.Flags().String("nats-subject", "engine.events", "NATS subject root")
	replayCmd.Flags().Duration("nats-timeout", 5*time.Second, "NATS publish timeout")
	replayCmd.Flags().String("redis-addr", "", "Redis address")
	replayCmd.Flags().String("redis-password", "", "Redis password")
	replayCmd.Flags().Int("redis-db", 0, "Redis database")
	replayCmd.Flags().Duration("redis-ttl", 5*time.Minute, "snapshot TTL in Redis")
	replayCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Replay a scenario in memory and print its pools",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("scenario", "", "scenario YAML path")
	inspectCmd.Flags().String("seed", "", "storage seed, overrides the scenario")
	inspectCmd.Flags().StringSlice("pool", nil, "token pair to print (comma-separated aliases or addresses)")
	inspectCmd.Flags().Int("fee-level", 0, "fee level whose ticks are listed")
	inspectCmd.Flags().String("side", "left", "token of the pool used as base (left, right)")
	inspectCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate an event log into pool summaries",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("input", "", "input events JSONL")
	aggregateCmd.Flags().String("output", "./data/summaries.json", "output summaries JSON")
	aggregateCmd.Flags().String("db-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "events per flush")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().StringSlice("decimals", nil, "token decimals (comma-separated address=decimals)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
