package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	Scenario string
	Seed     string
	Pool     []string
	FeeLevel int
	Side     string
	LogLevel string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v := viper.New()
	v.SetDefault("fee-level", 0)
	v.SetDefault("side", "left")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return InspectConfig{}, err
	}

	cfg := InspectConfig{
		Scenario: v.GetString("scenario"),
		Seed:     v.GetString("seed"),
		Pool:     getStringSlice(v, "pool"),
		FeeLevel: v.GetInt("fee-level"),
		Side:     strings.ToLower(v.GetString("side")),
		LogLevel: v.GetString("log-level"),
	}
	if cfg.Scenario == "" {
		return InspectConfig{}, fmt.Errorf("scenario is required")
	}
	if len(cfg.Pool) != 0 && len(cfg.Pool) != 2 {
		return InspectConfig{}, fmt.Errorf("pool needs exactly two tokens, got %d", len(cfg.Pool))
	}
	if cfg.Side != "left" && cfg.Side != "right" {
		return InspectConfig{}, fmt.Errorf("side must be left or right, got %q", cfg.Side)
	}
	return cfg, nil
}

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input         string
	Output        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	Decimals      map[string]uint8
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v := viper.New()
	v.SetDefault("batch-size", 1000)
	v.SetDefault("output", "./data/summaries.json")
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return AggregateConfig{}, err
	}

	decimals, err := parseDecimals(getStringSlice(v, "decimals"))
	if err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		Input:         v.GetString("input"),
		Output:        v.GetString("output"),
		PGDSN:         v.GetString("db.dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		Decimals:      decimals,
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Input == "" {
		return AggregateConfig{}, fmt.Errorf("input is required")
	}
	if cfg.BatchSize <= 0 {
		return AggregateConfig{}, fmt.Errorf("batch size must be positive")
	}
	return cfg, nil
}

// parseDecimals reads token=decimals pairs.
func parseDecimals(items []string) (map[string]uint8, error) {
	out := make(map[string]uint8, len(items))
	for _, item := range items {
		token, raw, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("invalid decimals %q, want token=decimals", item)
		}
		d, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid decimals %q", item)
		}
		out[strings.ToLower(strings.TrimSpace(token))] = uint8(d)
	}
	return out, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
