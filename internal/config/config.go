package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ENGINE"

// ReplayConfig holds configuration values loaded from flags, env, or config file.
type ReplayConfig struct {
	Scenario            string
	Seed                string
	ProtocolFeeFraction uint16
	Output              string
	Checkpoint          string
	CheckpointEnabled   bool
	RunName             string
	BatchSize           int
	MaxRetries          int
	RetryBackoff        time.Duration
	DBDSN               string
	NATS                NATSConfig
	Redis               RedisConfig
	MetricsTextfile     string
	LogLevel            string
}

type NATSConfig struct {
	URL     string
	Subject string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v := viper.New()
	v.SetDefault("output", "./data/events.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("run-name", "replay")
	v.SetDefault("batch-size", 500)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("nats.subject", "engine.events")
	v.SetDefault("nats.timeout", 5*time.Second)
	v.SetDefault("redis.ttl", 5*time.Minute)
	v.SetDefault("log-level", "info")

	if err := read(v, cfgFile, flags); err != nil {
		return ReplayConfig{}, err
	}

	fee := v.GetUint("protocol-fee-fraction")
	if fee > 0xffff {
		return ReplayConfig{}, fmt.Errorf("protocol fee fraction %d out of range", fee)
	}

	cfg := ReplayConfig{
		Scenario:            v.GetString("scenario"),
		Seed:                v.GetString("seed"),
		ProtocolFeeFraction: uint16(fee),
		Output:              v.GetString("output"),
		Checkpoint:          v.GetString("checkpoint"),
		CheckpointEnabled:   v.GetBool("checkpoint-enabled"),
		RunName:             v.GetString("run-name"),
		BatchSize:           v.GetInt("batch-size"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		DBDSN:               v.GetString("db.dsn"),
		NATS: NATSConfig{
			URL:     v.GetString("nats.url"),
			Subject: v.GetString("nats.subject"),
			Timeout: v.GetDuration("nats.timeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		MetricsTextfile: v.GetString("metrics.textfile"),
		LogLevel:        v.GetString("log-level"),
	}

	if cfg.Scenario == "" {
		return ReplayConfig{}, fmt.Errorf("scenario is required")
	}
	if cfg.BatchSize <= 0 {
		return ReplayConfig{}, fmt.Errorf("batch size must be positive")
	}

	return cfg, nil
}

// read layers the config file, the ENGINE_* environment and the flags on v.
// A flag named a-b also binds the nested key a.b so that config files can
// group settings.
func read(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			group, rest, ok := strings.Cut(f.Name, "-")
			if !ok || !nestedGroups[group] || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(group+"."+rest, f)
		})
		if bindErr != nil {
			return fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}
	return nil
}

var nestedGroups = map[string]bool{
	"db":      true,
	"nats":    true,
	"redis":   true,
	"metrics": true,
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
