package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix = "ALLOCBENCH"

	cfgKeyManifold    = "manifold"
	cfgKeyDimension   = "dimension"
	cfgKeyMode        = "mode"
	cfgKeyGoroutines  = "goroutines"
	cfgKeyStates      = "states"
	cfgKeyRounds      = "rounds"
	cfgKeySlots       = "slots"
	cfgKeyOps         = "ops"
	cfgKeyShards      = "shards"
	cfgKeyBatch       = "batch"
	cfgKeyMemoryLimit = "memory-limit"
	cfgKeyRate        = "rate"
	cfgKeySeed        = "seed"
	cfgKeyMetricsAddr = "metrics-addr"
	cfgKeyLinger      = "linger"
	cfgKeyLogFormat   = "log-format"
	cfgKeyLogLevel    = "log-level"
)

// Benchmark modes.
const (
	modeAllocThenFree = "alloc-then-free"
	modeMixed         = "mixed"
	modeInterleaved   = "interleaved"
	modeStress        = "stress"
)

var modes = []string{modeAllocThenFree, modeMixed, modeInterleaved, modeStress}

// config is the resolved benchmark configuration. Flags take precedence over
// ALLOCBENCH_* environment variables, which take precedence over the config
// file.
type config struct {
	Manifold    string
	Dimension   int
	Mode        string
	Goroutines  int
	States      int
	Rounds      int
	Slots       int
	Ops         int
	Shards      int
	Batch       int
	MemoryLimit int64
	Rate        float64
	Seed        uint64
	MetricsAddr string
	Linger      time.Duration
	LogFormat   string
	LogLevel    slog.Level
}

func registerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(cfgKeyManifold, "se3", "manifold to allocate for: se2, se3 or rv")
	f.Int(cfgKeyDimension, 6, "dimension of the rv manifold")
	f.String(cfgKeyMode, modeStress, "benchmark mode: "+strings.Join(modes, ", "))
	f.Int(cfgKeyGoroutines, runtime.GOMAXPROCS(0), "number of concurrent workers")
	f.Int(cfgKeyStates, 50000, "states per round (alloc-then-free, mixed, interleaved)")
	f.Int(cfgKeyRounds, 20, "rounds per worker (alloc-then-free, mixed, interleaved)")
	f.Int(cfgKeySlots, 5000, "slots per worker (stress)")
	f.Int(cfgKeyOps, 5000000, "operations per worker (stress)")
	f.Int(cfgKeyShards, 0, "allocator shards (0 = default)")
	f.Int(cfgKeyBatch, 0, "payloads carved per refill (0 = default)")
	f.Int64(cfgKeyMemoryLimit, 0, "memory budget in bytes (0 = unlimited)")
	f.Float64(cfgKeyRate, 0, "operations per second across all workers (0 = unthrottled)")
	f.Uint64(cfgKeySeed, 1, "seed of the stress schedule")
	f.String(cfgKeyMetricsAddr, "", "serve Prometheus metrics on this address, e.g. :9100")
	f.Duration(cfgKeyLinger, 0, "keep serving metrics this long after the run")
	f.String(cfgKeyLogFormat, "text", "log format: text or json")
	f.String(cfgKeyLogLevel, "info", "log level: debug, info, warn or error")
}

// loadConfig resolves the configuration for cmd. A missing config file is
// only an error when it was named explicitly.
func loadConfig(cmd *cobra.Command, configFile string) (config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return config{}, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("allocbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := config{
		Manifold:    strings.ToLower(v.GetString(cfgKeyManifold)),
		Dimension:   v.GetInt(cfgKeyDimension),
		Mode:        strings.ToLower(v.GetString(cfgKeyMode)),
		Goroutines:  v.GetInt(cfgKeyGoroutines),
		States:      v.GetInt(cfgKeyStates),
		Rounds:      v.GetInt(cfgKeyRounds),
		Slots:       v.GetInt(cfgKeySlots),
		Ops:         v.GetInt(cfgKeyOps),
		Shards:      v.GetInt(cfgKeyShards),
		Batch:       v.GetInt(cfgKeyBatch),
		MemoryLimit: v.GetInt64(cfgKeyMemoryLimit),
		Rate:        v.GetFloat64(cfgKeyRate),
		Seed:        v.GetUint64(cfgKeySeed),
		MetricsAddr: v.GetString(cfgKeyMetricsAddr),
		Linger:      v.GetDuration(cfgKeyLinger),
		LogFormat:   strings.ToLower(v.GetString(cfgKeyLogFormat)),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(cfgKeyLogLevel))); err != nil {
		return config{}, fmt.Errorf("log level: %w", err)
	}
	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Manifold {
	case "se2", "se3":
	case "rv":
		if c.Dimension <= 0 {
			return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
		}
	default:
		return fmt.Errorf("unknown manifold %q", c.Manifold)
	}

	switch c.Mode {
	case modeAllocThenFree, modeMixed, modeInterleaved:
		if c.States <= 0 || c.Rounds <= 0 {
			return fmt.Errorf("states and rounds must be positive, got %d and %d", c.States, c.Rounds)
		}
	case modeStress:
		if c.Slots <= 0 || c.Ops <= 0 {
			return fmt.Errorf("slots and ops must be positive, got %d and %d", c.Slots, c.Ops)
		}
	default:
		return fmt.Errorf("unknown mode %q (want one of %s)", c.Mode, strings.Join(modes, ", "))
	}

	if c.Goroutines <= 0 {
		return fmt.Errorf("goroutines must be positive, got %d", c.Goroutines)
	}
	if c.Shards < 0 || c.Batch < 0 || c.MemoryLimit < 0 || c.Rate < 0 {
		return errors.New("shards, batch, memory-limit and rate must not be negative")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
