package cspace

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/cspace/internal/arena"
	"github.com/hupe1980/cspace/resource"
)

const (
	// DefaultRefillBatch is the number of payloads carved from the arena when
	// a shard runs dry.
	DefaultRefillBatch = 64
	// DefaultChunkSize is the size of one off-heap arena chunk.
	DefaultChunkSize = arena.DefaultChunkSize
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	memoryLimit      int64
	budget           *resource.Controller
	chunkSize        int
	maxChunks        int
	shards           int
	refillBatch      int
}

// Option configures a Space.
type Option func(*options)

// WithLogger configures structured logging for setup, teardown and
// allocation failures. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := cspace.NewJSONLogger(slog.LevelInfo)
//	sp := cspace.NewSpace(cspace.NewSE3(), cspace.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a collector for allocator refills and
// projection operations. Pass nil to disable collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMemoryLimit bounds the off-heap memory the space may reserve.
// AllocState fails with ErrOutOfMemory once the limit is reached.
// A limit of 0 disables the bound.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = max(bytes, 0)
	}
}

// WithMemoryBudget makes the space draw memory from a budget shared with
// other spaces. It takes precedence over WithMemoryLimit.
func WithMemoryBudget(budget *resource.Controller) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// WithChunkSize sets the size of the off-heap chunks states are carved from.
// It is raised to fit at least one state.
func WithChunkSize(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.chunkSize = bytes
		}
	}
}

// WithMaxChunks bounds the number of chunks the space may map, independent
// of any memory budget. AllocState fails with ErrOutOfMemory beyond it.
func WithMaxChunks(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxChunks = n
		}
	}
}

// WithShards sets the number of free-list shards.
// Defaults to 4×GOMAXPROCS.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithRefillBatch sets how many payloads an empty shard carves from the
// arena at once.
func WithRefillBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.refillBatch = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		chunkSize:        DefaultChunkSize,
		shards:           4 * runtime.GOMAXPROCS(0),
		refillBatch:      DefaultRefillBatch,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
