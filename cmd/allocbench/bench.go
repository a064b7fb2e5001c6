package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/cspace"
)

// result summarizes one benchmark run.
type result struct {
	Mode    string
	Ops     uint64
	Refused uint64
	Elapsed time.Duration
	Stats   cspace.Stats
}

// OpsPerSecond is the throughput over all workers.
func (r result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

func newManifold(cfg config) (cspace.Manifold, error) {
	switch cfg.Manifold {
	case "se2":
		m := cspace.NewSE2()
		return m, m.SetBounds(cspace.NewBounds(2, 0, 1))
	case "se3":
		m := cspace.NewSE3()
		return m, m.SetBounds(cspace.NewBounds(3, 0, 1))
	case "rv":
		m := cspace.NewRealVector(cfg.Dimension)
		return m, m.SetLowHigh(0, 1)
	default:
		return nil, fmt.Errorf("unknown manifold %q", cfg.Manifold)
	}
}

func spaceOptions(cfg config, logger *cspace.Logger, mc cspace.MetricsCollector) []cspace.Option {
	opts := []cspace.Option{
		cspace.WithLogger(logger),
		cspace.WithMetricsCollector(mc),
		cspace.WithMemoryLimit(cfg.MemoryLimit),
	}
	if cfg.Shards > 0 {
		opts = append(opts, cspace.WithShards(cfg.Shards))
	}
	if cfg.Batch > 0 {
		opts = append(opts, cspace.WithRefillBatch(cfg.Batch))
	}
	return opts
}

// bench drives one space from cfg.Goroutines workers.
type bench struct {
	cfg     config
	space   *cspace.Space
	limiter *rate.Limiter
	ops     atomic.Uint64
	refused atomic.Uint64
}

func newBench(cfg config, sp *cspace.Space) *bench {
	b := &bench{cfg: cfg, space: sp}
	if cfg.Rate > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(1, int(cfg.Rate/100)))
	}
	return b
}

// run executes the configured mode and returns its summary. The space must be
// set up.
func (b *bench) run(ctx context.Context) (result, error) {
	var work func(ctx context.Context, worker int) error
	switch b.cfg.Mode {
	case modeAllocThenFree:
		work = b.allocThenFree
	case modeMixed:
		work = b.mixed
	case modeInterleaved:
		work = b.interleaved
	case modeStress:
		work = b.stress
	default:
		return result{}, fmt.Errorf("unknown mode %q", b.cfg.Mode)
	}

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range b.cfg.Goroutines {
		g.Go(func() error { return work(gctx, w) })
	}
	err := g.Wait()

	return result{
		Mode:    b.cfg.Mode,
		Ops:     b.ops.Load(),
		Refused: b.refused.Load(),
		Elapsed: time.Since(start),
		Stats:   b.space.Stats(),
	}, err
}

func (b *bench) wait(ctx context.Context) error {
	if b.limiter == nil {
		return ctx.Err()
	}
	return b.limiter.Wait(ctx)
}

func (b *bench) alloc(ctx context.Context) (cspace.State, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	s, err := b.space.AllocState()
	if err != nil {
		return nil, err
	}
	b.ops.Add(1)
	return s, nil
}

func (b *bench) free(s cspace.State) {
	b.space.FreeState(s)
	b.ops.Add(1)
}

// allocThenFree allocates a whole round before freeing it.
func (b *bench) allocThenFree(ctx context.Context, _ int) error {
	states := make([]cspace.State, b.cfg.States)
	for range b.cfg.Rounds {
		for i := range states {
			s, err := b.alloc(ctx)
			if err != nil {
				b.space.FreeStates(states[:i])
				return err
			}
			states[i] = s
		}
		for _, s := range states {
			b.free(s)
		}
	}
	return nil
}

// mixed frees every state right after allocating it.
func (b *bench) mixed(ctx context.Context, _ int) error {
	for range b.cfg.Rounds * b.cfg.States {
		s, err := b.alloc(ctx)
		if err != nil {
			return err
		}
		b.free(s)
	}
	return nil
}

// interleaved frees one state and keeps the next, then frees the round.
func (b *bench) interleaved(ctx context.Context, _ int) error {
	states := make([]cspace.State, b.cfg.States)
	for range b.cfg.Rounds {
		for i := range states {
			s, err := b.alloc(ctx)
			if err == nil {
				b.free(s)
				s, err = b.alloc(ctx)
			}
			if err != nil {
				b.space.FreeStates(states[:i])
				return err
			}
			states[i] = s
		}
		for _, s := range states {
			b.free(s)
		}
	}
	return nil
}

// stress toggles random slots between allocated and free. Allocations refused
// for lack of memory leave the slot empty.
func (b *bench) stress(ctx context.Context, worker int) error {
	rng := rand.New(rand.NewPCG(b.cfg.Seed, uint64(worker))) //nolint:gosec // schedule, not crypto
	slots := make([]cspace.State, b.cfg.Slots)
	defer func() {
		for _, s := range slots {
			if s != nil {
				b.free(s)
			}
		}
	}()

	for range b.cfg.Ops {
		j := rng.IntN(len(slots))
		if slots[j] != nil {
			b.free(slots[j])
			slots[j] = nil
			continue
		}
		s, err := b.alloc(ctx)
		switch {
		case errors.Is(err, cspace.ErrOutOfMemory):
			b.refused.Add(1)
		case err != nil:
			return err
		default:
			slots[j] = s
		}
	}
	return nil
}
