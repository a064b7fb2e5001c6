package cspace

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cspace/internal/arena"
	"github.com/hupe1980/cspace/resource"
	"github.com/hupe1980/cspace/testutil"
)

func newTestSpace(t testing.TB, m Manifold, opts ...Option) *Space {
	t.Helper()
	sp := NewSpace(m, opts...)
	require.NoError(t, sp.Setup())
	t.Cleanup(func() { _ = sp.Close() })
	return sp
}

func TestSpace_Setup(t *testing.T) {
	t.Run("not setup", func(t *testing.T) {
		sp := NewSpace(NewSO2())
		_, err := sp.AllocState()
		assert.ErrorIs(t, err, ErrNotSetup)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.False(t, sp.IsSetup())
	})

	t.Run("nil manifold", func(t *testing.T) {
		assert.ErrorIs(t, NewSpace(nil).Setup(), ErrInvalidConfiguration)
	})

	t.Run("unbounded real vector", func(t *testing.T) {
		c := NewCompound("C")
		require.NoError(t, c.AddSubManifold(NewRealVector(2), 1))
		sp := NewSpace(c)
		assert.ErrorIs(t, sp.Setup(), ErrInvalidConfiguration)
		assert.False(t, c.IsLocked(), "failed setup leaves the tree unlocked")
	})

	t.Run("empty compound", func(t *testing.T) {
		assert.ErrorIs(t, NewSpace(NewCompound("C")).Setup(), ErrInvalidConfiguration)
	})

	t.Run("locks the tree", func(t *testing.T) {
		rv := boundedRV(t, 2)
		c := NewCompound("C")
		require.NoError(t, c.AddSubManifold(rv, 1))

		sp := newTestSpace(t, c)
		assert.True(t, sp.IsSetup())
		assert.True(t, rv.IsLocked())
		assert.ErrorIs(t, c.AddSubManifold(NewSO2(), 1), ErrInvalidConfiguration)
		assert.ErrorIs(t, rv.SetLowHigh(0, 1), ErrInvalidConfiguration)

		// Setup twice is a no-op.
		assert.NoError(t, sp.Setup())
	})

	t.Run("logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		sp := NewSpace(NewSO3(), WithLogger(logger), WithShards(3))
		require.NoError(t, sp.Setup())
		require.NoError(t, sp.Close())

		out := buf.String()
		assert.Contains(t, out, "space ready")
		assert.Contains(t, out, "shards=3")
		assert.Contains(t, out, "space="+sp.ID())
		assert.Contains(t, out, "space closed")
	})
}

func TestSpace_AllocFree(t *testing.T) {
	se3 := NewSE3()
	require.NoError(t, se3.SetBounds(NewBounds(3, -1, 1)))
	sp := newTestSpace(t, se3, WithShards(2), WithRefillBatch(4))

	s, err := sp.AllocState()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Len(t, s, 7)
	assert.Equal(t, State{0, 0, 0, 0, 0, 0, 1}, s, "default initialized")

	se3.SetXYZ(s, 1, 2, 3)
	c, err := sp.CloneState(s)
	require.NoError(t, err)
	assert.True(t, sp.EqualStates(s, c))
	assert.Zero(t, sp.Distance(s, c))

	sp.FreeState(s)
	sp.FreeState(c)

	// Recycled payloads come back default initialized.
	for range 10 {
		s, err := sp.AllocState()
		require.NoError(t, err)
		assert.Equal(t, State{0, 0, 0, 0, 0, 0, 1}, s)
		defer sp.FreeState(s)
	}

	st := sp.Stats()
	assert.Equal(t, uint64(12), st.Allocs)
	assert.Equal(t, uint64(2), st.Frees)
	assert.Equal(t, int64(10), st.Live)
	assert.Equal(t, 2, st.Shards)
	assert.Equal(t, 7, st.StateSize)
	assert.Positive(t, st.BytesReserved)
}

func TestSpace_AllocStates(t *testing.T) {
	sp := newTestSpace(t, boundedRV(t, 3))

	states, err := sp.AllocStates(100)
	require.NoError(t, err)
	assert.Len(t, states, 100)

	seen := map[*float64]bool{}
	for _, s := range states {
		assert.False(t, seen[&s[0]], "payload handed out twice")
		seen[&s[0]] = true
	}

	sp.FreeStates(states)
	assert.Zero(t, sp.Stats().Live)

	_, err = sp.AllocStates(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSpace_OutOfMemory(t *testing.T) {
	// 24-byte states, 64-byte chunks, two chunks of budget: four states fit.
	sp := newTestSpace(t, boundedRV(t, 3),
		WithShards(1),
		WithChunkSize(64),
		WithMemoryLimit(128),
	)

	states, err := sp.AllocStates(4)
	require.NoError(t, err)

	_, err = sp.AllocState()
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Equal(t, uint64(1), sp.Stats().OutOfMemory)

	// All-or-nothing bulk allocation.
	_, err = sp.AllocStates(3)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, int64(4), sp.Stats().Live)

	// Freed payloads are reused without new memory.
	sp.FreeState(states[0])
	s, err := sp.AllocState()
	require.NoError(t, err)
	assert.Same(t, &states[0][0], &s[0])

	assert.Equal(t, int64(128), sp.MemoryBudget().MemoryUsage())

	st := sp.Stats()
	assert.Equal(t, int64(128), st.BudgetLimit)
	assert.Equal(t, int64(128), st.BudgetUsed)
	assert.Equal(t, int64(128), st.BudgetPeak)
	assert.Equal(t, int64(st.OutOfMemory), st.BudgetDenied) //nolint:gosec // small counter
	assert.InDelta(t, 75, st.ArenaUsage, 1e-9, "48 of 64 bytes carved per chunk")
}

func TestSpace_MaxChunks(t *testing.T) {
	// Two 24-byte states per 64-byte chunk.
	sp := newTestSpace(t, boundedRV(t, 3),
		WithShards(1),
		WithChunkSize(64),
		WithMaxChunks(1),
	)

	_, err := sp.AllocStates(2)
	require.NoError(t, err)

	_, err = sp.AllocState()
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.ErrorIs(t, err, arena.ErrMaxChunksExceeded)

	st := sp.Stats()
	assert.Equal(t, uint64(1), st.Chunks)
	assert.Equal(t, uint64(1), st.OutOfMemory)
	assert.Zero(t, st.BudgetLimit, "no budget configured")
}

func TestSpace_SharedBudget(t *testing.T) {
	budget := resource.NewController(resource.Config{MemoryLimitBytes: 64})

	a := newTestSpace(t, boundedRV(t, 2), WithChunkSize(64), WithMemoryBudget(budget))
	b := newTestSpace(t, boundedRV(t, 2), WithChunkSize(64), WithMemoryBudget(budget))

	_, err := a.AllocState()
	require.NoError(t, err)
	_, err = b.AllocState()
	assert.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, a.Close())
	assert.Zero(t, budget.MemoryUsage())

	_, err = b.AllocState()
	assert.NoError(t, err)
}

func TestSpace_Close(t *testing.T) {
	sp := NewSpace(boundedRV(t, 2))
	require.NoError(t, sp.Setup())

	_, err := sp.AllocState()
	require.NoError(t, err)

	require.NoError(t, sp.Close())
	require.NoError(t, sp.Close(), "close is idempotent")

	_, err = sp.AllocState()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, sp.Setup(), ErrClosed)
	_, err = sp.NewSampler(1)
	assert.ErrorIs(t, err, ErrClosed)

	st := sp.Stats()
	assert.Zero(t, st.BytesReserved)
	assert.Equal(t, uint64(1), st.Allocs)
}

func TestSpace_ZeroSizedState(t *testing.T) {
	sp := newTestSpace(t, NewRealVector(0))

	s, err := sp.AllocState()
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Empty(t, s)
	sp.FreeState(s)
}

func TestSpace_Steal(t *testing.T) {
	mc := &BasicMetricsCollector{}
	sp := newTestSpace(t, boundedRV(t, 2), WithShards(2), WithRefillBatch(8), WithMetricsCollector(mc))

	// The first allocation carves a batch of eight into one shard; the
	// second lands on the empty neighbour, which steals half of it.
	states, err := sp.AllocStates(8)
	require.NoError(t, err)
	defer sp.FreeStates(states)

	st := sp.Stats()
	assert.Equal(t, uint64(8), st.FreshAllocs)
	assert.Equal(t, uint64(1), st.Refills)
	assert.Equal(t, uint64(1), st.Steals)
	assert.Zero(t, st.Idle)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.RefillCount)
	assert.Equal(t, int64(8), stats.RefillPayloads)
	assert.Equal(t, int64(1), stats.StealCount)
	assert.Equal(t, int64(4), stats.StolenPayloads)
}

// Randomized multi-goroutine allocation: no payload is ever handed out to
// two owners at once and nothing is lost.
func TestSpace_ConcurrentStress(t *testing.T) {
	const goroutines = 10
	ops := 5_000_000
	if testing.Short() {
		ops = 50_000
	}

	sp := newTestSpace(t, boundedRV(t, 3), WithRefillBatch(16))
	rng := testutil.NewRNG(4711)

	type held struct {
		s   State
		tag float64
	}

	var g errgroup.Group
	for w := range goroutines {
		r := rng.Rand()
		g.Go(func() error {
			owner := float64(w + 1)
			var mine []held
			for i := range ops {
				if len(mine) == 0 || (len(mine) < 1024 && r.IntN(2) == 0) {
					s, err := sp.AllocState()
					if err != nil {
						return err
					}
					if s[0] != 0 || s[1] != 0 {
						return fmt.Errorf("goroutine %d: state not default initialized: %v", w, s)
					}
					s[0], s[1] = owner, float64(i)
					mine = append(mine, held{s: s, tag: float64(i)})
					continue
				}
				k := r.IntN(len(mine))
				h := mine[k]
				if h.s[0] != owner || h.s[1] != h.tag {
					return fmt.Errorf("goroutine %d: payload shared with another owner: %v", w, h.s)
				}
				mine[k] = mine[len(mine)-1]
				mine = mine[:len(mine)-1]
				sp.FreeState(h.s)
			}
			for _, h := range mine {
				sp.FreeState(h.s)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	st := sp.Stats()
	assert.Zero(t, st.Live)
	assert.Equal(t, st.Allocs, st.Frees)
	assert.Equal(t, int(st.FreshAllocs), st.Idle, "every carved payload is back on a free list")
}

func TestSpace_NewSampler(t *testing.T) {
	se2 := NewSE2()
	require.NoError(t, se2.SetBounds(NewBounds(2, 0, 1)))
	sp := newTestSpace(t, se2)

	a, err := sp.NewSampler(7)
	require.NoError(t, err)
	b, err := sp.NewSampler(7)
	require.NoError(t, err)

	sa, sb := se2.AllocState(), se2.AllocState()
	for range 10 {
		a.SampleUniform(sa)
		b.SampleUniform(sb)
		assert.Equal(t, sa, sb, "same seed, same samples")
		assert.True(t, sp.SatisfiesBounds(sa))
	}

	_, err = NewSampler(NewRealVector(2), a.rng)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = NewSampler(nil, nil)
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	o := applyOptions([]Option{
		WithShards(0),
		WithRefillBatch(-1),
		WithChunkSize(0),
		WithMemoryLimit(-5),
		WithLogger(nil),
		WithMetricsCollector(nil),
		nil,
	})
	assert.Positive(t, o.shards)
	assert.Equal(t, DefaultRefillBatch, o.refillBatch)
	assert.Equal(t, DefaultChunkSize, o.chunkSize)
	assert.Zero(t, o.memoryLimit)
	assert.NotNil(t, o.logger)
	assert.Equal(t, NoopMetricsCollector{}, o.metricsCollector)
}

func TestOutOfMemoryMapping(t *testing.T) {
	assert.ErrorIs(t, outOfMemory(errors.New("boom")), ErrOutOfMemory)
}

func BenchmarkSpace_AllocFree(b *testing.B) {
	se3 := NewSE3()
	_ = se3.SetBounds(NewBounds(3, -1, 1))
	sp := newTestSpace(b, se3)

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s, err := sp.AllocState()
			if err != nil {
				b.Error(err)
				return
			}
			sp.FreeState(s)
		}
	})
}

func BenchmarkSpace_AllocThenFree(b *testing.B) {
	se3 := NewSE3()
	_ = se3.SetBounds(NewBounds(3, -1, 1))
	sp := newTestSpace(b, se3)
	states := make([]State, 1000)

	b.ReportAllocs()
	for b.Loop() {
		for i := range states {
			states[i], _ = sp.AllocState()
		}
		sp.FreeStates(states)
	}
}

func BenchmarkHeap_AllocState(b *testing.B) {
	se3 := NewSE3()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			s := se3.AllocState()
			se3.FreeState(s)
		}
	})
}
