package cspace

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSampler(t *testing.T, m Manifold, seed uint64) *Sampler {
	t.Helper()
	s, err := NewSampler(m, rand.New(rand.NewPCG(seed, 1))) //nolint:gosec // test data
	require.NoError(t, err)
	return s
}

func TestSampler_Uniform(t *testing.T) {
	se3 := NewSE3()
	require.NoError(t, se3.SetBounds(NewBounds(3, -2, 3)))

	c := NewCompound("arm")
	require.NoError(t, c.AddSubManifold(se3, 1))
	require.NoError(t, c.AddSubManifold(NewSO2(), 0.5))
	require.NoError(t, c.AddSubManifold(boundedRV(t, 4), 2))

	for _, m := range []Manifold{boundedRV(t, 3), NewSO2(), NewSO3(), se3, c} {
		t.Run(m.Name(), func(t *testing.T) {
			smp := newTestSampler(t, m, 42)
			out := m.AllocState()
			for range 1000 {
				smp.SampleUniform(out)
				require.True(t, m.SatisfiesBounds(out), "%v", out)
			}
		})
	}
}

func TestSampler_UniformNear(t *testing.T) {
	const dist = 0.2

	t.Run("real vector", func(t *testing.T) {
		rv := boundedRV(t, 3)
		smp := newTestSampler(t, rv, 1)
		near := State{0.95, 0, -0.5}
		out := rv.AllocState()
		for range 500 {
			smp.SampleUniformNear(out, near, dist)
			require.True(t, rv.SatisfiesBounds(out))
			for i := range out {
				require.LessOrEqual(t, math.Abs(out[i]-near[i]), dist)
			}
		}
	})

	t.Run("so2", func(t *testing.T) {
		so2 := NewSO2()
		smp := newTestSampler(t, so2, 2)
		near := State{math.Pi - 0.05}
		out := so2.AllocState()
		for range 500 {
			smp.SampleUniformNear(out, near, dist)
			require.True(t, so2.SatisfiesBounds(out))
			require.LessOrEqual(t, so2.Distance(out, near), dist+1e-12)
		}
	})

	t.Run("so3", func(t *testing.T) {
		so3 := NewSO3()
		smp := newTestSampler(t, so3, 3)
		near := so3.AllocState()
		so3.SetAxisAngle(near, 1, 1, 0, 1)
		out := so3.AllocState()
		for range 500 {
			smp.SampleUniformNear(out, near, dist)
			require.True(t, so3.SatisfiesBounds(out))
			require.LessOrEqual(t, so3.Distance(out, near), dist+1e-9)
		}
	})
}

func TestSampler_Gaussian(t *testing.T) {
	rv := boundedRV(t, 2)
	smp := newTestSampler(t, rv, 9)
	mean := State{0.3, -0.2}
	out := rv.AllocState()

	const n = 4000
	var sum [2]float64
	for range n {
		smp.SampleGaussian(out, mean, 0.1)
		require.True(t, rv.SatisfiesBounds(out))
		sum[0] += out[0]
		sum[1] += out[1]
	}
	assert.InDelta(t, 0.3, sum[0]/n, 0.01)
	assert.InDelta(t, -0.2, sum[1]/n, 0.01)

	// Far outside the bounds every sample is clamped.
	smp.SampleGaussian(out, State{5, 5}, 0.01)
	assert.Equal(t, State{1, 1}, out)
}

func TestSampler_Deterministic(t *testing.T) {
	se2 := NewSE2()
	require.NoError(t, se2.SetBounds(NewBounds(2, 0, 10)))

	a := newTestSampler(t, se2, 5)
	b := newTestSampler(t, se2, 5)
	sa, sb := se2.AllocState(), se2.AllocState()
	for range 20 {
		a.SampleUniform(sa)
		b.SampleUniform(sb)
		require.Equal(t, sa, sb)
	}
	assert.Equal(t, a.Intn(1000), b.Intn(1000))
	assert.Equal(t, a.Float64(), b.Float64())
	assert.Same(t, se2, a.Manifold())
}

func TestNewSampler_Errors(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1)) //nolint:gosec // test data

	_, err := NewSampler(NewRealVector(3), rng)
	assert.ErrorIs(t, err, ErrInvalidConfiguration, "unbounded")

	_, err = NewSampler(NewCompound("empty"), rng)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewSampler(NewSO2(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}
