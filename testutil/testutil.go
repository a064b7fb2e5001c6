package testutil

import (
	"math"
	"math/rand/v2"
	"sync"
)

const stream = 0x9e3779b97f4a7c15

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: newRand(seed),
		seed: seed,
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^stream)) //nolint:gosec // test data
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = newRand(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// Rand returns an independent, unsynchronized generator seeded from r.
// Use one per goroutine.
func (r *RNG) Rand() *rand.Rand {
	return newRand(r.Uint64())
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniformRange fills dst with values in [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float64, minVal, maxVal float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = minVal + r.rand.Float64()*(maxVal-minVal)
	}
}

// UniformPoints returns num points of the given dimension in [minVal, maxVal).
func (r *RNG) UniformPoints(num, dimensions int, minVal, maxVal float64) [][]float64 {
	points := make([][]float64, num)
	for i := range points {
		points[i] = make([]float64, dimensions)
		r.FillUniformRange(points[i], minVal, maxVal)
	}
	return points
}

// Angle returns an angle in [-π, π).
func (r *RNG) Angle() float64 {
	return -math.Pi + 2*math.Pi*r.Float64()
}

// UnitQuaternion returns a uniformly distributed rotation as (x, y, z, w).
func (r *RNG) UnitQuaternion() [4]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var q [4]float64
	var n float64
	for n < 1e-6 {
		n = 0
		for i := range q {
			q[i] = r.rand.NormFloat64()
			n += q[i] * q[i]
		}
	}
	n = math.Sqrt(n)
	for i := range q {
		q[i] /= n
	}
	return q
}

// OpSchedule returns a random sequence of n allocator operations: true means
// allocate, false means free. allocRatio is the probability of an allocation.
func (r *RNG) OpSchedule(n int, allocRatio float64) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make([]bool, n)
	for i := range ops {
		ops[i] = r.rand.Float64() < allocRatio
	}
	return ops
}
