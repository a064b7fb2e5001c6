package cspace

import (
	"math/rand/v2"
)

// Sampler draws states of one manifold from its own random source.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	manifold Manifold
	rng      *rand.Rand
}

// NewSampler returns a sampler for m drawing from rng. m must be validated:
// bounded real-vector leaves are required for sampling.
func NewSampler(m Manifold, rng *rand.Rand) (*Sampler, error) {
	if m == nil || rng == nil {
		return nil, invalidf("sampler needs a manifold and a random source")
	}
	if v, ok := m.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return &Sampler{manifold: m, rng: rng}, nil
}

// Manifold returns the sampled manifold.
func (s *Sampler) Manifold() Manifold { return s.manifold }

// SampleUniform writes a uniformly drawn state into out.
func (s *Sampler) SampleUniform(out State) {
	s.manifold.SampleUniform(s.rng, out)
}

// SampleUniformNear writes a state drawn uniformly around near into out.
func (s *Sampler) SampleUniformNear(out, near State, dist float64) {
	s.manifold.SampleUniformNear(s.rng, out, near, dist)
}

// SampleGaussian writes a state drawn around mean into out.
func (s *Sampler) SampleGaussian(out, mean State, stdDev float64) {
	s.manifold.SampleGaussian(s.rng, out, mean, stdDev)
}

// Intn returns a uniform integer in [0, n). Used to draw slot indices.
func (s *Sampler) Intn(n int) int {
	return s.rng.IntN(n)
}

// Float64 returns a uniform value in [0, 1).
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}
