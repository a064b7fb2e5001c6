package cspace

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/hupe1980/cspace/distance"
)

// Bounds is a per-dimension closed interval [Low[i], High[i]].
type Bounds struct {
	Low  []float64
	High []float64
}

// NewBounds returns bounds of the given dimension with every interval set to
// [low, high].
func NewBounds(dim int, low, high float64) Bounds {
	b := Bounds{Low: make([]float64, dim), High: make([]float64, dim)}
	for i := range dim {
		b.Low[i] = low
		b.High[i] = high
	}
	return b
}

// Validate checks the bounds against a dimension.
func (b Bounds) Validate(dim int) error {
	if len(b.Low) != dim || len(b.High) != dim {
		return invalidf("bounds dimension mismatch: expected %d, got low=%d high=%d", dim, len(b.Low), len(b.High))
	}
	for i := range dim {
		if math.IsNaN(b.Low[i]) || math.IsNaN(b.High[i]) || b.Low[i] > b.High[i] {
			return invalidf("bounds for dimension %d are invalid: [%g, %g]", i, b.Low[i], b.High[i])
		}
	}
	return nil
}

// Volume returns the product of the interval lengths.
func (b Bounds) Volume() float64 {
	v := 1.0
	for i := range b.Low {
		v *= b.High[i] - b.Low[i]
	}
	return v
}

func (b Bounds) clone() Bounds {
	return Bounds{Low: append([]float64(nil), b.Low...), High: append([]float64(nil), b.High...)}
}

// RealVector is the n-dimensional Euclidean space restricted to bounds.
type RealVector struct {
	base
	dim      int
	bounds   Bounds
	bounded  bool
	metric   distance.Metric
	distFn   distance.Func
	dimNames []string
}

// RealVectorOption configures a RealVector.
type RealVectorOption func(*RealVector)

// WithMetric selects the distance metric (default distance.MetricL2).
// Unsupported metrics fall back to L2.
func WithMetric(m distance.Metric) RealVectorOption {
	return func(r *RealVector) {
		if fn, err := distance.Provider(m); err == nil {
			r.metric = m
			r.distFn = fn
		}
	}
}

// WithName sets the manifold name.
func WithName(name string) RealVectorOption {
	return func(r *RealVector) {
		r.name = name
	}
}

// NewRealVector creates an unbounded real-vector manifold of dimension dim.
// Bounds must be set before the manifold is used by a Space.
func NewRealVector(dim int, opts ...RealVectorOption) *RealVector {
	if dim < 0 {
		dim = 0
	}
	r := &RealVector{
		base:     newBase(fmt.Sprintf("R%d", dim)),
		dim:      dim,
		metric:   distance.MetricL2,
		distFn:   distance.L2,
		dimNames: make([]string, dim),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RealVector) Kind() Kind              { return KindRealVector }
func (r *RealVector) Dimension() int          { return r.dim }
func (r *RealVector) StateSize() int          { return r.dim }
func (r *RealVector) Metric() distance.Metric { return r.metric }

// SetBounds configures the bounds. It fails once the manifold is locked.
func (r *RealVector) SetBounds(b Bounds) error {
	if err := r.checkUnlocked(); err != nil {
		return err
	}
	if err := b.Validate(r.dim); err != nil {
		return err
	}
	r.bounds = b.clone()
	r.bounded = true
	return nil
}

// SetLowHigh sets every dimension to [low, high].
func (r *RealVector) SetLowHigh(low, high float64) error {
	return r.SetBounds(NewBounds(r.dim, low, high))
}

// Bounds returns a copy of the configured bounds and whether they are set.
func (r *RealVector) Bounds() (Bounds, bool) {
	if !r.bounded {
		return Bounds{}, false
	}
	return r.bounds.clone(), true
}

// SetDimensionName names a coordinate so it can be addressed by name.
func (r *RealVector) SetDimensionName(index int, name string) error {
	if err := r.checkUnlocked(); err != nil {
		return err
	}
	if index < 0 || index >= r.dim {
		return &ErrIndexOutOfRange{Index: index, Count: r.dim}
	}
	r.dimNames[index] = name
	return nil
}

// DimensionName returns the name of a coordinate ("" if unnamed).
func (r *RealVector) DimensionName(index int) string {
	if index < 0 || index >= r.dim {
		return ""
	}
	return r.dimNames[index]
}

// DimensionIndex returns the coordinate index of a named dimension.
func (r *RealVector) DimensionIndex(name string) (int, error) {
	for i, n := range r.dimNames {
		if n != "" && n == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: dimension %q in %q", ErrNotFound, name, r.name)
}

func (r *RealVector) MaximumExtent() float64 {
	if !r.bounded {
		return math.Inf(1)
	}
	return distance.Extent(r.metric, r.bounds.Low, r.bounds.High)
}

func (r *RealVector) AllocState() State {
	return make(State, r.dim)
}

func (r *RealVector) FreeState(State) {}

func (r *RealVector) SetDefault(s State) {
	clear(s[:r.dim])
}

func (r *RealVector) CopyState(dst, src State) {
	copy(dst[:r.dim], src[:r.dim])
}

func (r *RealVector) EqualStates(a, b State) bool {
	for i := range r.dim {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *RealVector) Distance(a, b State) float64 {
	return r.distFn(a[:r.dim], b[:r.dim])
}

func (r *RealVector) Interpolate(from, to State, t float64, out State) {
	switch t {
	case 0:
		copy(out[:r.dim], from[:r.dim])
		return
	case 1:
		copy(out[:r.dim], to[:r.dim])
		return
	}
	for i := range r.dim {
		out[i] = from[i] + (to[i]-from[i])*t
	}
}

func (r *RealVector) SampleUniform(rng *rand.Rand, out State) {
	for i := range r.dim {
		out[i] = uniformReal(rng, r.bounds.Low[i], r.bounds.High[i])
	}
}

func (r *RealVector) SampleUniformNear(rng *rand.Rand, out, near State, dist float64) {
	for i := range r.dim {
		lo := max(r.bounds.Low[i], near[i]-dist)
		hi := min(r.bounds.High[i], near[i]+dist)
		out[i] = uniformReal(rng, lo, hi)
	}
}

func (r *RealVector) SampleGaussian(rng *rand.Rand, out, mean State, stdDev float64) {
	for i := range r.dim {
		v := mean[i] + rng.NormFloat64()*stdDev
		out[i] = min(max(v, r.bounds.Low[i]), r.bounds.High[i])
	}
}

func (r *RealVector) EnforceBounds(s State) {
	if !r.bounded {
		return
	}
	for i := range r.dim {
		s[i] = min(max(s[i], r.bounds.Low[i]), r.bounds.High[i])
	}
}

func (r *RealVector) SatisfiesBounds(s State) bool {
	if !r.bounded {
		return true
	}
	for i := range r.dim {
		if s[i] < r.bounds.Low[i] || s[i] > r.bounds.High[i] {
			return false
		}
	}
	return true
}

func (r *RealVector) Lock() {
	r.locked.Store(true)
}

func (r *RealVector) validate() error {
	if r.dim == 0 {
		return nil
	}
	if !r.bounded {
		return invalidf("bounds not set for %q", r.name)
	}
	return nil
}

func uniformReal(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
