package cspace

import (
	"math"
	"math/rand/v2"

	"github.com/hupe1980/cspace/distance"
)

// SO2 is the space of planar rotations. A state holds one angle in [-π, π).
type SO2 struct {
	base
}

// NewSO2 creates a planar rotation manifold.
func NewSO2() *SO2 {
	return &SO2{base: newBase("SO2")}
}

func (m *SO2) Kind() Kind             { return KindSO2 }
func (m *SO2) Dimension() int         { return 1 }
func (m *SO2) StateSize() int         { return 1 }
func (m *SO2) MaximumExtent() float64 { return math.Pi }
func (m *SO2) AllocState() State      { return make(State, 1) }
func (m *SO2) FreeState(State)        {}
func (m *SO2) SetDefault(s State)     { s[0] = 0 }
func (m *SO2) Lock()                  { m.locked.Store(true) }

// Angle returns the rotation angle of s.
func (m *SO2) Angle(s State) float64 { return s[0] }

// SetAngle stores a normalized angle into s.
func (m *SO2) SetAngle(s State, theta float64) { s[0] = normalizeAngle(theta) }

func (m *SO2) CopyState(dst, src State) {
	dst[0] = src[0]
}

func (m *SO2) EqualStates(a, b State) bool {
	return a[0] == b[0]
}

func (m *SO2) Distance(a, b State) float64 {
	return distance.Arc(a[0], b[0])
}

func (m *SO2) Interpolate(from, to State, t float64, out State) {
	switch t {
	case 0:
		out[0] = from[0]
		return
	case 1:
		out[0] = to[0]
		return
	}
	d := to[0] - from[0]
	if d > math.Pi {
		d -= 2 * math.Pi
	} else if d < -math.Pi {
		d += 2 * math.Pi
	}
	out[0] = normalizeAngle(from[0] + d*t)
}

func (m *SO2) SampleUniform(rng *rand.Rand, out State) {
	out[0] = -math.Pi + rng.Float64()*2*math.Pi
}

func (m *SO2) SampleUniformNear(rng *rand.Rand, out, near State, dist float64) {
	out[0] = normalizeAngle(near[0] + (2*rng.Float64()-1)*dist)
}

func (m *SO2) SampleGaussian(rng *rand.Rand, out, mean State, stdDev float64) {
	out[0] = normalizeAngle(mean[0] + rng.NormFloat64()*stdDev)
}

func (m *SO2) EnforceBounds(s State) {
	s[0] = normalizeAngle(s[0])
}

func (m *SO2) SatisfiesBounds(s State) bool {
	return s[0] >= -math.Pi && s[0] < math.Pi
}

// normalizeAngle maps theta into [-π, π).
func normalizeAngle(theta float64) float64 {
	if theta >= -math.Pi && theta < math.Pi {
		return theta
	}
	v := math.Mod(theta+math.Pi, 2*math.Pi)
	if v < 0 {
		v += 2 * math.Pi
	}
	return v - math.Pi
}
