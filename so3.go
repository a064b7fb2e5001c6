package cspace

import (
	"math"
	"math/rand/v2"

	"github.com/hupe1980/cspace/distance"
)

const quaternionTolerance = 1e-9

// Quaternion is a rotation stored as (X, Y, Z, W), W being the scalar part.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the null rotation.
var IdentityQuaternion = Quaternion{W: 1}

// AxisAngle returns the unit quaternion rotating by angle around (ax, ay, az).
// A zero axis yields the identity.
func AxisAngle(ax, ay, az, angle float64) Quaternion {
	n := math.Sqrt(ax*ax + ay*ay + az*az)
	if n < quaternionTolerance {
		return IdentityQuaternion
	}
	s := math.Sin(angle/2) / n
	return Quaternion{X: ax * s, Y: ay * s, Z: az * s, W: math.Cos(angle / 2)}
}

// Mul returns the Hamilton product q*p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return Quaternion{
		X: q.W*p.X + q.X*p.W + q.Y*p.Z - q.Z*p.Y,
		Y: q.W*p.Y - q.X*p.Z + q.Y*p.W + q.Z*p.X,
		Z: q.W*p.Z + q.X*p.Y - q.Y*p.X + q.Z*p.W,
		W: q.W*p.W - q.X*p.X - q.Y*p.Y - q.Z*p.Z,
	}
}

// Norm returns the Euclidean norm of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// SO3 is the space of 3D rotations, represented by unit quaternions.
type SO3 struct {
	base
}

// NewSO3 creates a 3D rotation manifold.
func NewSO3() *SO3 {
	return &SO3{base: newBase("SO3")}
}

func (m *SO3) Kind() Kind             { return KindSO3 }
func (m *SO3) Dimension() int         { return 3 }
func (m *SO3) StateSize() int         { return 4 }
func (m *SO3) MaximumExtent() float64 { return math.Pi / 2 }
func (m *SO3) FreeState(State)        {}
func (m *SO3) Lock()                  { m.locked.Store(true) }

func (m *SO3) AllocState() State {
	s := make(State, 4)
	m.SetDefault(s)
	return s
}

// Quaternion reads the rotation stored in s.
func (m *SO3) Quaternion(s State) Quaternion {
	return Quaternion{X: s[0], Y: s[1], Z: s[2], W: s[3]}
}

// SetQuaternion stores q into s. q is expected to be normalized.
func (m *SO3) SetQuaternion(s State, q Quaternion) {
	s[0], s[1], s[2], s[3] = q.X, q.Y, q.Z, q.W
}

// SetAxisAngle stores the rotation by angle around (ax, ay, az) into s.
func (m *SO3) SetAxisAngle(s State, ax, ay, az, angle float64) {
	m.SetQuaternion(s, AxisAngle(ax, ay, az, angle))
}

func (m *SO3) SetDefault(s State) {
	s[0], s[1], s[2], s[3] = 0, 0, 0, 1
}

func (m *SO3) CopyState(dst, src State) {
	copy(dst[:4], src[:4])
}

func (m *SO3) EqualStates(a, b State) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2] && a[3] == b[3]
}

// Distance is acos(|a·b|), half the angle of the rotation taking a to b. Unit
// quaternions cover SO(3) twice, so q and -q are at distance 0 although
// EqualStates compares their components and reports them unequal.
func (m *SO3) Distance(a, b State) float64 {
	return distance.QuaternionArc(a, b)
}

// Interpolate performs spherical linear interpolation along the shorter arc.
func (m *SO3) Interpolate(from, to State, t float64, out State) {
	switch t {
	case 0:
		copy(out[:4], from[:4])
		return
	case 1:
		copy(out[:4], to[:4])
		return
	}
	theta := distance.QuaternionArc(from, to)
	if theta < quaternionTolerance {
		copy(out[:4], from[:4])
		return
	}
	d := 1 / math.Sin(theta)
	s0 := math.Sin((1 - t) * theta)
	s1 := math.Sin(t * theta)
	if distance.Dot(from[:4], to[:4]) < 0 {
		s1 = -s1
	}
	for i := range 4 {
		out[i] = (from[i]*s0 + to[i]*s1) * d
	}
}

// SampleUniform draws a rotation from the Haar measure (Shoemake's method).
func (m *SO3) SampleUniform(rng *rand.Rand, out State) {
	x0 := rng.Float64()
	r1 := math.Sqrt(1 - x0)
	r2 := math.Sqrt(x0)
	t1 := 2 * math.Pi * rng.Float64()
	t2 := 2 * math.Pi * rng.Float64()
	out[0] = math.Sin(t1) * r1
	out[1] = math.Cos(t1) * r1
	out[2] = math.Sin(t2) * r2
	out[3] = math.Cos(t2) * r2
}

// SampleUniformNear rotates near by a random rotation whose arc distance is
// at most dist.
func (m *SO3) SampleUniformNear(rng *rand.Rand, out, near State, dist float64) {
	if dist >= math.Pi/2 {
		m.SampleUniform(rng, out)
		return
	}
	theta := rng.Float64() * dist
	ax, ay, az := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
	m.compose(out, near, AxisAngle(ax, ay, az, 2*theta))
}

// SampleGaussian rotates mean by the exponential of a normally distributed
// rotation vector.
func (m *SO3) SampleGaussian(rng *rand.Rand, out, mean State, stdDev float64) {
	vx := rng.NormFloat64() * stdDev
	vy := rng.NormFloat64() * stdDev
	vz := rng.NormFloat64() * stdDev
	angle := math.Sqrt(vx*vx + vy*vy + vz*vz)
	m.compose(out, mean, AxisAngle(vx, vy, vz, angle))
}

func (m *SO3) compose(out, s State, q Quaternion) {
	r := m.Quaternion(s).Mul(q)
	m.SetQuaternion(out, r)
	m.EnforceBounds(out)
}

// EnforceBounds normalizes the quaternion; a degenerate one becomes identity.
func (m *SO3) EnforceBounds(s State) {
	n := math.Sqrt(distance.Dot(s[:4], s[:4]))
	if n < quaternionTolerance {
		m.SetDefault(s)
		return
	}
	if math.Abs(n-1) > quaternionTolerance {
		for i := range 4 {
			s[i] /= n
		}
	}
}

func (m *SO3) SatisfiesBounds(s State) bool {
	n := distance.Dot(s[:4], s[:4])
	return math.Abs(n-1) < quaternionTolerance*10
}
