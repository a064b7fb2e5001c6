package distance

import (
	"fmt"
	"math"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float64) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// L1 calculates the Manhattan distance between two vectors.
func L1(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// LInf calculates the Chebyshev distance between two vectors.
func LInf(a, b []float64) float64 {
	var m float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Arc returns the length of the shortest arc between two angles given in
// [-π, π). The result lies in [0, π].
func Arc(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}

// QuaternionArc returns the rotation-space distance between two unit
// quaternions stored as (x, y, z, w): acos(|p·q|), in [0, π/2].
// q and -q encode the same rotation and have distance 0.
func QuaternionArc(p, q []float64) float64 {
	dq := math.Abs(Dot(p[:4], q[:4]))
	if dq > 1-1e-9 {
		// acos is ill-conditioned near 1; fall back to the chord length.
		return math.Sqrt(max(0, 2*(1-dq)))
	}
	return math.Acos(dq)
}

// Metric represents the distance metric used by real-vector spaces.
type Metric int

const (
	MetricL2 Metric = iota
	MetricL1
	MetricLInf
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricL1:
		return "L1"
	case MetricLInf:
		return "LInf"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return L2, nil
	case MetricL1:
		return L1, nil
	case MetricLInf:
		return LInf, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Extent returns the distance between the corners of an axis-aligned box
// under metric m, i.e. the largest distance two points of the box can have.
func Extent(m Metric, low, high []float64) float64 {
	f, err := Provider(m)
	if err != nil {
		return math.Inf(1)
	}
	return f(low, high)
}
