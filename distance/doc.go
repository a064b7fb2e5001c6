// Package distance provides the metric kernels used by cspace manifolds.
//
// # Supported Metrics
//
//   - MetricL2: Euclidean distance (default)
//   - MetricL1: Manhattan distance
//   - MetricLInf: Chebyshev distance
//
// Rotation metrics are exposed as plain functions:
//
//	d := distance.Arc(a, b)          // SO(2), shortest signed arc
//	d := distance.QuaternionArc(p, q) // SO(3), angle between unit quaternions
//
// All kernels are true metrics on their domain and assume equal-length
// inputs (caller's responsibility).
package distance
