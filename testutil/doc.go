// Package testutil provides testing utilities for cspace.
//
// This package is intended for use in tests and benchmarks only.
// It provides a deterministic, thread-safe random source and helpers for
// generating coordinates, rotations and randomized allocator workloads.
//
// # Random Data
//
//	rng := testutil.NewRNG(seed)
//	p := make([]float64, 3)
//	rng.FillUniformRange(p, -1, 1)  // uniform [-1, 1)
//	q := rng.UnitQuaternion()       // uniform rotation (x, y, z, w)
//
// # Per-Goroutine Sources
//
// Manifold samplers take an unsynchronized *rand.Rand. Derive one per
// goroutine so runs stay reproducible:
//
//	r := rng.Rand()
//	m.SampleUniform(r, out)
//
// # Allocator Workloads
//
//	ops := rng.OpSchedule(1000, 0.6) // true = allocate, false = free
package testutil
