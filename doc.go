// Package cspace provides configuration-space manifolds, a concurrent state
// allocator and scoped states with projection between manifolds.
//
// A manifold describes the layout and geometry of a state. Leaves are
// RealVector, SO2 and SO3; Compound concatenates weighted sub-manifolds and
// SE2/SE3 are fixed compounds of a position and a rotation. Every manifold has
// a unique identity, and sub-manifolds may be shared between trees.
//
// # Quick Start
//
//	se3 := cspace.NewSE3()
//	_ = se3.SetBounds(cspace.NewBounds(3, -1, 1))
//
//	sp := cspace.NewSpace(se3, cspace.WithMemoryLimit(64<<20))
//	if err := sp.Setup(); err != nil { // locks se3
//	    return err
//	}
//	defer sp.Close()
//
//	pose, _ := sp.NewScopedState()
//	defer pose.Release()
//	se3.SetXYZ(pose.State(), 0.1, 0.2, 0.3)
//
// # Allocation
//
// States are flat []float64 payloads carved from off-heap arena chunks and
// recycled through sharded free lists, so AllocState and FreeState are safe
// to call from any number of goroutines. Memory is bounded by an optional
// budget; an exhausted budget fails the allocation with ErrOutOfMemory.
//
// # Projection
//
// States of different manifolds exchange data by identity:
//
//	_ = pose.ExtractInto(position)  // position <- position part of pose
//	_ = pose.InjectFrom(rotation)   // rotation part of pose <- rotation
//	both, _ := position.CombineWith(rotation)
//	_ = both.ExtractInto(pose)      // pose <- position and rotation
//
// A projection resolves the target manifold, or failing that each of its
// components, in the source tree and writes nothing unless every part is
// found. CopyCommon is the lenient variant that copies whatever is shared.
//
// # Key Features
//
//   - Sharded lock-free-fast-path allocator with work stealing
//   - Memory budgets shared across spaces
//   - Identity-based extraction, injection and combination
//   - Uniform, near and gaussian sampling
//   - Prometheus metrics (package metrics)
package cspace
