package cspace

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/hupe1980/cspace/internal/leafset"
)

// ID is the stable identity token of a manifold. Two manifolds are the same
// manifold only if their IDs are equal; structurally identical manifolds
// built separately have different IDs.
type ID uint32

var nextID atomic.Uint32

func newID() ID {
	return ID(nextID.Add(1))
}

// Kind discriminates the manifold variants.
type Kind int

const (
	KindRealVector Kind = iota
	KindSO2
	KindSO3
	KindCompound
)

func (k Kind) String() string {
	switch k {
	case KindRealVector:
		return "RealVector"
	case KindSO2:
		return "SO2"
	case KindSO3:
		return "SO3"
	case KindCompound:
		return "Compound"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// State is a point of a manifold's space. Its layout is defined by the
// manifold that allocated it: leaves own a fixed number of slots and a
// compound state is the ordered concatenation of its sub-states.
//
// Passing a state to a manifold other than the one whose layout it follows
// is a precondition violation and is not detected.
type State []float64

// Manifold describes a configuration space.
//
// All state arguments must follow the receiver's layout (len == StateSize).
// Methods that write take the destination first or last as named; none of
// them allocate.
type Manifold interface {
	// ID returns the identity token used for structural matching.
	ID() ID
	// Name returns a human readable name. Names are not unique.
	Name() string
	// Kind returns the variant discriminant.
	Kind() Kind
	// Dimension returns the number of degrees of freedom.
	Dimension() int
	// StateSize returns the number of float64 slots of a state.
	StateSize() int
	// MaximumExtent returns the largest distance between two states.
	MaximumExtent() float64

	// AllocState returns a default-initialized heap state.
	AllocState() State
	// FreeState releases a state from AllocState.
	FreeState(s State)
	// SetDefault writes the default value (origin, identity rotation).
	SetDefault(s State)
	// CopyState deep-copies src into dst.
	CopyState(dst, src State)
	// EqualStates compares exactly, without tolerance.
	EqualStates(a, b State) bool
	// Distance is a metric: symmetric, non-negative, zero iff equal.
	Distance(a, b State) float64
	// Interpolate writes the state at fraction t in [0,1] from `from` to `to`.
	Interpolate(from, to State, t float64, out State)

	// SampleUniform writes a state drawn uniformly w.r.t. bounds / Haar measure.
	SampleUniform(r *rand.Rand, out State)
	// SampleUniformNear writes a state uniformly drawn near `near`.
	SampleUniformNear(r *rand.Rand, out, near State, dist float64)
	// SampleGaussian writes a state drawn around mean.
	SampleGaussian(r *rand.Rand, out, mean State, stdDev float64)

	// EnforceBounds brings s back into the valid region.
	EnforceBounds(s State)
	// SatisfiesBounds reports whether s lies in the valid region.
	SatisfiesBounds(s State) bool

	// Lock freezes the manifold shape. It is called by Space.Setup.
	Lock()
	// IsLocked reports whether Lock was called.
	IsLocked() bool
}

// base carries identity and the lock flag shared by all manifolds.
type base struct {
	id     ID
	name   string
	locked atomic.Bool
}

func newBase(name string) base {
	id := newID()
	if name == "" {
		name = fmt.Sprintf("manifold-%d", id)
	}
	return base{id: id, name: name}
}

func (b *base) ID() ID         { return b.id }
func (b *base) Name() string   { return b.name }
func (b *base) IsLocked() bool { return b.locked.Load() }

func (b *base) checkUnlocked() error {
	if b.locked.Load() {
		return invalidf("manifold %q is locked", b.name)
	}
	return nil
}

// SameManifold reports whether a and b are the same manifold by identity.
func SameManifold(a, b Manifold) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID() == b.ID()
}

// Find returns the first manifold in root's tree (root included) whose
// identity matches target, searched depth-first, together with the slot
// offset of its sub-state within a state of root.
func Find(root, target Manifold) (Manifold, int, bool) {
	if SameManifold(root, target) {
		return root, 0, true
	}
	c, ok := asCompound(root)
	if !ok {
		return nil, 0, false
	}
	for i, sub := range c.subs {
		if m, off, ok := Find(sub.manifold, target); ok {
			return m, c.subOffset(i) + off, true
		}
	}
	return nil, 0, false
}

// Contains reports whether target appears anywhere in root's tree.
func Contains(root, target Manifold) bool {
	_, _, ok := Find(root, target)
	return ok
}

// Intersect returns the part of a's tree that also appears in b's tree.
// A single shared sub-tree is returned as is; several are gathered, with
// their weights in a, into a new unlocked compound named "a*b". It reports
// false when the trees share nothing.
func Intersect(a, b Manifold) (Manifold, bool) {
	if a == nil || b == nil {
		return nil, false
	}
	roots := sharedRoots(nil, leafset.New(), a, 1, identities(b))
	switch len(roots) {
	case 0:
		return nil, false
	case 1:
		return roots[0].manifold, true
	}
	c := NewCompound(a.Name() + "*" + b.Name())
	c.subs = roots
	return c, true
}

// sharedRoots appends the outermost manifolds of m's tree whose identity is
// in ids, skipping ones already seen.
func sharedRoots(dst []subManifold, seen *leafset.Set, m Manifold, weight float64, ids *leafset.Set) []subManifold {
	if id := uint32(m.ID()); ids.Contains(id) {
		if seen.Add(id) {
			dst = append(dst, subManifold{manifold: m, weight: weight})
		}
		return dst
	}
	if c, ok := asCompound(m); ok {
		for _, sub := range c.subs {
			dst = sharedRoots(dst, seen, sub.manifold, sub.weight, ids)
		}
	}
	return dst
}

// Leaves appends the non-compound manifolds of m's tree in layout order.
func Leaves(dst []Manifold, m Manifold) []Manifold {
	c, ok := asCompound(m)
	if !ok {
		return append(dst, m)
	}
	for _, sub := range c.subs {
		dst = Leaves(dst, sub.manifold)
	}
	return dst
}
