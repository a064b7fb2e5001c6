package cspace

import (
	"math"
	"math/rand/v2"
)

type subManifold struct {
	manifold Manifold
	weight   float64
}

// Compound is the weighted product of an ordered list of sub-manifolds.
//
// A compound state is the concatenation of the sub-states in list order.
// Weights only scale the distance: Distance(a, b) = Σ wᵢ·dᵢ(aᵢ, bᵢ). A
// zero-weighted component contributes nothing to the distance but still
// occupies state space and takes part in copy and equality.
//
// Sub-manifolds may be shared by several compounds. Once any space using
// the compound is set up, the whole tree is locked and AddSubManifold fails.
type Compound struct {
	base
	subs       []subManifold
	fixedShape bool

	// Cached by Lock.
	offsets []int
	size    int
}

// NewCompound creates an empty compound manifold.
func NewCompound(name string) *Compound {
	c := &Compound{base: newBase(name)}
	if name == "" {
		c.name = "Compound"
	}
	return c
}

func (c *Compound) compound() *Compound { return c }

// freezeShape refuses further AddSubManifold calls while leaving the leaves
// configurable. Used by SE2 and SE3.
func (c *Compound) freezeShape() {
	c.fixedShape = true
}

// AsCompound casts m to its compound form.
// It fails with ErrTypeMismatch for leaf manifolds.
func AsCompound(m Manifold) (*Compound, error) {
	c, ok := asCompound(m)
	if !ok {
		if m == nil {
			return nil, &ErrManifoldMismatch{Want: "Compound", Got: "<nil>"}
		}
		return nil, &ErrManifoldMismatch{Want: "Compound", Got: m.Kind().String()}
	}
	return c, nil
}

func asCompound(m Manifold) (*Compound, bool) {
	if cm, ok := m.(interface{ compound() *Compound }); ok {
		return cm.compound(), true
	}
	return nil, false
}

// AddSubManifold appends m with the given weight.
func (c *Compound) AddSubManifold(m Manifold, weight float64) error {
	if err := c.checkUnlocked(); err != nil {
		return err
	}
	if c.fixedShape {
		return invalidf("compound %q has a fixed shape", c.name)
	}
	if m == nil {
		return invalidf("nil sub-manifold")
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return invalidf("weight must be finite and non-negative, got %g", weight)
	}
	if Contains(m, c) {
		return invalidf("adding %q to %q would create a cycle", m.Name(), c.name)
	}
	c.subs = append(c.subs, subManifold{manifold: m, weight: weight})
	return nil
}

// SetSubManifoldWeight changes the weight of the sub-manifold at index.
func (c *Compound) SetSubManifoldWeight(index int, weight float64) error {
	if err := c.checkUnlocked(); err != nil {
		return err
	}
	if err := c.checkIndex(index); err != nil {
		return err
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return invalidf("weight must be finite and non-negative, got %g", weight)
	}
	c.subs[index].weight = weight
	return nil
}

// SubManifoldCount returns the number of direct sub-manifolds.
func (c *Compound) SubManifoldCount() int {
	return len(c.subs)
}

// SubManifold returns the sub-manifold at index.
func (c *Compound) SubManifold(index int) (Manifold, error) {
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	return c.subs[index].manifold, nil
}

// Weight returns the weight of the sub-manifold at index.
func (c *Compound) Weight(index int) (float64, error) {
	if err := c.checkIndex(index); err != nil {
		return 0, err
	}
	return c.subs[index].weight, nil
}

// SubStateOffset returns the slot offset of the sub-state at index.
func (c *Compound) SubStateOffset(index int) (int, error) {
	if err := c.checkIndex(index); err != nil {
		return 0, err
	}
	return c.subOffset(index), nil
}

// SubState returns a view of the sub-state at index. The view aliases s.
func (c *Compound) SubState(s State, index int) (State, error) {
	if err := c.checkIndex(index); err != nil {
		return nil, err
	}
	return c.sub(s, index), nil
}

func (c *Compound) checkIndex(index int) error {
	if index < 0 || index >= len(c.subs) {
		return &ErrIndexOutOfRange{Index: index, Count: len(c.subs)}
	}
	return nil
}

func (c *Compound) subOffset(index int) int {
	if c.locked.Load() {
		return c.offsets[index]
	}
	off := 0
	for _, sub := range c.subs[:index] {
		off += sub.manifold.StateSize()
	}
	return off
}

func (c *Compound) sub(s State, index int) State {
	off := c.subOffset(index)
	end := off + c.subs[index].manifold.StateSize()
	return s[off:end:end]
}

func (c *Compound) Kind() Kind { return KindCompound }

func (c *Compound) Dimension() int {
	d := 0
	for _, sub := range c.subs {
		d += sub.manifold.Dimension()
	}
	return d
}

func (c *Compound) StateSize() int {
	if c.locked.Load() {
		return c.size
	}
	n := 0
	for _, sub := range c.subs {
		n += sub.manifold.StateSize()
	}
	return n
}

func (c *Compound) MaximumExtent() float64 {
	var e float64
	for _, sub := range c.subs {
		if sub.weight > 0 {
			e += sub.weight * sub.manifold.MaximumExtent()
		}
	}
	return e
}

// Lock locks the whole tree and caches the state layout.
func (c *Compound) Lock() {
	if c.locked.Load() {
		return
	}
	offsets := make([]int, len(c.subs))
	size := 0
	for i, sub := range c.subs {
		sub.manifold.Lock()
		offsets[i] = size
		size += sub.manifold.StateSize()
	}
	c.offsets = offsets
	c.size = size
	c.locked.Store(true)
}

func (c *Compound) validate() error {
	if len(c.subs) == 0 {
		return invalidf("compound %q has no sub-manifolds", c.name)
	}
	for _, sub := range c.subs {
		if v, ok := sub.manifold.(interface{ validate() error }); ok {
			if err := v.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Compound) AllocState() State {
	s := make(State, c.StateSize())
	c.SetDefault(s)
	return s
}

func (c *Compound) FreeState(State) {}

func (c *Compound) SetDefault(s State) {
	for i, sub := range c.subs {
		sub.manifold.SetDefault(c.sub(s, i))
	}
}

// CopyState copies the whole concatenated payload, which is equivalent to
// copying every sub-state in list order.
func (c *Compound) CopyState(dst, src State) {
	n := c.StateSize()
	copy(dst[:n], src[:n])
}

func (c *Compound) EqualStates(a, b State) bool {
	for i, sub := range c.subs {
		if !sub.manifold.EqualStates(c.sub(a, i), c.sub(b, i)) {
			return false
		}
	}
	return true
}

func (c *Compound) Distance(a, b State) float64 {
	var d float64
	for i, sub := range c.subs {
		if sub.weight == 0 {
			continue
		}
		d += sub.weight * sub.manifold.Distance(c.sub(a, i), c.sub(b, i))
	}
	return d
}

func (c *Compound) Interpolate(from, to State, t float64, out State) {
	for i, sub := range c.subs {
		sub.manifold.Interpolate(c.sub(from, i), c.sub(to, i), t, c.sub(out, i))
	}
}

func (c *Compound) SampleUniform(rng *rand.Rand, out State) {
	for i, sub := range c.subs {
		sub.manifold.SampleUniform(rng, c.sub(out, i))
	}
}

// SampleUniformNear splits dist evenly over the weighted components; the
// component at index i is sampled within dist/(wᵢ·k) of near, k being the
// number of positively weighted components.
func (c *Compound) SampleUniformNear(rng *rand.Rand, out, near State, dist float64) {
	weighted := 0
	for _, sub := range c.subs {
		if sub.weight > 0 {
			weighted++
		}
	}
	for i, sub := range c.subs {
		d := dist
		if sub.weight > 0 {
			d = dist / (sub.weight * float64(weighted))
		}
		sub.manifold.SampleUniformNear(rng, c.sub(out, i), c.sub(near, i), d)
	}
}

func (c *Compound) SampleGaussian(rng *rand.Rand, out, mean State, stdDev float64) {
	for i, sub := range c.subs {
		sub.manifold.SampleGaussian(rng, c.sub(out, i), c.sub(mean, i), stdDev)
	}
}

func (c *Compound) EnforceBounds(s State) {
	for i, sub := range c.subs {
		sub.manifold.EnforceBounds(c.sub(s, i))
	}
}

func (c *Compound) SatisfiesBounds(s State) bool {
	for i, sub := range c.subs {
		if !sub.manifold.SatisfiesBounds(c.sub(s, i)) {
			return false
		}
	}
	return true
}
