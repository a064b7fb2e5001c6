package cspace

// ScopedState owns one state allocated from a Space.
//
// A scoped state is bound to the space's manifold for its whole lifetime and
// returns its payload on Release. Copies are explicit (Clone, Assign); the
// views returned by ComponentAt and ComponentOf alias the payload.
//
//	c, err := sp.NewScopedState()
//	if err != nil {
//	    return err
//	}
//	defer c.Release()
//
//	// position is a component of sp's manifold with a space of its own.
//	p, _ := positionSpace.NewScopedState()
//	defer p.Release()
//	_ = c.ExtractInto(p) // p = position part of c
//
// A ScopedState is not safe for concurrent use.
type ScopedState struct {
	space *Space
	state State
}

// NewScopedState allocates a default-initialized scoped state from sp.
func (sp *Space) NewScopedState() (*ScopedState, error) {
	s, err := sp.AllocState()
	if err != nil {
		return nil, err
	}
	return &ScopedState{space: sp, state: s}, nil
}

// Manifold returns the manifold the state is bound to.
func (ss *ScopedState) Manifold() Manifold { return ss.space.manifold }

// State returns the owned payload. It is nil after Release.
func (ss *ScopedState) State() State { return ss.state }

// Space returns the space the state was allocated from.
func (ss *ScopedState) Space() *Space { return ss.space }

// Ref returns a non-owning view of the state.
func (ss *ScopedState) Ref() StateRef {
	return StateRef{manifold: ss.space.manifold, state: ss.state}
}

// Release returns the payload to the allocator. It is safe to call more than
// once; every other method is invalid afterwards.
func (ss *ScopedState) Release() {
	if ss == nil || ss.state == nil {
		return
	}
	ss.space.FreeState(ss.state)
	ss.state = nil
}

// Clone allocates an independent copy from the same space.
func (ss *ScopedState) Clone() (*ScopedState, error) {
	c, err := ss.space.NewScopedState()
	if err != nil {
		return nil, err
	}
	ss.space.manifold.CopyState(c.state, ss.state)
	return c, nil
}

// Assign copies src into ss. src must be bound to the same manifold.
func (ss *ScopedState) Assign(src Bound) error { return ss.Ref().Assign(src) }

// AssignState copies a raw state of the same manifold into ss.
func (ss *ScopedState) AssignState(s State) {
	ss.space.manifold.CopyState(ss.state, s)
}

// Randomize overwrites ss with a uniform sample drawn by s.
func (ss *ScopedState) Randomize(s *Sampler) error {
	if err := sameManifold(ss.space.manifold, s.Manifold()); err != nil {
		return err
	}
	s.SampleUniform(ss.state)
	return nil
}

// ComponentAt returns the view of the i-th direct component.
func (ss *ScopedState) ComponentAt(i int) (StateRef, error) { return ss.Ref().ComponentAt(i) }

// ComponentOf returns the view of the first component whose identity is m.
func (ss *ScopedState) ComponentOf(m Manifold) (StateRef, error) { return ss.Ref().ComponentOf(m) }

// Value returns the i-th slot of the flattened state.
func (ss *ScopedState) Value(i int) (float64, error) { return ss.Ref().Value(i) }

// SetValue sets the i-th slot of the flattened state.
func (ss *ScopedState) SetValue(i int, v float64) error { return ss.Ref().SetValue(i, v) }

// Values returns a copy of the flattened state.
func (ss *ScopedState) Values() []float64 { return ss.Ref().Values() }

// Coordinate reads a named real-vector coordinate.
func (ss *ScopedState) Coordinate(name string) (float64, error) { return ss.Ref().Coordinate(name) }

// SetCoordinate writes a named real-vector coordinate.
func (ss *ScopedState) SetCoordinate(name string, v float64) error {
	return ss.Ref().SetCoordinate(name, v)
}

// Equal compares ss and other exactly. It fails with ErrTypeMismatch when
// other is bound to a different manifold.
func (ss *ScopedState) Equal(other Bound) (bool, error) { return ss.Ref().Equal(other) }

// Distance returns the manifold distance between ss and other.
func (ss *ScopedState) Distance(other Bound) (float64, error) { return ss.Ref().Distance(other) }

// Interpolate writes the state at fraction t from ss to `to` into out.
func (ss *ScopedState) Interpolate(to Bound, t float64, out Bound) error {
	return ss.Ref().Interpolate(to, t, out)
}

// SatisfiesBounds reports whether the state lies in the valid region.
func (ss *ScopedState) SatisfiesBounds() bool {
	return ss.space.manifold.SatisfiesBounds(ss.state)
}

// EnforceBounds brings the state back into the valid region.
func (ss *ScopedState) EnforceBounds() {
	ss.space.manifold.EnforceBounds(ss.state)
}

// ExtractInto copies the part of ss corresponding to dst's manifold into dst.
// It fails with ErrNotFound, leaving dst unchanged, when some part of dst's
// manifold does not occur in ss's tree.
func (ss *ScopedState) ExtractInto(dst Bound) error {
	n, err := ss.Ref().ExtractInto(dst)
	ss.space.metrics().RecordProjection(OpExtract, n, err)
	return err
}

// InjectFrom overwrites the part of ss corresponding to src's manifold with
// src. It fails with ErrNotFound, leaving ss unchanged, when some part of
// src's manifold does not occur in ss's tree.
func (ss *ScopedState) InjectFrom(src Bound) error {
	n, err := ss.Ref().InjectFrom(src)
	ss.space.metrics().RecordProjection(OpInject, n, err)
	return err
}

// CombineWith pairs ss with other for a joint extraction. It fails with
// ErrInvalidConfiguration when the two manifold trees share a manifold.
func (ss *ScopedState) CombineWith(other Bound) (*Combination, error) {
	return newCombination(ss.space.metrics(), ss.Ref()).CombineWith(other)
}

// CopyCommonFrom copies every component shared with src into ss and returns
// the number of sub-states copied.
func (ss *ScopedState) CopyCommonFrom(src Bound) int {
	n := CopyCommon(ss, src)
	ss.space.metrics().RecordProjection(OpCopyCommon, n, nil)
	return n
}

func (ss *ScopedState) String() string {
	if ss.state == nil {
		return ss.space.manifold.Name() + "<released>"
	}
	return ss.Ref().String()
}
