package cspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/cspace/internal/leafset"
)

// Bound is a state together with the manifold that defines its layout.
// StateRef and *ScopedState implement it.
type Bound interface {
	Manifold() Manifold
	State() State
}

// StateRef is a non-owning view of a state bound to its manifold. Views
// obtained from a scoped state alias its payload and must not outlive it.
type StateRef struct {
	manifold Manifold
	state    State
}

// NewStateRef binds s to m. s must follow m's layout.
func NewStateRef(m Manifold, s State) StateRef {
	return StateRef{manifold: m, state: s}
}

// Ref returns the view of any Bound.
func Ref(b Bound) StateRef {
	if r, ok := b.(StateRef); ok {
		return r
	}
	return StateRef{manifold: b.Manifold(), state: b.State()}
}

func (r StateRef) Manifold() Manifold { return r.manifold }
func (r StateRef) State() State       { return r.state }

// ComponentAt returns the view of the i-th direct component. A leaf has no
// components, so the error matches both ErrTypeMismatch and ErrOutOfRange.
func (r StateRef) ComponentAt(i int) (StateRef, error) {
	c, err := AsCompound(r.manifold)
	if err != nil {
		return StateRef{}, errors.Join(err, &ErrIndexOutOfRange{Index: i, Count: 0})
	}
	if err := c.checkIndex(i); err != nil {
		return StateRef{}, err
	}
	return StateRef{manifold: c.subs[i].manifold, state: c.sub(r.state, i)}, nil
}

// ComponentOf returns the view of the first component, searched depth-first
// with r's own manifold included, whose identity is m.
func (r StateRef) ComponentOf(m Manifold) (StateRef, error) {
	if m == nil {
		return StateRef{}, invalidf("nil manifold")
	}
	found, off, ok := Find(r.manifold, m)
	if !ok {
		return StateRef{}, notFound(m, r.manifold)
	}
	return StateRef{manifold: found, state: view(r.state, off, found.StateSize())}, nil
}

// Value returns the i-th slot of the flattened state.
func (r StateRef) Value(i int) (float64, error) {
	if i < 0 || i >= len(r.state) {
		return 0, &ErrIndexOutOfRange{Index: i, Count: len(r.state)}
	}
	return r.state[i], nil
}

// SetValue sets the i-th slot of the flattened state.
func (r StateRef) SetValue(i int, v float64) error {
	if i < 0 || i >= len(r.state) {
		return &ErrIndexOutOfRange{Index: i, Count: len(r.state)}
	}
	r.state[i] = v
	return nil
}

// Coordinate reads a named real-vector coordinate anywhere in r's tree.
// The first leaf defining the name, in layout order, wins.
func (r StateRef) Coordinate(name string) (float64, error) {
	slot, err := r.coordinateSlot(name)
	if err != nil {
		return 0, err
	}
	return r.state[slot], nil
}

// SetCoordinate writes a named real-vector coordinate anywhere in r's tree.
func (r StateRef) SetCoordinate(name string, v float64) error {
	slot, err := r.coordinateSlot(name)
	if err != nil {
		return err
	}
	r.state[slot] = v
	return nil
}

func (r StateRef) coordinateSlot(name string) (int, error) {
	off := 0
	for _, leaf := range Leaves(nil, r.manifold) {
		if rv, ok := leaf.(*RealVector); ok {
			if i, err := rv.DimensionIndex(name); err == nil {
				return off + i, nil
			}
		}
		off += leaf.StateSize()
	}
	return -1, fmt.Errorf("%w: coordinate %q in %q", ErrNotFound, name, r.manifold.Name())
}

// Values returns a copy of the flattened state.
func (r StateRef) Values() []float64 {
	return append([]float64(nil), r.state...)
}

// Equal compares r and other exactly. Both must be bound to the same manifold.
func (r StateRef) Equal(other Bound) (bool, error) {
	if err := sameManifold(r.manifold, other.Manifold()); err != nil {
		return false, err
	}
	return r.manifold.EqualStates(r.state, other.State()), nil
}

// Distance returns the manifold distance between r and other.
func (r StateRef) Distance(other Bound) (float64, error) {
	if err := sameManifold(r.manifold, other.Manifold()); err != nil {
		return 0, err
	}
	return r.manifold.Distance(r.state, other.State()), nil
}

// Interpolate writes the state at fraction t from r to `to` into out.
func (r StateRef) Interpolate(to Bound, t float64, out Bound) error {
	if err := sameManifold(r.manifold, to.Manifold()); err != nil {
		return err
	}
	if err := sameManifold(r.manifold, out.Manifold()); err != nil {
		return err
	}
	r.manifold.Interpolate(r.state, to.State(), t, out.State())
	return nil
}

// Assign copies src into r. Both must be bound to the same manifold.
func (r StateRef) Assign(src Bound) error {
	if err := sameManifold(r.manifold, src.Manifold()); err != nil {
		return err
	}
	r.manifold.CopyState(r.state, src.State())
	return nil
}

// ExtractInto writes the part of r that corresponds to dst into dst.
//
// dst's manifold is located in r's tree by identity. When it is absent but is
// a compound, each of its components is located instead, recursively. Nothing
// is written unless every part is found.
func (r StateRef) ExtractInto(dst Bound) (int, error) {
	links, err := link(nil, r.manifold, r.state, dst.Manifold(), dst.State())
	if err != nil {
		return 0, err
	}
	for _, l := range links {
		l.manifold.CopyState(l.outer, l.inner)
	}
	return len(links), nil
}

// InjectFrom overwrites the part of r that corresponds to src with src.
// Resolution follows ExtractInto.
func (r StateRef) InjectFrom(src Bound) (int, error) {
	links, err := link(nil, r.manifold, r.state, src.Manifold(), src.State())
	if err != nil {
		return 0, err
	}
	for _, l := range links {
		l.manifold.CopyState(l.inner, l.outer)
	}
	return len(links), nil
}

// CombineWith pairs r with other for a joint extraction. The identity sets of
// the two manifold trees must be disjoint.
func (r StateRef) CombineWith(other Bound) (*Combination, error) {
	return newCombination(NoopMetricsCollector{}, r).CombineWith(other)
}

// String formats the state as its component values, e.g. "SE2(R2[1 2], SO2[0.5])".
func (r StateRef) String() string {
	var sb strings.Builder
	format(&sb, r.manifold, r.state)
	return sb.String()
}

func format(sb *strings.Builder, m Manifold, s State) {
	if c, ok := asCompound(m); ok {
		sb.WriteString(m.Name())
		sb.WriteByte('(')
		for i := range c.subs {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, c.subs[i].manifold, c.sub(s, i))
		}
		sb.WriteByte(')')
		return
	}
	sb.WriteString(m.Name())
	sb.WriteByte('[')
	for i, v := range s[:m.StateSize()] {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	sb.WriteByte(']')
}

// linkage pairs a sub-state of the searched tree (inner) with the state of
// the located manifold (outer).
type linkage struct {
	manifold Manifold
	inner    State
	outer    State
}

// link locates target in root's tree and appends the resulting pairs to
// links. When target is absent but is a compound, its components are
// located one by one.
func link(links []linkage, root Manifold, rootState State, target Manifold, targetState State) ([]linkage, error) {
	if target == nil {
		return nil, invalidf("nil manifold")
	}
	if found, off, ok := Find(root, target); ok {
		return append(links, linkage{
			manifold: found,
			inner:    view(rootState, off, found.StateSize()),
			outer:    targetState,
		}), nil
	}
	c, ok := asCompound(target)
	if !ok || len(c.subs) == 0 {
		return nil, notFound(target, root)
	}
	for i := range c.subs {
		var err error
		links, err = link(links, root, rootState, c.subs[i].manifold, c.sub(targetState, i))
		if err != nil {
			return nil, err
		}
	}
	return links, nil
}

// CopyCommon copies every component shared by identity from src into dst and
// returns the number of sub-states copied. Unlike ExtractInto it never fails:
// components of dst absent from src keep their values.
func CopyCommon(dst, src Bound) int {
	return copyCommon(dst.Manifold(), dst.State(), src.Manifold(), src.State())
}

func copyCommon(dm Manifold, ds State, sm Manifold, ss State) int {
	if found, off, ok := Find(sm, dm); ok {
		found.CopyState(ds, view(ss, off, found.StateSize()))
		return 1
	}
	if found, off, ok := Find(dm, sm); ok {
		found.CopyState(view(ds, off, found.StateSize()), ss)
		return 1
	}
	c, ok := asCompound(dm)
	if !ok {
		return 0
	}
	n := 0
	for i := range c.subs {
		n += copyCommon(c.subs[i].manifold, c.sub(ds, i), sm, ss)
	}
	return n
}

// Combination is an ordered group of state views over pairwise disjoint
// manifold trees, written into or read from a single target at once.
type Combination struct {
	parts   []StateRef
	ids     *leafset.Set
	metrics MetricsCollector
}

func newCombination(mc MetricsCollector, first StateRef) *Combination {
	return &Combination{
		parts:   []StateRef{first},
		ids:     identities(first.manifold),
		metrics: mc,
	}
}

// Parts returns the combined views in order.
func (c *Combination) Parts() []StateRef {
	return append([]StateRef(nil), c.parts...)
}

// CombineWith returns a new combination extended by other.
func (c *Combination) CombineWith(other Bound) (*Combination, error) {
	ref := Ref(other)
	if ref.manifold == nil {
		return nil, invalidf("nil manifold")
	}
	ids := identities(ref.manifold)
	if shared := c.ids.Shared(ids); len(shared) > 0 {
		roots := sharedRoots(nil, leafset.New(), ref.manifold, 1, leafset.New(shared...))
		names := make([]string, len(roots))
		for i, r := range roots {
			names[i] = strconv.Quote(r.manifold.Name())
		}
		err := fmt.Errorf("%w: %q overlaps the combined manifolds at %s",
			ErrInvalidConfiguration, ref.manifold.Name(), strings.Join(names, ", "))
		c.metrics.RecordProjection(OpCombine, 0, err)
		return nil, err
	}
	c.metrics.RecordProjection(OpCombine, len(c.parts)+1, nil)
	return &Combination{
		parts:   append(c.Parts(), ref),
		ids:     c.ids.Union(ids),
		metrics: c.metrics,
	}, nil
}

// ExtractInto writes every part into dst. Each part's manifold is located in
// dst's tree as by StateRef.InjectFrom. Nothing is written unless every part
// is found.
func (c *Combination) ExtractInto(dst Bound) error {
	n, err := c.apply(dst, false)
	c.metrics.RecordProjection(OpExtract, n, err)
	return err
}

// InjectFrom overwrites every part with the matching region of src.
func (c *Combination) InjectFrom(src Bound) error {
	n, err := c.apply(src, true)
	c.metrics.RecordProjection(OpInject, n, err)
	return err
}

func (c *Combination) apply(target Bound, read bool) (int, error) {
	root, rootState := target.Manifold(), target.State()
	var links []linkage
	for _, p := range c.parts {
		var err error
		links, err = link(links, root, rootState, p.manifold, p.state)
		if err != nil {
			return 0, err
		}
	}
	for _, l := range links {
		if read {
			l.manifold.CopyState(l.outer, l.inner)
		} else {
			l.manifold.CopyState(l.inner, l.outer)
		}
	}
	return len(links), nil
}

// identities returns the identity tokens of every manifold in m's tree.
func identities(m Manifold) *leafset.Set {
	s := leafset.New()
	var walk func(Manifold)
	walk = func(m Manifold) {
		s.Add(uint32(m.ID()))
		if c, ok := asCompound(m); ok {
			for _, sub := range c.subs {
				walk(sub.manifold)
			}
		}
	}
	walk(m)
	return s
}

func view(s State, off, n int) State {
	return s[off : off+n : off+n]
}

func sameManifold(want, got Manifold) error {
	if want == nil || got == nil {
		return invalidf("nil manifold")
	}
	if !SameManifold(want, got) {
		return mismatch(want, got)
	}
	return nil
}

func notFound(m, in Manifold) error {
	return &ErrManifoldNotFound{Name: m.Name(), In: in.Name()}
}
