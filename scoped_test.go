package cspace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cspace/testutil"
)

// fixture is C = {P (R3, weight 1), R (SO3, weight 1)} with a space for
// each of the three manifolds.
type fixture struct {
	p  *RealVector
	r  *SO3
	c  *Compound
	cs *Space
	ps *Space
	rs *Space
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		p: boundedRV(t, 3),
		r: NewSO3(),
		c: NewCompound("C"),
	}
	require.NoError(t, f.c.AddSubManifold(f.p, 1))
	require.NoError(t, f.c.AddSubManifold(f.r, 1))
	f.cs = newTestSpace(t, f.c, opts...)
	f.ps = newTestSpace(t, f.p)
	f.rs = newTestSpace(t, f.r)
	return f
}

func scoped(t *testing.T, sp *Space) *ScopedState {
	t.Helper()
	ss, err := sp.NewScopedState()
	require.NoError(t, err)
	t.Cleanup(ss.Release)
	return ss
}

func TestScopedState_Scenario(t *testing.T) {
	f := newFixture(t)

	c := scoped(t, f.cs)
	pos, err := c.ComponentOf(f.p)
	require.NoError(t, err)
	copy(pos.State(), []float64{0.2, 0.4, 0.6})

	r := scoped(t, f.rs)
	f.r.SetAxisAngle(r.State(), 1, 0, 0, 1) // anything but identity
	require.NoError(t, c.ExtractInto(r))
	assert.Equal(t, State{0, 0, 0, 1}, r.State())

	p := scoped(t, f.ps)
	require.NoError(t, c.ExtractInto(p))
	assert.Equal(t, State{0.2, 0.4, 0.6}, p.State())

	// p is a copy: mutating it leaves c alone.
	require.NoError(t, p.SetValue(0, 9))
	v, err := c.Value(0)
	require.NoError(t, err)
	assert.Equal(t, 0.2, v)
}

func TestScopedState_NestedLookup(t *testing.T) {
	f := newFixture(t)

	c2m := NewCompound("C2")
	require.NoError(t, c2m.AddSubManifold(NewSO2(), 1))
	require.NoError(t, c2m.AddSubManifold(f.c, 1))
	c2 := scoped(t, newTestSpace(t, c2m))
	require.NoError(t, c2.SetValue(5, 0.5))

	byManifold, err := c2.ComponentOf(f.r)
	require.NoError(t, err)

	inner, err := c2.ComponentAt(1)
	require.NoError(t, err)
	byIndex, err := inner.ComponentAt(1)
	require.NoError(t, err)

	same, err := byManifold.Equal(byIndex)
	require.NoError(t, err)
	assert.True(t, same)
	assert.Same(t, &byManifold.State()[0], &byIndex.State()[0], "both views alias the same slots")
	assert.Equal(t, 0.5, byManifold.State()[1])

	self, err := c2.ComponentOf(c2m)
	require.NoError(t, err)
	assert.Len(t, self.State(), 8)
}

func TestScopedState_ComponentErrors(t *testing.T) {
	f := newFixture(t)
	c := scoped(t, f.cs)
	p := scoped(t, f.ps)

	_, err := c.ComponentAt(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.ComponentAt(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = p.ComponentAt(0)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.ErrorIs(t, err, ErrOutOfRange, "a leaf has zero components")
	var oor *ErrIndexOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.Zero(t, oor.Count)

	_, err = c.ComponentOf(NewSO3())
	assert.ErrorIs(t, err, ErrNotFound)
	var nf *ErrManifoldNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "C", nf.In)

	_, err = c.Value(7)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, c.SetValue(-1, 0), ErrOutOfRange)
}

func TestScopedState_RoundTrip(t *testing.T) {
	f := newFixture(t)
	smp, err := f.cs.NewSampler(4711)
	require.NoError(t, err)

	c := scoped(t, f.cs)
	p := scoped(t, f.ps)
	r := scoped(t, f.rs)
	back := scoped(t, f.cs)

	for range 50 {
		require.NoError(t, c.Randomize(smp))
		require.NoError(t, c.ExtractInto(p))
		require.NoError(t, c.ExtractInto(r))

		back.AssignState(f.c.AllocState())
		require.NoError(t, back.InjectFrom(p))
		require.NoError(t, back.InjectFrom(r))

		eq, err := back.Equal(c)
		require.NoError(t, err)
		assert.True(t, eq)
	}
}

func TestScopedState_InjectLeavesRestUntouched(t *testing.T) {
	f := newFixture(t)

	c := scoped(t, f.cs)
	f.r.SetAxisAngle(c.State()[3:], 0, 1, 0, 0.3)
	before := c.Values()

	p := scoped(t, f.ps)
	copy(p.State(), []float64{1, -1, 0.5})
	require.NoError(t, c.InjectFrom(p))

	assert.Equal(t, []float64{1, -1, 0.5}, c.Values()[:3])
	assert.Equal(t, before[3:], c.Values()[3:])
}

func TestScopedState_Combination(t *testing.T) {
	f := newFixture(t)
	rng := testutil.NewRNG(1)

	p := scoped(t, f.ps)
	r := scoped(t, f.rs)
	rng.FillUniformRange(p.State(), -1, 1)
	q := rng.UnitQuaternion()
	copy(r.State(), q[:])

	combined, err := p.CombineWith(r)
	require.NoError(t, err)
	assert.Len(t, combined.Parts(), 2)

	d := scoped(t, f.cs)
	require.NoError(t, combined.ExtractInto(d))

	p2 := scoped(t, f.ps)
	r2 := scoped(t, f.rs)
	require.NoError(t, d.ExtractInto(p2))
	require.NoError(t, d.ExtractInto(r2))

	eq, err := p2.Equal(p)
	require.NoError(t, err)
	assert.True(t, eq)
	eq, err = r2.Equal(r)
	require.NoError(t, err)
	assert.True(t, eq)

	t.Run("order independent", func(t *testing.T) {
		rev := NewCompound("RP")
		require.NoError(t, rev.AddSubManifold(f.r, 1))
		require.NoError(t, rev.AddSubManifold(f.p, 1))
		e := scoped(t, newTestSpace(t, rev))

		require.NoError(t, combined.ExtractInto(e))
		assert.Equal(t, append(r.Values(), p.Values()...), e.Values())

		// A different compound over the same leaves is resolved child by child.
		require.NoError(t, d.ExtractInto(e))
		assert.Equal(t, append(r.Values(), p.Values()...), e.Values())
	})

	t.Run("read back", func(t *testing.T) {
		p3 := scoped(t, f.ps)
		r3 := scoped(t, f.rs)
		back, err := p3.CombineWith(r3)
		require.NoError(t, err)
		require.NoError(t, back.InjectFrom(d))
		assert.Equal(t, p.Values(), p3.Values())
		assert.Equal(t, r.Values(), r3.Values())
	})

	t.Run("overlap", func(t *testing.T) {
		c := scoped(t, f.cs)
		_, err := p.CombineWith(c)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), `"C" overlaps the combined manifolds at "R3"`)
		_, err = p.CombineWith(p2)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), `at "R3"`)
		_, err = combined.CombineWith(c)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), `at "R3", "SO3"`)
	})

	t.Run("chained", func(t *testing.T) {
		extra := NewSO2()
		big := NewCompound("big")
		require.NoError(t, big.AddSubManifold(f.c, 1))
		require.NoError(t, big.AddSubManifold(extra, 1))
		bs := scoped(t, newTestSpace(t, big))

		angle := NewStateRef(extra, State{0.7})
		all, err := combined.CombineWith(angle)
		require.NoError(t, err)
		require.NoError(t, all.ExtractInto(bs))
		assert.Equal(t, 0.7, bs.Values()[7])
		assert.Equal(t, p.Values(), bs.Values()[:3])
	})
}

func TestScopedState_AtomicFailure(t *testing.T) {
	f := newFixture(t)
	q := boundedRV(t, 2)

	// T = {P, Q}: P occurs in C but Q does not.
	tm := NewCompound("T")
	require.NoError(t, tm.AddSubManifold(f.p, 1))
	require.NoError(t, tm.AddSubManifold(q, 1))
	ts := scoped(t, newTestSpace(t, tm))
	require.NoError(t, ts.SetValue(0, 5))
	tBefore := ts.Values()

	c := scoped(t, f.cs)
	require.NoError(t, c.SetValue(0, 0.25))
	cBefore := c.Values()

	err := c.ExtractInto(ts)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, tBefore, ts.Values(), "target unchanged")

	err = c.InjectFrom(ts)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, cBefore, c.Values(), "receiver unchanged")

	combined, err := scoped(t, f.rs).CombineWith(ts)
	require.NoError(t, err)
	assert.ErrorIs(t, combined.ExtractInto(c), ErrNotFound)
	assert.Equal(t, cBefore, c.Values())
}

func TestScopedState_CopyCommon(t *testing.T) {
	se3 := NewSE3()
	require.NoError(t, se3.SetBounds(NewBounds(3, -10, 10)))
	src := scoped(t, newTestSpace(t, se3))
	se3.SetXYZ(src.State(), 1, 2, 3)
	se3.SetQuaternion(src.State(), AxisAngle(0, 0, 1, 0.5))

	// {SE3.position, SO2} shares only the position with SE3.
	partial := NewCompound("partial")
	require.NoError(t, partial.AddSubManifold(se3.Position(), 1))
	require.NoError(t, partial.AddSubManifold(NewSO2(), 1))
	dst := scoped(t, newTestSpace(t, partial))
	require.NoError(t, dst.SetValue(3, 0.25))

	// The strict projection refuses: SO2 is not part of SE3.
	assert.ErrorIs(t, src.ExtractInto(dst), ErrNotFound)

	assert.Equal(t, 1, dst.CopyCommonFrom(src))
	assert.Equal(t, []float64{1, 2, 3, 0.25}, dst.Values())

	// The reverse direction writes the position back into SE3.
	require.NoError(t, dst.SetValue(0, -4))
	assert.Equal(t, 1, CopyCommon(src, dst))
	assert.Equal(t, -4.0, se3.X(src.State()))

	// Nothing shared.
	other := scoped(t, newTestSpace(t, NewSO2()))
	assert.Zero(t, CopyCommon(other, src))

	// Same manifold copies everything.
	clone, err := src.Clone()
	require.NoError(t, err)
	defer clone.Release()
	require.NoError(t, clone.SetValue(2, 7))
	assert.Equal(t, 1, CopyCommon(clone, src))
	assert.Equal(t, src.Values(), clone.Values())
}

func TestScopedState_Equality(t *testing.T) {
	f := newFixture(t)
	a := scoped(t, f.cs)
	b := scoped(t, f.cs)

	eq, err := a.Equal(b)
	require.NoError(t, err)
	assert.True(t, eq)

	require.NoError(t, b.SetValue(1, 1e-12))
	eq, err = a.Equal(b)
	require.NoError(t, err)
	assert.False(t, eq, "equality is exact")

	d, err := a.Distance(b)
	require.NoError(t, err)
	assert.InDelta(t, 1e-12, d, 1e-15)

	_, err = a.Equal(scoped(t, f.ps))
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = a.Distance(scoped(t, f.ps))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// Structurally identical but distinct manifolds do not compare.
	twin := NewCompound("C")
	require.NoError(t, twin.AddSubManifold(boundedRV(t, 3), 1))
	require.NoError(t, twin.AddSubManifold(NewSO3(), 1))
	_, err = a.Equal(scoped(t, newTestSpace(t, twin)))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, a.Assign(b))
	eq, _ = a.Equal(b)
	assert.True(t, eq)
	assert.ErrorIs(t, a.Assign(scoped(t, f.ps)), ErrTypeMismatch)
}

func TestScopedState_Interpolate(t *testing.T) {
	f := newFixture(t)
	a := scoped(t, f.cs)
	b := scoped(t, f.cs)
	out := scoped(t, f.cs)

	copy(b.State(), []float64{1, 0, 0})
	f.r.SetAxisAngle(b.State()[3:], 0, 0, 1, math.Pi/2)

	require.NoError(t, a.Interpolate(b, 0.5, out))
	dA, _ := a.Distance(out)
	dB, _ := out.Distance(b)
	assert.InDelta(t, dA, dB, 1e-9)
	assert.True(t, out.SatisfiesBounds())

	assert.ErrorIs(t, a.Interpolate(scoped(t, f.ps), 0.5, out), ErrTypeMismatch)
	assert.ErrorIs(t, a.Interpolate(b, 0.5, scoped(t, f.ps)), ErrTypeMismatch)
}

func TestScopedState_InterpolateEndpoints(t *testing.T) {
	se3 := NewSE3()
	require.NoError(t, se3.SetBounds(NewBounds(3, -1, 1)))
	sp := newTestSpace(t, se3)

	a, b, out := scoped(t, sp), scoped(t, sp), scoped(t, sp)
	se3.SetXYZ(a.State(), 0.7, 0.1, 0.3)
	se3.SetXYZ(b.State(), 0.1, 0.7, -0.9)
	se3.SetQuaternion(b.State(), AxisAngle(0, 1, 0, 0.4))

	require.NoError(t, a.Interpolate(b, 1, out))
	eq, err := out.Equal(b)
	require.NoError(t, err)
	assert.True(t, eq, "at 1: %v", out)

	require.NoError(t, a.Interpolate(b, 0, out))
	eq, err = out.Equal(a)
	require.NoError(t, err)
	assert.True(t, eq, "at 0: %v", out)
}

func TestScopedState_Lifecycle(t *testing.T) {
	f := newFixture(t)

	ss, err := f.cs.NewScopedState()
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.cs.Stats().Live)
	assert.Same(t, f.cs, ss.Space())

	clone, err := ss.Clone()
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.cs.Stats().Live)

	ss.Release()
	ss.Release()
	clone.Release()
	assert.Zero(t, f.cs.Stats().Live)
	assert.Nil(t, ss.State())
	assert.Equal(t, "C<released>", ss.String())

	var nilState *ScopedState
	nilState.Release()
}

func TestScopedState_Randomize(t *testing.T) {
	f := newFixture(t)
	c := scoped(t, f.cs)

	smp, err := f.cs.NewSampler(1)
	require.NoError(t, err)
	require.NoError(t, c.Randomize(smp))
	assert.True(t, c.SatisfiesBounds())

	other, err := f.ps.NewSampler(1)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Randomize(other), ErrTypeMismatch)

	c.State()[0] = 3
	c.EnforceBounds()
	assert.Equal(t, 1.0, c.Values()[0])
}

func TestScopedState_Coordinates(t *testing.T) {
	arm := NewRealVector(2)
	require.NoError(t, arm.SetLowHigh(-1, 1))
	require.NoError(t, arm.SetDimensionName(1, "elbow"))
	c := NewCompound("robot")
	require.NoError(t, c.AddSubManifold(NewSO2(), 1))
	require.NoError(t, c.AddSubManifold(arm, 1))
	ss := scoped(t, newTestSpace(t, c))

	require.NoError(t, ss.SetCoordinate("elbow", 0.3))
	v, err := ss.Coordinate("elbow")
	require.NoError(t, err)
	assert.Equal(t, 0.3, v)
	assert.Equal(t, 0.3, ss.Values()[2])

	_, err = ss.Coordinate("wrist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScopedState_String(t *testing.T) {
	se2 := NewSE2()
	require.NoError(t, se2.SetBounds(NewBounds(2, -5, 5)))
	ss := scoped(t, newTestSpace(t, se2))
	se2.SetXY(ss.State(), 1, 2)
	se2.SetYaw(ss.State(), 0.5)

	assert.Equal(t, "SE2(R2[1 2], SO2[0.5])", ss.String())
}

func TestScopedState_Metrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	f := newFixture(t, WithMetricsCollector(mc))

	c := scoped(t, f.cs)
	p := scoped(t, f.ps)
	require.NoError(t, c.ExtractInto(p))
	require.NoError(t, c.InjectFrom(p))
	_, err := c.ComponentOf(NewSO2())
	require.Error(t, err)
	assert.Error(t, c.ExtractInto(scoped(t, newTestSpace(t, NewSO2()))))
	_, err = c.CombineWith(p)
	require.Error(t, err)
	c.CopyCommonFrom(p)

	st := mc.GetStats()
	assert.Equal(t, int64(5), st.ProjectionCount)
	assert.Equal(t, int64(2), st.ProjectionErrors)
	assert.Equal(t, int64(3), st.ProjectionCopies)
}

func BenchmarkScopedState_ExtractInto(b *testing.B) {
	se3 := NewSE3()
	_ = se3.SetBounds(NewBounds(3, -1, 1))
	sp := NewSpace(se3)
	_ = sp.Setup()
	defer sp.Close()
	rs := NewSpace(se3.Rotation())
	_ = rs.Setup()
	defer rs.Close()

	c, _ := sp.NewScopedState()
	defer c.Release()
	r, _ := rs.NewScopedState()
	defer r.Release()

	b.ReportAllocs()
	for b.Loop() {
		_ = c.ExtractInto(r)
	}
}
