package cspace

// SE2 is the space of planar rigid-body poses: {R2 (weight 1), SO2 (weight 0.5)}.
// Its shape is locked at construction; only the position bounds can be set.
type SE2 struct {
	*Compound
	position *RealVector
	rotation *SO2
}

// NewSE2 creates a planar pose manifold.
func NewSE2() *SE2 {
	m := &SE2{
		Compound: NewCompound("SE2"),
		position: NewRealVector(2),
		rotation: NewSO2(),
	}
	_ = m.AddSubManifold(m.position, 1)
	_ = m.AddSubManifold(m.rotation, 0.5)
	m.freezeShape()
	return m
}

// Position returns the R2 component.
func (m *SE2) Position() *RealVector { return m.position }

// Rotation returns the SO2 component.
func (m *SE2) Rotation() *SO2 { return m.rotation }

// SetBounds sets the position bounds.
func (m *SE2) SetBounds(b Bounds) error { return m.position.SetBounds(b) }

func (m *SE2) X(s State) float64   { return s[0] }
func (m *SE2) Y(s State) float64   { return s[1] }
func (m *SE2) Yaw(s State) float64 { return s[2] }

// SetXY sets the position of s.
func (m *SE2) SetXY(s State, x, y float64) {
	s[0], s[1] = x, y
}

// SetYaw sets the normalized heading of s.
func (m *SE2) SetYaw(s State, yaw float64) {
	m.rotation.SetAngle(s[2:3], yaw)
}

// SE3 is the space of rigid-body poses: {R3 (weight 1), SO3 (weight 1)}.
// Its shape is locked at construction; only the position bounds can be set.
type SE3 struct {
	*Compound
	position *RealVector
	rotation *SO3
}

// NewSE3 creates a pose manifold.
func NewSE3() *SE3 {
	m := &SE3{
		Compound: NewCompound("SE3"),
		position: NewRealVector(3),
		rotation: NewSO3(),
	}
	_ = m.AddSubManifold(m.position, 1)
	_ = m.AddSubManifold(m.rotation, 1)
	m.freezeShape()
	return m
}

// Position returns the R3 component.
func (m *SE3) Position() *RealVector { return m.position }

// Rotation returns the SO3 component.
func (m *SE3) Rotation() *SO3 { return m.rotation }

// SetBounds sets the position bounds.
func (m *SE3) SetBounds(b Bounds) error { return m.position.SetBounds(b) }

func (m *SE3) X(s State) float64 { return s[0] }
func (m *SE3) Y(s State) float64 { return s[1] }
func (m *SE3) Z(s State) float64 { return s[2] }

// SetXYZ sets the position of s.
func (m *SE3) SetXYZ(s State, x, y, z float64) {
	s[0], s[1], s[2] = x, y, z
}

// SetY sets the y coordinate of s.
func (m *SE3) SetY(s State, y float64) { s[1] = y }

// Quaternion returns the orientation of s.
func (m *SE3) Quaternion(s State) Quaternion {
	return m.rotation.Quaternion(s[3:7])
}

// SetQuaternion sets the orientation of s.
func (m *SE3) SetQuaternion(s State, q Quaternion) {
	m.rotation.SetQuaternion(s[3:7], q)
}
