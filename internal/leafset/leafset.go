package leafset

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a set of identity tokens. The zero value is not usable; use New.
type Set struct {
	rb *roaring.Bitmap
}

// New returns a set holding ids.
func New(ids ...uint32) *Set {
	return &Set{rb: roaring.BitmapOf(ids...)}
}

// Add inserts id and reports whether it was absent.
func (s *Set) Add(id uint32) bool {
	return s.rb.CheckedAdd(id)
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id uint32) bool {
	return s.rb.Contains(id)
}

// Len returns the number of tokens.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality()) //nolint:gosec // bounded by the token counter
}

// Shared returns the tokens present in both sets, in ascending order.
func (s *Set) Shared(other *Set) []uint32 {
	return roaring.And(s.rb, other.rb).ToArray()
}

// Union returns a new set holding the tokens of both sets.
func (s *Set) Union(other *Set) *Set {
	return &Set{rb: roaring.Or(s.rb, other.rb)}
}
