// Package leafset holds sets of manifold identity tokens.
//
// A Set is the identity footprint of a manifold tree: the tokens of the root,
// of every compound below it and of every leaf. Two scoped states can be
// combined only when their footprints are disjoint; the shared tokens name
// the overlap otherwise.
//
// Sets are backed by Roaring bitmaps. Tokens are allocated densely from a
// process-wide counter, so even large trees stay in a single container.
package leafset
