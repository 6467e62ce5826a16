// Package region implements the axis-aligned box geometry the octree
// subdivides: Region3 tracks both extents and a discrete level, and knows
// how to split into its eight Morton-ordered children and fold back up to
// its parent.
package region

import (
	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
)

// Region3 is a half-open axis-aligned box with an integer level counting
// how many times it may still be subdivided before reaching leaf size.
// Level 0 is leaf-sized; Level L is the root passed to a build.
type Region3 struct {
	Min, Max ms3.Vec
	Level    int
}

// NewFromBounds fits a Region3 around bb with enough levels that a level-0
// cell has edge length no greater than minFeature, rounding the box outward
// to a cube centered on bb so every level subdivides symmetrically.
// This is the Go equivalent of Region<N>::withResolution.
func NewFromBounds(bb ms3.Box, minFeature float32) (Region3, error) {
	if minFeature <= 0 || math32.IsNaN(minFeature) || math32.IsInf(minFeature, 0) {
		return Region3{}, errInvalidMinFeature
	}
	sz := bb.Size()
	if invalidBounds(bb) {
		return Region3{}, errInvalidRegion
	}
	longAxis := math32.Max(sz.X, math32.Max(sz.Y, sz.Z))
	if longAxis <= 0 {
		return Region3{}, errInvalidRegion
	}
	levels := int(math32.Ceil(math32.Log2(longAxis / minFeature)))
	if levels < 0 {
		levels = 0
	}
	full := minFeature * math32.Pow(2, float32(levels))
	center := ms3.Scale(0.5, ms3.Add(bb.Min, bb.Max))
	half := full / 2
	halfVec := ms3.Vec{X: half, Y: half, Z: half}
	return Region3{
		Min:   ms3.Sub(center, halfVec),
		Max:   ms3.Add(center, halfVec),
		Level: levels,
	}, nil
}

func invalidBounds(bb ms3.Box) bool {
	return bb.Min.X >= bb.Max.X || bb.Min.Y >= bb.Max.Y || bb.Min.Z >= bb.Max.Z ||
		badFloat(bb.Min.X) || badFloat(bb.Min.Y) || badFloat(bb.Min.Z) ||
		badFloat(bb.Max.X) || badFloat(bb.Max.Y) || badFloat(bb.Max.Z)
}

func badFloat(f float32) bool { return math32.IsNaN(f) || math32.IsInf(f, 0) }

// Size returns the per-axis extents of the region.
func (r Region3) Size() ms3.Vec { return ms3.Sub(r.Max, r.Min) }

// Center returns the midpoint of the region.
func (r Region3) Center() ms3.Vec { return ms3.Scale(0.5, ms3.Add(r.Min, r.Max)) }

// Corner returns the corner of the region selected by a 3-bit index
// (bit0=X, bit1=Y, bit2=Z; 0 selects Min, 1 selects Max on that axis).
func (r Region3) Corner(index int) ms3.Vec {
	sz := r.Size()
	return ms3.Vec{
		X: r.Min.X + bit(index, 0)*sz.X,
		Y: r.Min.Y + bit(index, 1)*sz.Y,
		Z: r.Min.Z + bit(index, 2)*sz.Z,
	}
}

func bit(index, shift int) float32 {
	if (index>>shift)&1 != 0 {
		return 1
	}
	return 0
}

// Subdivide splits the region into its 8 Morton-ordered children at
// Level-1: child i has lower corner at lower + bit(i)*half_extent.
func (r Region3) Subdivide() [8]Region3 {
	half := ms3.Scale(0.5, r.Size())
	lvl := r.Level - 1
	var out [8]Region3
	for i := 0; i < 8; i++ {
		offset := ms3.Vec{X: bit(i, 0) * half.X, Y: bit(i, 1) * half.Y, Z: bit(i, 2) * half.Z}
		lower := ms3.Add(r.Min, offset)
		out[i] = Region3{Min: lower, Max: ms3.Add(lower, half), Level: lvl}
	}
	return out
}

// Parent reconstructs the region that, subdivided, produced r as child
// number index. It is the inverse of Subdivide, used while folding the
// octree back up during collectChildren.
func (r Region3) Parent(index int) Region3 {
	sz := r.Size()
	offset := ms3.Vec{X: bit(index, 0) * sz.X, Y: bit(index, 1) * sz.Y, Z: bit(index, 2) * sz.Z}
	lower := ms3.Sub(r.Min, offset)
	return Region3{Min: lower, Max: ms3.Add(lower, ms3.Scale(2, sz)), Level: r.Level + 1}
}

// Contains reports whether p lies within the region, treating the lower
// bound as inclusive and the upper bound as exclusive on every axis except
// where upperInclusive widens the test to the outer boundary of the whole
// build (so samples exactly on the global maximum corner are not dropped).
func (r Region3) Contains(p ms3.Vec, upperInclusive bool) bool {
	lo := p.X >= r.Min.X && p.Y >= r.Min.Y && p.Z >= r.Min.Z
	if !lo {
		return false
	}
	if upperInclusive {
		return p.X <= r.Max.X && p.Y <= r.Max.Y && p.Z <= r.Max.Z
	}
	return p.X < r.Max.X && p.Y < r.Max.Y && p.Z < r.Max.Z
}

// ContainsRegion reports whether r fully encloses other, used by
// Tape::getBase-style ancestor lookups when folding a specialized tape
// back up to a coarser region.
func (r Region3) ContainsRegion(other Region3) bool {
	return r.Min.X <= other.Min.X && r.Min.Y <= other.Min.Y && r.Min.Z <= other.Min.Z &&
		r.Max.X >= other.Max.X && r.Max.Y >= other.Max.Y && r.Max.Z >= other.Max.Z
}

// HalfDiagonal returns half the length of the region's space diagonal,
// used by interval evaluators to bound how far F can vary across the cell.
func (r Region3) HalfDiagonal() float32 {
	sz := r.Size()
	return 0.5 * math32.Sqrt(sz.X*sz.X+sz.Y*sz.Y+sz.Z*sz.Z)
}

var (
	errInvalidRegion     = regionError("invalid region: lower >= upper on some axis, or NaN")
	errInvalidMinFeature = regionError("invalid min_feature: must be finite and positive")
)

type regionError string

func (e regionError) Error() string { return string(e) }

// IsInvalidRegion reports whether err originated from an invalid input
// region or resolution, matching the InvalidRegion condition of the
// top-level error taxonomy.
func IsInvalidRegion(err error) bool {
	_, ok := err.(regionError)
	return ok
}
