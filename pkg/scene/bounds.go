package scene

import (
	gomath "math"

	"github.com/Faultbox/modelboard/pkg/math"
)

// Bounds is an axis-aligned bounding box. The zero value is empty.
type Bounds struct {
	Min   math.Vec3
	Max   math.Vec3
	valid bool
}

// NewBounds returns a box spanning the two corners.
func NewBounds(a, b math.Vec3) Bounds {
	return Bounds{Min: a.Min(b), Max: a.Max(b), valid: true}
}

// Extend grows the box to contain p.
func (b *Bounds) Extend(p math.Vec3) {
	if !b.valid {
		b.Min, b.Max, b.valid = p, p, true
		return
	}
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// Union returns a box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if !o.valid {
		return b
	}
	if !b.valid {
		return o
	}
	return Bounds{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max), valid: true}
}

// IsEmpty reports whether no point was ever added.
func (b Bounds) IsEmpty() bool {
	return !b.valid
}

// Size returns the box extent along each axis.
func (b Bounds) Size() math.Vec3 {
	if !b.valid {
		return math.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Center returns the box midpoint.
func (b Bounds) Center() math.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// MaxDim returns the largest axis extent.
func (b Bounds) MaxDim() float64 {
	return b.Size().MaxComponent()
}

// IsDegenerate reports whether the box cannot be framed: empty, zero-sized
// or carrying NaN/Inf coordinates.
func (b Bounds) IsDegenerate() bool {
	if !b.valid || !b.Min.IsFinite() || !b.Max.IsFinite() {
		return true
	}
	d := b.MaxDim()
	return d <= 0 || gomath.IsInf(d, 0)
}

// Corners returns the eight box corners.
func (b Bounds) Corners() [8]math.Vec3 {
	lo, hi := b.Min, b.Max
	return [8]math.Vec3{
		{X: lo.X, Y: lo.Y, Z: lo.Z},
		{X: hi.X, Y: lo.Y, Z: lo.Z},
		{X: lo.X, Y: hi.Y, Z: lo.Z},
		{X: hi.X, Y: hi.Y, Z: lo.Z},
		{X: lo.X, Y: lo.Y, Z: hi.Z},
		{X: hi.X, Y: lo.Y, Z: hi.Z},
		{X: lo.X, Y: hi.Y, Z: hi.Z},
		{X: hi.X, Y: hi.Y, Z: hi.Z},
	}
}

// Transform returns the box enclosing b after applying m.
func (b Bounds) Transform(m math.Mat4) Bounds {
	if !b.valid {
		return b
	}
	var out Bounds
	for _, c := range b.Corners() {
		out.Extend(m.TransformPoint(c))
	}
	return out
}
