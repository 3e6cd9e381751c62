package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Bounds is an axis aligned bounding box.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// EmptyBounds returns a bounds that contains no points. Extending it with
// the first point makes it valid.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoundsOf returns the bounding box of the given points.
func BoundsOf(points []r3.Vector) Bounds {
	b := EmptyBounds()
	for _, p := range points {
		b.Extend(p)
	}
	return b
}

func (b *Bounds) Extend(v r3.Vector) {
	b.Min.X = math.Min(b.Min.X, v.X)
	b.Min.Y = math.Min(b.Min.Y, v.Y)
	b.Min.Z = math.Min(b.Min.Z, v.Z)
	b.Max.X = math.Max(b.Max.X, v.X)
	b.Max.Y = math.Max(b.Max.Y, v.Y)
	b.Max.Z = math.Max(b.Max.Z, v.Z)
}

func (b Bounds) Empty() bool {
	return b.Min.X > b.Max.X
}

func (b Bounds) Size() r3.Vector {
	if b.Empty() {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

func (b Bounds) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// MaxDim returns the largest side length of the box.
func (b Bounds) MaxDim() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

func (b Bounds) Union(o Bounds) Bounds {
	if b.Empty() {
		return o
	}
	if o.Empty() {
		return b
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
	return b
}
