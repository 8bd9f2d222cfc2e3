package math

import (
	"math"

	"github.com/golang/geo/r3"
)

// Bounds is an axis-aligned bounding box.
// The zero value is not empty; use EmptyBounds to start accumulating.
type Bounds struct {
	Min r3.Vector
	Max r3.Vector
}

// EmptyBounds returns an inverted box that any Extend call replaces.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// BoundsOf returns the bounds of the given points.
func BoundsOf(points []r3.Vector) Bounds {
	b := EmptyBounds()
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}

// Extend returns b grown to contain p.
func (b Bounds) Extend(p r3.Vector) Bounds {
	return Bounds{
		Min: r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// IsEmpty returns true if no point has been added.
func (b Bounds) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Size returns the extent along each axis.
func (b Bounds) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Contains checks if p lies inside the box (inclusive).
func (b Bounds) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// MinArray returns Min as a float32 triple for wire formats.
func (b Bounds) MinArray() [3]float32 {
	return [3]float32{float32(b.Min.X), float32(b.Min.Y), float32(b.Min.Z)}
}

// MaxArray returns Max as a float32 triple for wire formats.
func (b Bounds) MaxArray() [3]float32 {
	return [3]float32{float32(b.Max.X), float32(b.Max.Y), float32(b.Max.Z)}
}
