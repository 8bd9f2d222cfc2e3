// Package quant converts floating-point geometry into fixed-width integer codes
// anchored to a bounding box or a scalar range.
package quant

import (
	"math"

	"github.com/golang/geo/r3"

	gmath "github.com/Faultbox/geobake/pkg/math"
)

// Quantization constants.
const (
	UnitScale   = 65535.0 // uint16 full scale for [0,1]
	SignedScale = 32767.0 // int16 full scale for [-1,1]

	// ExtentEpsilon is the axis extent below which a bounding box axis is
	// treated as having unit size.
	ExtentEpsilon = 1e-12
)

// UnitInterval clamps x to [0,1] and maps it to round(x * 65535).
func UnitInterval(x float64) uint16 {
	x = clamp(x, 0, 1)
	return uint16(x*UnitScale + 0.5)
}

// SignedNormalized clamps x to [-1,1] and maps it to round(x * 32767),
// rounding half away from zero.
func SignedNormalized(x float64) int16 {
	x = clamp(x, -1, 1)
	if x >= 0 {
		return int16(x*SignedScale + 0.5)
	}
	return int16(x*SignedScale - 0.5)
}

// DequantizeUnit maps a UnitInterval code back to [0,1].
func DequantizeUnit(q uint16) float64 {
	return float64(q) / UnitScale
}

// DequantizeSigned maps a SignedNormalized code back to [-1,1].
func DequantizeSigned(q int16) float64 {
	return float64(q) / SignedScale
}

// clamp also maps NaN to lo so a bad coordinate cannot produce an undefined conversion.
func clamp(x, lo, hi float64) float64 {
	if !(x >= lo) {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// BoxQuantizer encodes positions relative to an axis-aligned bounding box.
type BoxQuantizer struct {
	Bounds  gmath.Bounds
	invSize r3.Vector
}

// NewBoxQuantizer creates a quantizer for the given bounds.
// Axes with an extent below ExtentEpsilon use a scale of 1.
func NewBoxQuantizer(b gmath.Bounds) *BoxQuantizer {
	size := b.Size()
	return &BoxQuantizer{
		Bounds: b,
		invSize: r3.Vector{
			X: 1.0 / safeExtent(size.X),
			Y: 1.0 / safeExtent(size.Y),
			Z: 1.0 / safeExtent(size.Z),
		},
	}
}

func safeExtent(e float64) float64 {
	if math.Abs(e) > ExtentEpsilon {
		return e
	}
	return 1.0
}

// Normalize maps p into box-relative [0,1] coordinates (unclamped).
func (q *BoxQuantizer) Normalize(p r3.Vector) r3.Vector {
	d := p.Sub(q.Bounds.Min)
	return r3.Vector{X: d.X * q.invSize.X, Y: d.Y * q.invSize.Y, Z: d.Z * q.invSize.Z}
}

// Quantize encodes p as three uint16 codes.
func (q *BoxQuantizer) Quantize(p r3.Vector) [3]uint16 {
	n := q.Normalize(p)
	return [3]uint16{UnitInterval(n.X), UnitInterval(n.Y), UnitInterval(n.Z)}
}

// Dequantize decodes three uint16 codes back into world space.
func (q *BoxQuantizer) Dequantize(c [3]uint16) r3.Vector {
	size := q.Bounds.Size()
	return r3.Vector{
		X: q.Bounds.Min.X + DequantizeUnit(c[0])*safeExtent(size.X),
		Y: q.Bounds.Min.Y + DequantizeUnit(c[1])*safeExtent(size.Y),
		Z: q.Bounds.Min.Z + DequantizeUnit(c[2])*safeExtent(size.Z),
	}
}

// RangeQuantizer encodes vectors whose components lie in [-Range, Range].
type RangeQuantizer struct {
	Range float64
}

// NewRangeQuantizer creates a quantizer for the given range.
// A non-positive range is replaced by 1.
func NewRangeQuantizer(r float64) *RangeQuantizer {
	if !(r > 0) {
		r = 1.0
	}
	return &RangeQuantizer{Range: r}
}

// Quantize encodes v as three int16 codes.
func (q *RangeQuantizer) Quantize(v r3.Vector) [3]int16 {
	return [3]int16{
		SignedNormalized(v.X / q.Range),
		SignedNormalized(v.Y / q.Range),
		SignedNormalized(v.Z / q.Range),
	}
}

// Dequantize decodes three int16 codes back into a vector.
func (q *RangeQuantizer) Dequantize(c [3]int16) r3.Vector {
	return r3.Vector{
		X: DequantizeSigned(c[0]) * q.Range,
		Y: DequantizeSigned(c[1]) * q.Range,
		Z: DequantizeSigned(c[2]) * q.Range,
	}
}

// EdgeRange tracks the longest triangle edge seen so far.
// It is the accumulator for the first pass of auto vecRange derivation.
type EdgeRange struct {
	max float64
}

// Add records the two edge vectors of a triangle.
func (e *EdgeRange) Add(x, y r3.Vector) {
	e.max = math.Max(e.max, math.Max(x.Norm(), y.Norm()))
}

// Max returns the longest edge length recorded.
func (e *EdgeRange) Max() float64 {
	return e.max
}

// Range returns the derived vecRange, substituting 1 when every edge was degenerate.
func (e *EdgeRange) Range() float64 {
	if e.max > 0 {
		return e.max
	}
	return 1.0
}
