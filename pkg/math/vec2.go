package math

// Vec2 is a texture coordinate pair.
type Vec2 struct {
	U, V float32
}

// Centroid returns the average of three coordinates.
// The sum is taken in float64 so float32 rounding of the sum does not shift the sample point.
func Centroid(a, b, c Vec2) (u, v float64) {
	u = (float64(a.U) + float64(b.U) + float64(c.U)) / 3.0
	v = (float64(a.V) + float64(b.V) + float64(c.V)) / 3.0
	return u, v
}
