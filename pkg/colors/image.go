package colors

import (
	"fmt"
	"math"
)

// Image is a decoded texture as a flat RGBA float buffer.
// Row 0 is the bottom row, so v=0 samples the first row.
type Image struct {
	Name   string
	Width  int
	Height int
	Pixels []float32
}

// Validate checks the buffer matches the declared dimensions.
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidTexture, img.Width, img.Height)
	}
	if want := img.Width * img.Height * 4; len(img.Pixels) != want {
		return fmt.Errorf("%w: %d floats, want %d", ErrInvalidTexture, len(img.Pixels), want)
	}
	return nil
}

// Sample returns the nearest pixel to (u, v).
// With wrap the coordinates repeat every 1.0, otherwise they are clamped to [0,1].
func (img *Image) Sample(u, v float64, wrap bool) [4]float64 {
	if wrap {
		u = wrap01(u)
		v = wrap01(v)
	} else {
		u = clamp01(u)
		v = clamp01(v)
	}

	x := int(math.Floor(u * float64(img.Width-1)))
	y := int(math.Floor(v * float64(img.Height-1)))
	idx := (y*img.Width + x) * 4

	return [4]float64{
		float64(img.Pixels[idx]),
		float64(img.Pixels[idx+1]),
		float64(img.Pixels[idx+2]),
		float64(img.Pixels[idx+3]),
	}
}

// wrap01 returns x modulo 1 in [0,1), matching floored modulo for negative input.
func wrap01(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	m := math.Mod(x, 1.0)
	if m < 0 {
		m += 1.0
	}
	if m >= 1.0 {
		m = 0
	}
	return m
}
