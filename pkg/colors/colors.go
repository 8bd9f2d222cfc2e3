// Package colors derives a single RGBA8 color per triangle from vertex colors
// or from a texture sampled at the triangle's UV centroid.
package colors

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	gmath "github.com/Faultbox/geobake/pkg/math"
)

// Reasons a requested color source cannot be used.
var (
	ErrUnknownMode     = errors.New("unknown color source")
	ErrNoVertexColors  = errors.New("no vertex colors found")
	ErrNoUVs           = errors.New("no UV layer found")
	ErrNoTexture       = errors.New("no texture found")
	ErrInvalidTexture  = errors.New("invalid texture")
	ErrColorLayerShape = errors.New("invalid color layer")
)

// Mode selects how colors are sourced.
type Mode string

// Color source modes.
const (
	ModeAuto         Mode = "auto"
	ModeImage        Mode = "image"
	ModeVertexColors Mode = "vertex_colors"
	ModeNone         Mode = "none"
)

// ParseMode parses a color source selector (case-insensitive).
// An empty selector disables colors.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeImage, ModeVertexColors, ModeNone:
		return m, nil
	case "":
		return ModeNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Kind is the strategy a Resolver was built with.
type Kind uint8

// Resolver kinds.
const (
	KindVertexColors Kind = iota + 1
	KindTexture
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindVertexColors:
		return "vertex colors"
	case KindTexture:
		return "texture"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Domain says what a color layer is indexed by.
type Domain uint8

// Color layer domains.
const (
	DomainVertex Domain = iota // indexed by vertex index
	DomainCorner               // indexed by triangle*3 + corner
)

// ColorLayer holds flat color values with 3 or 4 channels per entry.
type ColorLayer struct {
	Name     string
	Domain   Domain
	Channels int
	Values   []float32
}

// Len returns the number of colors in the layer.
func (l *ColorLayer) Len() int {
	if l == nil || l.Channels <= 0 {
		return 0
	}
	return len(l.Values) / l.Channels
}

// At returns the color at index i with alpha defaulting to 1.
// ok is false when i is outside the layer.
func (l *ColorLayer) At(i int) (c [4]float64, ok bool) {
	if i < 0 || i >= l.Len() {
		return c, false
	}
	base := i * l.Channels
	c[0] = float64(l.Values[base])
	c[1] = float64(l.Values[base+1])
	c[2] = float64(l.Values[base+2])
	c[3] = 1.0
	if l.Channels > 3 {
		c[3] = float64(l.Values[base+3])
	}
	return c, true
}

func (l *ColorLayer) validate() error {
	if l.Channels != 3 && l.Channels != 4 {
		return fmt.Errorf("%w: %d channels", ErrColorLayerShape, l.Channels)
	}
	if len(l.Values)%l.Channels != 0 {
		return fmt.Errorf("%w: %d values is not a multiple of %d", ErrColorLayerShape, len(l.Values), l.Channels)
	}
	return nil
}

// Inputs are the color-related arrays supplied with a mesh.
// UVs are per corner (triangle*3 + corner) and must already be validated by the caller.
type Inputs struct {
	Layer *ColorLayer
	UVs   []gmath.Vec2
	Image *Image
}

// Settings control sampling and conversion.
// An empty Mode behaves as ModeAuto.
type Settings struct {
	Mode         Mode
	WrapUV       bool
	SRGBToLinear bool
}

// Resolver computes one RGBA8 color per triangle.
// The strategy is fixed when the Resolver is built.
type Resolver struct {
	kind     Kind
	layer    *ColorLayer
	uvs      []gmath.Vec2
	image    *Image
	wrap     bool
	toLinear bool
}

// NewResolver picks a strategy following the priority vertex colors, then texture.
// It returns (nil, nil) for ModeNone and (nil, err) when the requested source is
// unavailable; callers treat both as "colors disabled".
func NewResolver(in Inputs, s Settings) (*Resolver, error) {
	mode := s.Mode
	if mode == "" {
		mode = ModeAuto
	}

	r := &Resolver{wrap: s.WrapUV, toLinear: s.SRGBToLinear}

	switch mode {
	case ModeNone:
		return nil, nil
	case ModeAuto, ModeVertexColors:
		if in.Layer.Len() > 0 {
			if err := in.Layer.validate(); err != nil {
				return nil, err
			}
			r.kind = KindVertexColors
			r.layer = in.Layer
			return r, nil
		}
		if mode == ModeVertexColors {
			return nil, ErrNoVertexColors
		}
	case ModeImage:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if len(in.UVs) == 0 {
		return nil, ErrNoUVs
	}
	if in.Image == nil {
		return nil, ErrNoTexture
	}
	if err := in.Image.Validate(); err != nil {
		return nil, err
	}
	r.kind = KindTexture
	r.uvs = in.UVs
	r.image = in.Image
	return r, nil
}

// Kind returns the strategy in use.
func (r *Resolver) Kind() Kind {
	return r.kind
}

// Triangle returns the color of triangle tri whose vertex indices are verts.
func (r *Resolver) Triangle(tri int, verts [3]uint32) [4]uint8 {
	if r.kind == KindTexture {
		return r.fromTexture(tri)
	}
	return r.fromVertexColors(tri, verts)
}

func (r *Resolver) fromVertexColors(tri int, verts [3]uint32) [4]uint8 {
	var sum [4]float64
	n := 0
	for k, v := range verts {
		idx := int(v)
		if r.layer.Domain == DomainCorner {
			idx = tri*3 + k
		}
		c, ok := r.layer.At(idx)
		if !ok {
			continue
		}
		for ch := range sum {
			sum[ch] += c[ch]
		}
		n++
	}

	if n == 0 {
		sum = [4]float64{1, 1, 1, 1}
	} else {
		for ch := range sum {
			sum[ch] /= float64(n)
		}
	}
	return r.encode(sum)
}

func (r *Resolver) fromTexture(tri int) [4]uint8 {
	base := tri * 3
	u, v := gmath.Centroid(r.uvs[base], r.uvs[base+1], r.uvs[base+2])
	return r.encode(r.image.Sample(u, v, r.wrap))
}

func (r *Resolver) encode(c [4]float64) [4]uint8 {
	if r.toLinear {
		c[0], c[1], c[2] = colorful.Color{R: c[0], G: c[1], B: c[2]}.LinearRgb()
	}
	return ToRGBA8(c)
}

// SRGBToLinear applies the sRGB electro-optical transfer function to one channel.
func SRGBToLinear(c float64) float64 {
	r, _, _ := colorful.Color{R: c}.LinearRgb()
	return r
}

// ToRGBA8 clamps each channel to [0,1] and rounds it to 8 bits.
func ToRGBA8(c [4]float64) [4]uint8 {
	var out [4]uint8
	for i, v := range c {
		out[i] = uint8(clamp01(v)*255 + 0.5)
	}
	return out
}

func clamp01(x float64) float64 {
	if !(x >= 0) {
		return 0
	}
	return math.Min(x, 1)
}
