// Package mesh encodes indexed triangle meshes into ITRI triangle soups.
package mesh

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/colors"
	"github.com/Faultbox/geobake/pkg/formats"
	gmath "github.com/Faultbox/geobake/pkg/math"
)

// Mesh input errors.
var (
	ErrNoTriangles = errors.New("mesh has no triangles")
	ErrVertexIndex = errors.New("vertex index out of range")
	ErrUVCount     = errors.New("UV count does not match triangle corners")
)

// DefaultProgressEvery is the default progress checkpoint interval in triangles.
const DefaultProgressEvery = 100000

// Mesh is an indexed triangle mesh as handed over by the ingest layer.
type Mesh struct {
	Positions []r3.Vector
	Triangles [][3]uint32

	// UVs are per corner (triangle*3 + corner). Empty when the mesh has no UV layer.
	UVs []gmath.Vec2

	Colors  *colors.ColorLayer // optional
	Texture *colors.Image      // optional
}

// Validate checks every index refers to an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Triangles) == 0 {
		return ErrNoTriangles
	}
	n := uint32(len(m.Positions))
	for i, tri := range m.Triangles {
		for _, v := range tri {
			if v >= n {
				return fmt.Errorf("%w: triangle %d references vertex %d of %d", ErrVertexIndex, i, v, n)
			}
		}
	}
	if len(m.UVs) != 0 && len(m.UVs) != 3*len(m.Triangles) {
		return fmt.Errorf("%w: %d UVs for %d triangles", ErrUVCount, len(m.UVs), len(m.Triangles))
	}
	return nil
}

// Options control which sections are written and how geometry is normalized.
type Options struct {
	Colors bool
	UVs    bool

	ColorSource  colors.Mode
	WrapUV       bool
	SRGBToLinear bool

	// VecRange fixes the edge vector range. Zero or negative derives it from the mesh.
	VecRange float64

	// Bounds fixes the position box. Nil derives it from the mesh.
	// With both VecRange and Bounds set, the mesh is encoded in a single pass.
	Bounds *gmath.Bounds

	// Transform is applied to every position before anything else. Nil means identity.
	Transform *gmath.Mat4

	// Progress is called after each batch of ProgressEvery triangles.
	ProgressEvery int
	Progress      func(done, total int)

	// Workers is the number of goroutines encoding batches. Values below 2 encode inline.
	Workers int
}

// DefaultOptions returns options matching the exporter defaults.
func DefaultOptions() Options {
	return Options{
		UVs:           true,
		ColorSource:   colors.ModeAuto,
		WrapUV:        true,
		SRGBToLinear:  true,
		ProgressEvery: DefaultProgressEvery,
		Workers:       1,
	}
}

// Diagnostic reports a feature that was requested but had to be disabled.
type Diagnostic struct {
	Feature string
	Reason  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s disabled: %s", d.Feature, d.Reason)
}

// Result is an encoded mesh plus what was learned while encoding it.
type Result struct {
	ITRI        *formats.ITRI
	Diagnostics []Diagnostic
	ColorKind   colors.Kind // zero when colors are disabled
	Bounds      gmath.Bounds
	VecRange    float64
	SinglePass  bool
}
