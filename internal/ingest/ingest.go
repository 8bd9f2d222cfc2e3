// Package ingest reads meshes, point sets and textures from files into the
// in-memory arrays the encoders consume.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	gmath "github.com/Faultbox/geobake/pkg/math"
)

// Ingest errors.
var (
	ErrNoGeometry        = errors.New("no geometry found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidPLY        = errors.New("invalid PLY file")
	ErrInvalidPCD        = errors.New("invalid PCD file")
	ErrUnknownAxis       = errors.New("unknown axis convention")
	ErrUnknownSource     = errors.New("unknown source type")
)

// Axis is the up-axis convention of an input file.
type Axis string

// Axis conventions.
const (
	AxisNone     Axis = "none"         // already in the client frame
	AxisZUpToYUp Axis = "z_up_to_y_up" // authoring-tool Z-up to client Y-up
)

// ParseAxis parses an axis selector. Empty selects AxisNone.
func ParseAxis(s string) (Axis, error) {
	switch a := Axis(strings.ToLower(strings.TrimSpace(s))); a {
	case AxisNone, AxisZUpToYUp:
		return a, nil
	case "":
		return AxisNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAxis, s)
	}
}

// Matrix returns the transform for the convention, or nil for AxisNone.
func (a Axis) Matrix() *gmath.Mat4 {
	if a != AxisZUpToYUp {
		return nil
	}
	m := gmath.ZUpToYUp()
	return &m
}

// DefaultAxis returns the convention assumed for source when none is set.
// Point clouds come from Z-up scanners and photogrammetry tools; particle and
// vertex exports are already in the client frame.
func DefaultAxis(source Source) Axis {
	if source == SourcePointCloud {
		return AxisZUpToYUp
	}
	return AxisNone
}

// Source selects which part of a file instances come from.
type Source string

// Instance sources.
const (
	SourcePointCloud Source = "pointcloud"
	SourceParticles  Source = "particles"
	SourceVertices   Source = "vertices"
)

// ParseSource parses a source selector.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourcePointCloud, SourceParticles, SourceVertices:
		return src, nil
	default:
		return "", fmt.Errorf("%w: %q (valid: pointcloud, particles, vertices)", ErrUnknownSource, s)
	}
}
