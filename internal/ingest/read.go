package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/mesh"
)

// ReadMeshFile reads a triangle mesh from an ASCII PLY file.
// Positions are left in the file's frame; callers apply the axis matrix
// through the encoder's transform.
func ReadMeshFile(path string) (*mesh.Mesh, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".ply" {
		return nil, fmt.Errorf("%w: mesh input %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	ply, err := ReadPLY(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	m, err := ply.Mesh()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// sourceElements lists the PLY elements each source reads, in preference order.
var sourceElements = map[Source][]string{
	SourcePointCloud: {ElementVertex, "point"},
	SourceParticles:  {ElementParticle},
	SourceVertices:   {ElementVertex},
}

// ReadPointsFile reads instance or grid positions from a PLY or PCD file and
// remaps them into the client frame.
// For PLY input the source picks the element; PCD files hold a single cloud.
func ReadPointsFile(path string, source Source, axis Axis) ([]r3.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open points: %w", err)
	}
	defer f.Close()

	var points []r3.Vector
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pcd":
		points, err = ReadPCD(f)
	case ".ply":
		var ply *PLY
		if ply, err = ReadPLY(f); err == nil {
			points, err = pointsFromPLY(ply, source)
		}
	default:
		err = fmt.Errorf("%w: point input %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return RemapAxis(points, axis), nil
}

func pointsFromPLY(ply *PLY, source Source) ([]r3.Vector, error) {
	elements, ok := sourceElements[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	for _, name := range elements {
		if ply.HasElement(name) {
			return ply.Points(name)
		}
	}
	return nil, fmt.Errorf("%w: no %s element for source %s", ErrNoGeometry, strings.Join(elements, " or "), source)
}

// RemapAxis applies the axis convention to points in place and returns them.
func RemapAxis(points []r3.Vector, axis Axis) []r3.Vector {
	m := axis.Matrix()
	if m == nil {
		return points
	}
	for i, p := range points {
		points[i] = m.TransformPoint(p)
	}
	return points
}
