package spatial

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/formats"
)

// GridOptions configure BuildGrid.
type GridOptions struct {
	CellSize   float64
	Decimation int // keep every Nth position; 1 keeps all
	Plane      Plane
}

// GridResult is a built grid plus what went into it.
type GridResult struct {
	Grid       *formats.Grid
	InputCount int
	KeptCount  int
	Stats      CountStats
}

// BuildGrid decimates positions and bins them into cells of opts.CellSize.
// A cell exists only if it received at least one position. Kept positions
// must be finite and their cell keys must fit in int32.
func BuildGrid(positions []r3.Vector, opts GridOptions) (*GridResult, error) {
	if !(opts.CellSize > 0) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidSize, opts.CellSize)
	}
	plane := opts.Plane
	if plane == "" {
		plane = PlaneXZ
	}
	if _, err := ParsePlane(string(plane)); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, ErrNoPositions
	}

	kept, err := Decimate(positions, opts.Decimation)
	if err != nil {
		return nil, err
	}

	minA, minB := math.Inf(1), math.Inf(1)
	maxA, maxB := math.Inf(-1), math.Inf(-1)
	cells := make(map[CellKey][][3]float32)
	for i, p := range kept {
		if err := checkFinite(i*opts.Decimation, p); err != nil {
			return nil, err
		}
		a, b := plane.Axes(p)
		minA, maxA = math.Min(minA, a), math.Max(maxA, a)
		minB, maxB = math.Min(minB, b), math.Max(maxB, b)

		key, err := checkedKeyOf(a, b, opts.CellSize)
		if err != nil {
			return nil, err
		}
		cells[key] = append(cells[key], [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
	}

	keys := sortedKeys(cells)
	grid := &formats.Grid{
		Header: formats.GridHeader{
			CellSize:  float32(opts.CellSize),
			MinX:      float32(minA),
			MaxX:      float32(maxA),
			MinZ:      float32(minB),
			MaxZ:      float32(maxB),
			CellCount: uint32(len(keys)),
		},
		Cells: make([]formats.GridCell, len(keys)),
	}

	counts := make([]float64, len(keys))
	for i, key := range keys {
		grid.Cells[i] = formats.GridCell{X: int32(key.X), Z: int32(key.Z), Positions: cells[key]}
		counts[i] = float64(len(cells[key]))
	}

	return &GridResult{
		Grid:       grid,
		InputCount: len(positions),
		KeptCount:  len(kept),
		Stats:      countStats(counts),
	}, nil
}
