// Package spatial partitions point sets into grid cells and streaming tiles.
//
// Cells and tiles are keyed by floor(a/size), floor(b/size) over a pair of
// horizontal axes and are always emitted in ascending (X, Z) key order, so the
// same input produces byte-identical output.
package spatial

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Partitioning errors.
var (
	ErrNoPositions   = errors.New("no positions found")
	ErrNoInstances   = errors.New("no instances found")
	ErrInvalidSize   = errors.New("size must be positive")
	ErrInvalidStride = errors.New("decimation stride must be at least 1")
	ErrInvalidMin    = errors.New("minimum instance count must not be negative")
	ErrUnknownPlane  = errors.New("unknown plane")
	ErrNonFinite     = errors.New("position is not finite in float32")
	ErrKeyRange      = errors.New("cell key out of range")
)

// Plane names the two horizontal axes used for binning.
type Plane string

// Supported planes.
const (
	PlaneXZ Plane = "xz" // Y-up data
	PlaneXY Plane = "xy" // Z-up data
)

// ParsePlane parses a plane selector. Empty selects PlaneXZ.
func ParsePlane(s string) (Plane, error) {
	switch p := Plane(strings.ToLower(strings.TrimSpace(s))); p {
	case PlaneXZ, PlaneXY:
		return p, nil
	case "":
		return PlaneXZ, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPlane, s)
	}
}

// Axes returns the two horizontal coordinates of p.
func (p Plane) Axes(v r3.Vector) (a, b float64) {
	if p == PlaneXY {
		return v.X, v.Y
	}
	return v.X, v.Z
}

// CellKey addresses a grid cell or tile.
type CellKey struct {
	X int
	Z int
}

// KeyOf returns the key of the cell containing (a, b).
func KeyOf(a, b, size float64) CellKey {
	return CellKey{
		X: int(math.Floor(a / size)),
		Z: int(math.Floor(b / size)),
	}
}

// checkedKeyOf is KeyOf for keys that must fit the int32 fields of the
// binary formats.
func checkedKeyOf(a, b, size float64) (CellKey, error) {
	x, z := math.Floor(a/size), math.Floor(b/size)
	if x < math.MinInt32 || x > math.MaxInt32 || z < math.MinInt32 || z > math.MaxInt32 {
		return CellKey{}, fmt.Errorf("%w: (%v,%v) with size %v", ErrKeyRange, a, b, size)
	}
	return CellKey{X: int(x), Z: int(z)}, nil
}

// checkFinite rejects positions the float32 output formats cannot carry.
func checkFinite(i int, p r3.Vector) error {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
			return fmt.Errorf("%w: position %d is %v", ErrNonFinite, i, p)
		}
	}
	return nil
}

// Compare orders keys by X, then Z.
func (k CellKey) Compare(o CellKey) int {
	if c := cmp.Compare(k.X, o.X); c != 0 {
		return c
	}
	return cmp.Compare(k.Z, o.Z)
}

func (k CellKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.X, k.Z)
}

// sortedKeys returns the map keys in ascending (X, Z) order.
func sortedKeys[V any](m map[CellKey]V) []CellKey {
	keys := lo.Keys(m)
	slices.SortFunc(keys, CellKey.Compare)
	return keys
}

// Decimate keeps the elements at indices 0, stride, 2*stride, ...
func Decimate[T any](items []T, stride int) ([]T, error) {
	if stride < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}
	if stride == 1 {
		return items, nil
	}
	return lo.Filter(items, func(_ T, i int) bool {
		return i%stride == 0
	}), nil
}

// CountStats summarizes how many items each cell or tile holds.
type CountStats struct {
	Min  int
	Max  int
	Mean float64
}

func countStats(counts []float64) CountStats {
	if len(counts) == 0 {
		return CountStats{}
	}
	return CountStats{
		Min:  int(floats.Min(counts)),
		Max:  int(floats.Max(counts)),
		Mean: stat.Mean(counts, nil),
	}
}
