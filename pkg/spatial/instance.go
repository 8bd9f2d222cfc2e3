package spatial

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/formats"
)

// SeedPrecision is the scale applied before rounding coordinates for hashing
// (3 decimal digits).
const SeedPrecision = 1000.0

// Seed returns the 16-bit seed of a position.
//
// Each coordinate is rounded to SeedPrecision (half away from zero), the three
// results are hashed as little-endian int64 with xxhash64, and the low 16 bits
// are kept. Positions that round to the same triple share a seed.
func Seed(p r3.Vector) uint16 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(roundCoord(p.X)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(roundCoord(p.Y)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(roundCoord(p.Z)))
	return uint16(xxhash.Sum64(buf[:]) & 0xFFFF)
}

func roundCoord(x float64) int64 {
	return int64(math.Round(x * SeedPrecision))
}

// ScaleOf maps a seed to a scale in [0.8, 1.2).
func ScaleOf(seed uint16) float64 {
	return 0.8 + float64(seed%100)/250.0
}

// RotationOf maps a seed to a rotation in [0, 2π) radians, in whole degrees.
func RotationOf(seed uint16) float64 {
	return float64(seed%360) * (math.Pi / 180.0)
}

// DeriveInstance builds the instance record for a position.
func DeriveInstance(p r3.Vector) formats.TileInstance {
	seed := Seed(p)
	return formats.TileInstance{
		Position: [3]float32{float32(p.X), float32(p.Y), float32(p.Z)},
		Seed:     seed,
		Scale:    float32(ScaleOf(seed)),
		Rotation: float32(RotationOf(seed)),
	}
}
