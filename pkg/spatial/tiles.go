package spatial

import (
	"fmt"
	"path/filepath"

	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/formats"
	gmath "github.com/Faultbox/geobake/pkg/math"
)

// DefaultTilePrefix is the default tile filename prefix.
const DefaultTilePrefix = "grass_tile"

// TileOptions configure BuildTiles.
type TileOptions struct {
	TileSize       float64
	MinInstances   int    // tiles with fewer instances are dropped
	FilenamePrefix string // defaults to DefaultTilePrefix
}

// TileFile is one retained tile and the file it is written to.
type TileFile struct {
	Key      CellKey
	Filename string
	Bounds   gmath.Bounds
	Tile     *formats.Tile
}

// TileSet is the output of BuildTiles.
type TileSet struct {
	Tiles    []TileFile // ascending key order
	Manifest *formats.Manifest

	TotalInstances int
	CreatedTiles   int
	FilteredTiles  int
	Stats          CountStats // over retained tiles
}

// TileFilename returns the file name of the tile at key.
func TileFilename(prefix string, key CellKey) string {
	if prefix == "" {
		prefix = DefaultTilePrefix
	}
	return fmt.Sprintf("%s_%d_%d.bin", prefix, key.X, key.Z)
}

// BuildTiles derives an instance per position and groups instances into
// tiles of opts.TileSize on the XZ plane.
func BuildTiles(positions []r3.Vector, opts TileOptions) (*TileSet, error) {
	if !(opts.TileSize > 0) {
		return nil, fmt.Errorf("%w: tile size %v", ErrInvalidSize, opts.TileSize)
	}
	if opts.MinInstances < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMin, opts.MinInstances)
	}
	if len(positions) == 0 {
		return nil, ErrNoInstances
	}

	type bucket struct {
		bounds    gmath.Bounds
		instances []formats.TileInstance
	}
	buckets := make(map[CellKey]*bucket)
	for i, p := range positions {
		if err := checkFinite(i, p); err != nil {
			return nil, err
		}
		key, err := checkedKeyOf(p.X, p.Z, opts.TileSize)
		if err != nil {
			return nil, err
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{bounds: gmath.EmptyBounds()}
			buckets[key] = b
		}
		b.bounds = b.bounds.Extend(p)
		b.instances = append(b.instances, DeriveInstance(p))
	}

	set := &TileSet{
		TotalInstances: len(positions),
		CreatedTiles:   len(buckets),
		Manifest: &formats.Manifest{
			TileSize:       opts.TileSize,
			TotalInstances: len(positions),
			Tiles:          []formats.ManifestTile{},
		},
	}

	var counts []float64
	for _, key := range sortedKeys(buckets) {
		b := buckets[key]
		if len(b.instances) < opts.MinInstances {
			set.FilteredTiles++
			continue
		}

		tf := TileFile{
			Key:      key,
			Filename: TileFilename(opts.FilenamePrefix, key),
			Bounds:   b.bounds,
			Tile: &formats.Tile{
				Header: formats.TileHeader{
					Count: uint32(len(b.instances)),
					Min:   b.bounds.MinArray(),
					Max:   b.bounds.MaxArray(),
				},
				Instances: b.instances,
			},
		}
		set.Tiles = append(set.Tiles, tf)
		set.Manifest.Tiles = append(set.Manifest.Tiles, formats.ManifestTile{
			Filename:      tf.Filename,
			TileX:         key.X,
			TileZ:         key.Z,
			InstanceCount: len(b.instances),
			Bounds: formats.ManifestBounds{
				Min: [3]float64{b.bounds.Min.X, b.bounds.Min.Y, b.bounds.Min.Z},
				Max: [3]float64{b.bounds.Max.X, b.bounds.Max.Y, b.bounds.Max.Z},
			},
		})
		counts = append(counts, float64(len(b.instances)))
	}

	set.Manifest.TileCount = len(set.Tiles)
	set.Stats = countStats(counts)
	return set, nil
}

// Write writes every tile into dir and then the manifest. The manifest is
// encoded first, so an unencodable manifest leaves dir untouched.
// progress, if set, is called after each tile.
func (s *TileSet) Write(dir string, progress func(done, total int)) error {
	manifest, err := s.Manifest.Marshal()
	if err != nil {
		return err
	}
	for i, tf := range s.Tiles {
		if err := formats.WriteTileFile(filepath.Join(dir, tf.Filename), tf.Tile); err != nil {
			return fmt.Errorf("writing tile %s: %w", tf.Key, err)
		}
		if progress != nil {
			progress(i+1, len(s.Tiles))
		}
	}
	return formats.WriteManifestData(filepath.Join(dir, formats.ManifestFilename), manifest)
}
