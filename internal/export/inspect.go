package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/geobake/pkg/formats"
	"github.com/Faultbox/geobake/pkg/quant"
)

// ErrUnknownFile is returned when Inspect cannot identify a file.
var ErrUnknownFile = errors.New("unrecognized file")

// FileKind identifies an output file format.
type FileKind string

// Output file kinds.
const (
	KindITRI     FileKind = "itri"
	KindGrid     FileKind = "grid"
	KindTile     FileKind = "tile"
	KindManifest FileKind = "manifest"
)

// Inspection is a parsed output file. Exactly one of the payload fields is set.
type Inspection struct {
	Path string
	Kind FileKind
	Size int64

	ITRI     *formats.ITRI
	Grid     *formats.Grid
	Tile     *formats.Tile
	Manifest *formats.Manifest
}

// Inspect identifies and parses a file written by one of the exporters.
// Manifests are recognized by extension, ITRI files by magic, and tile
// files by their exact size; anything else is tried as a grid.
func Inspect(path string) (*Inspection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	in := &Inspection{Path: path, Size: int64(len(data))}

	switch {
	case strings.EqualFold(filepath.Ext(path), ".json"):
		in.Kind = KindManifest
		in.Manifest, err = formats.ReadManifest(data)
	case bytes.HasPrefix(data, []byte(formats.ITRIMagic)):
		in.Kind = KindITRI
		in.ITRI, err = formats.ParseITRI(data)
	case isTileSized(data):
		in.Kind = KindTile
		in.Tile, err = formats.ParseTile(data)
	default:
		in.Kind = KindGrid
		in.Grid, err = formats.ParseGrid(data)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrUnknownFile, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", filepath.Base(path), err)
	}
	return in, nil
}

func isTileSized(data []byte) bool {
	if len(data) < formats.TileHeaderSize {
		return false
	}
	count := uint64(binary.LittleEndian.Uint32(data))
	return uint64(formats.TileHeaderSize)+count*formats.TileInstanceSize == uint64(len(data))
}

// Describe renders an inspection as human-readable lines.
func (e *Exporter) Describe(in *Inspection) []string {
	p := e.printer
	lines := []string{p.Sprintf("%s: %s, %d bytes", in.Path, in.Kind, in.Size)}

	switch in.Kind {
	case KindITRI:
		h := in.ITRI.Header
		lines = append(lines,
			p.Sprintf("  version %d, %d triangles", h.Version, h.Count),
			fmt.Sprintf("  colors %t, uvs %t", h.Flags.HasColors(), h.Flags.HasUVs()),
			fmt.Sprintf("  offsets v0=%d x=%d y=%d colors=%d uvs=%d",
				h.V0Offset, h.XOffset, h.YOffset, h.ColorsOffset, h.UVsOffset),
			fmt.Sprintf("  bounds %v .. %v", h.BoundsMin, h.BoundsMax),
			fmt.Sprintf("  vec range %g", h.VecRange))
		if h.Count > 0 {
			x := quant.NewRangeQuantizer(float64(h.VecRange)).Dequantize(in.ITRI.X[0])
			lines = append(lines, fmt.Sprintf("  first edge x %.4f %.4f %.4f", x.X, x.Y, x.Z))
		}
	case KindGrid:
		h := in.Grid.Header
		lines = append(lines,
			p.Sprintf("  %d cells of size %g, %d positions", h.CellCount, h.CellSize, in.Grid.PositionCount()),
			fmt.Sprintf("  x %g .. %g, z %g .. %g", h.MinX, h.MaxX, h.MinZ, h.MaxZ))
	case KindTile:
		h := in.Tile.Header
		lines = append(lines,
			p.Sprintf("  %d instances", h.Count),
			fmt.Sprintf("  bounds %v .. %v", h.Min, h.Max))
	case KindManifest:
		m := in.Manifest
		lines = append(lines,
			p.Sprintf("  tile size %g, %d tiles, %d instances", m.TileSize, m.TileCount, m.TotalInstances))
		for _, t := range m.Tiles {
			lines = append(lines, p.Sprintf("  %s (%d, %d): %d instances", t.Filename, t.TileX, t.TileZ, t.InstanceCount))
		}
	}
	return lines
}
