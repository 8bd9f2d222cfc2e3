package formats

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// ManifestFilename is the manifest name inside a tile output directory.
const ManifestFilename = "manifest.json"

// Manifest lists the tiles a streaming client can fetch.
type Manifest struct {
	TileSize       float64        `json:"tile_size"`
	TotalInstances int            `json:"total_instances"` // before the minimum-count filter
	TileCount      int            `json:"tile_count"`
	Tiles          []ManifestTile `json:"tiles"`
}

// ManifestTile describes one tile file.
type ManifestTile struct {
	Filename      string         `json:"filename"`
	TileX         int            `json:"tile_x"`
	TileZ         int            `json:"tile_z"`
	InstanceCount int            `json:"instance_count"`
	Bounds        ManifestBounds `json:"bounds"`
}

// ManifestBounds is a tile's bounding box.
type ManifestBounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Marshal encodes the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	if m.Tiles == nil {
		m.Tiles = []ManifestTile{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteManifestFile writes m to path. The file only appears once fully written.
func WriteManifestFile(path string, m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return WriteManifestData(path, data)
}

// WriteManifestData writes a manifest already encoded by Marshal to path.
func WriteManifestData(path string, data []byte) error {
	return WriteFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// ReadManifest parses a manifest from JSON.
func ReadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.TileCount != len(m.Tiles) {
		return nil, fmt.Errorf("manifest declares %d tiles, lists %d", m.TileCount, len(m.Tiles))
	}
	return &m, nil
}

// ReadManifestFile parses a manifest from disk.
func ReadManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ReadManifest(data)
}
