// Package config handles geobake configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/geobake/internal/ingest"
	"github.com/Faultbox/geobake/pkg/colors"
	"github.com/Faultbox/geobake/pkg/mesh"
	"github.com/Faultbox/geobake/pkg/spatial"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all export settings.
type Config struct {
	Mesh    MeshConfig    `yaml:"mesh"`
	Grid    GridConfig    `yaml:"grid"`
	Tiles   TilesConfig   `yaml:"tiles"`
	Logging LoggingConfig `yaml:"logging"`
}

// MeshConfig holds triangle codec settings.
type MeshConfig struct {
	Output        string  `yaml:"output"`
	Texture       string  `yaml:"texture"`   // image used when colors come from a texture
	VecRange      float64 `yaml:"vec_range"` // 0 derives the range from the mesh
	Colors        bool    `yaml:"colors"`
	UVs           bool    `yaml:"uvs"`
	ColorSource   string  `yaml:"color_source"`
	WrapUV        bool    `yaml:"wrap_uv"`
	SRGBToLinear  bool    `yaml:"srgb_to_linear"`
	ProgressEvery int     `yaml:"progress_every"`
	Workers       int     `yaml:"workers"`
	Axis          string  `yaml:"axis"`

	Transform TransformConfig `yaml:"transform"`
}

// TransformConfig places the mesh in the scene after the axis remap.
// An empty list keeps the neutral value for that part.
type TransformConfig struct {
	Translate []float64 `yaml:"translate"`
	Rotate    []float64 `yaml:"rotate"` // degrees about X, then Y, then Z
	Scale     []float64 `yaml:"scale"`
}

// GridConfig holds grid partitioner settings.
type GridConfig struct {
	Output     string  `yaml:"output"`
	CellSize   float64 `yaml:"cell_size"`
	Decimation int     `yaml:"decimation"`
	Plane      string  `yaml:"plane"`
	Axis       string  `yaml:"axis"`
}

// TilesConfig holds tile partitioner settings.
type TilesConfig struct {
	OutputDir      string  `yaml:"output_dir"`
	TileSize       float64 `yaml:"tile_size"`
	MinInstances   int     `yaml:"min_instances"`
	SourceType     string  `yaml:"source_type"`
	FilenamePrefix string  `yaml:"filename_prefix"`
	Axis           string  `yaml:"axis"` // empty picks the source type's convention
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the exporter defaults.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Output:        "data.bin",
			VecRange:      0,
			Colors:        false,
			UVs:           true,
			ColorSource:   string(colors.ModeAuto),
			WrapUV:        true,
			SRGBToLinear:  true,
			ProgressEvery: mesh.DefaultProgressEvery,
			Workers:       1,
			Axis:          string(ingest.AxisNone),
			Transform: TransformConfig{
				Translate: []float64{0, 0, 0},
				Rotate:    []float64{0, 0, 0},
				Scale:     []float64{1, 1, 1},
			},
		},
		Grid: GridConfig{
			Output:     "grass-grid.bin",
			CellSize:   50,
			Decimation: 20,
			Plane:      string(spatial.PlaneXZ),
			Axis:       string(ingest.AxisZUpToYUp),
		},
		Tiles: TilesConfig{
			OutputDir:      "grass-tiles",
			TileSize:       50,
			MinInstances:   10,
			SourceType:     string(ingest.SourcePointCloud),
			FilenamePrefix: spatial.DefaultTilePrefix,
			Axis:           "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	return c.ValidateSection(SectionNone)
}

// ValidateSection checks the logging settings and the settings of section.
// SectionNone checks every section.
func (c *Config) ValidateSection(section Section) error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %w", err)
	}
	if section == SectionNone || section == SectionMesh {
		c.Mesh.validate(add)
	}
	if section == SectionNone || section == SectionGrid {
		c.Grid.validate(add)
	}
	if section == SectionNone || section == SectionTiles {
		c.Tiles.validate(add)
	}

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errs)
	}
	return nil
}

type addFunc func(format string, args ...any)

func (m *MeshConfig) validate(add addFunc) {
	if _, err := colors.ParseMode(m.ColorSource); err != nil {
		add("mesh.color_source: %w", err)
	}
	if m.VecRange < 0 {
		add("mesh.vec_range must not be negative, got %v", m.VecRange)
	}
	if m.ProgressEvery < 1 {
		add("mesh.progress_every must be at least 1, got %d", m.ProgressEvery)
	}
	if m.Workers < 1 {
		add("mesh.workers must be at least 1, got %d", m.Workers)
	}
	if m.Output == "" {
		add("mesh.output must be set")
	}
	if _, err := ingest.ParseAxis(m.Axis); err != nil {
		add("mesh.axis: %w", err)
	}

	for _, v := range []struct {
		key    string
		values []float64
	}{
		{"mesh.transform.translate", m.Transform.Translate},
		{"mesh.transform.rotate", m.Transform.Rotate},
		{"mesh.transform.scale", m.Transform.Scale},
	} {
		if len(v.values) != 0 && len(v.values) != 3 {
			add("%s must list 3 values, got %d", v.key, len(v.values))
		}
		if slices.ContainsFunc(v.values, func(f float64) bool { return math.IsNaN(f) || math.IsInf(f, 0) }) {
			add("%s must be finite, got %v", v.key, v.values)
		}
	}
	if slices.Contains(m.Transform.Scale, 0) {
		add("mesh.transform.scale must not be zero, got %v", m.Transform.Scale)
	}
}

func (g *GridConfig) validate(add addFunc) {
	if !(g.CellSize > 0) {
		add("grid.cell_size: %w, got %v", spatial.ErrInvalidSize, g.CellSize)
	}
	if g.Decimation < 1 {
		add("grid.decimation: %w, got %d", spatial.ErrInvalidStride, g.Decimation)
	}
	if _, err := spatial.ParsePlane(g.Plane); err != nil {
		add("grid.plane: %w", err)
	}
	if g.Output == "" {
		add("grid.output must be set")
	}
	if _, err := ingest.ParseAxis(g.Axis); err != nil {
		add("grid.axis: %w", err)
	}
}

func (t *TilesConfig) validate(add addFunc) {
	if !(t.TileSize > 0) {
		add("tiles.tile_size: %w, got %v", spatial.ErrInvalidSize, t.TileSize)
	}
	if t.MinInstances < 0 {
		add("tiles.min_instances: %w, got %d", spatial.ErrInvalidMin, t.MinInstances)
	}
	if _, err := ingest.ParseSource(t.SourceType); err != nil {
		add("tiles.source_type: %w", err)
	}
	if t.OutputDir == "" {
		add("tiles.output_dir must be set")
	}
	if _, err := ingest.ParseAxis(t.Axis); err != nil {
		add("tiles.axis: %w", err)
	}
}
