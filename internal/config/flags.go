package config

import "github.com/urfave/cli/v2"

// Flag names shared by the CLI and Load.
const (
	FlagConfig  = "config"
	FlagDebug   = "debug"
	FlagLogFile = "log-file"

	FlagOutput = "output"
	FlagAxis   = "axis"

	FlagTexture       = "texture"
	FlagVecRange      = "vec-range"
	FlagColors        = "colors"
	FlagUVs           = "uvs"
	FlagColorSource   = "color-source"
	FlagWrapUV        = "wrap-uv"
	FlagSRGBToLinear  = "srgb-to-linear"
	FlagProgressEvery = "progress-every"
	FlagWorkers       = "workers"
	FlagTranslate     = "translate"
	FlagRotate        = "rotate"
	FlagScale         = "scale"

	FlagCellSize   = "cell-size"
	FlagDecimation = "decimation"
	FlagPlane      = "plane"

	FlagTileSize     = "tile-size"
	FlagMinInstances = "min-instances"
	FlagSourceType   = "source-type"
	FlagPrefix       = "prefix"
)

// EnvConfig names the environment variable that can point at a config file.
const EnvConfig = "GEOBAKE_CONFIG"

// GlobalFlags are accepted by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagConfig, Aliases: []string{"c"}, EnvVars: []string{EnvConfig}, Usage: "load configuration from `FILE`"},
		&cli.BoolFlag{Name: FlagDebug, Usage: "enable debug logging"},
		&cli.StringFlag{Name: FlagLogFile, Usage: "also write logs to `FILE` (rotated)"},
	}
}

// MeshFlags override the mesh section.
func MeshFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagOutput, Aliases: []string{"o"}, Usage: "output ITRI `FILE`"},
		&cli.StringFlag{Name: FlagTexture, Usage: "texture `IMAGE` for image colors"},
		&cli.Float64Flag{Name: FlagVecRange, Usage: "fixed edge vector range (0 derives it)"},
		&cli.BoolFlag{Name: FlagColors, Usage: "write per-triangle colors"},
		&cli.BoolFlag{Name: FlagUVs, Usage: "write per-triangle UVs"},
		&cli.StringFlag{Name: FlagColorSource, Usage: "color source: auto, image, vertex_colors or none"},
		&cli.BoolFlag{Name: FlagWrapUV, Usage: "wrap UVs instead of clamping"},
		&cli.BoolFlag{Name: FlagSRGBToLinear, Usage: "convert colors from sRGB to linear"},
		&cli.IntFlag{Name: FlagProgressEvery, Usage: "log progress every `N` triangles"},
		&cli.IntFlag{Name: FlagWorkers, Usage: "encode with `N` goroutines"},
		&cli.StringFlag{Name: FlagAxis, Usage: "input axis convention: none or z_up_to_y_up"},
		&cli.Float64SliceFlag{Name: FlagTranslate, Usage: "translate the mesh by `X,Y,Z`"},
		&cli.Float64SliceFlag{Name: FlagRotate, Usage: "rotate the mesh by `X,Y,Z` degrees"},
		&cli.Float64SliceFlag{Name: FlagScale, Usage: "scale the mesh by `X,Y,Z`"},
	}
}

// GridFlags override the grid section.
func GridFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagOutput, Aliases: []string{"o"}, Usage: "output grid `FILE`"},
		&cli.Float64Flag{Name: FlagCellSize, Usage: "cell size in scene units"},
		&cli.IntFlag{Name: FlagDecimation, Usage: "keep every `N`th position"},
		&cli.StringFlag{Name: FlagPlane, Usage: "horizontal plane: xz or xy"},
		&cli.StringFlag{Name: FlagAxis, Usage: "input axis convention: none or z_up_to_y_up"},
	}
}

// TilesFlags override the tiles section.
func TilesFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: FlagOutput, Aliases: []string{"o"}, Usage: "output `DIR` for tiles and manifest"},
		&cli.Float64Flag{Name: FlagTileSize, Usage: "tile size in scene units"},
		&cli.IntFlag{Name: FlagMinInstances, Usage: "drop tiles with fewer than `N` instances"},
		&cli.StringFlag{Name: FlagSourceType, Usage: "source type: pointcloud, particles or vertices"},
		&cli.StringFlag{Name: FlagPrefix, Usage: "tile filename prefix"},
		&cli.StringFlag{Name: FlagAxis, Usage: "input axis convention: none or z_up_to_y_up (default follows the source type)"},
	}
}

// Section selects which command's flags applyFlags reads.
type Section int

// Sections.
const (
	SectionNone Section = iota
	SectionMesh
	SectionGrid
	SectionTiles
)

// applyFlags applies CLI flag overrides to the config. Only flags the user set count.
func applyFlags(cfg *Config, c *cli.Context, section Section) {
	if c.Bool(FlagDebug) {
		cfg.Logging.Level = "debug"
	}
	if c.IsSet(FlagLogFile) {
		cfg.Logging.LogFile = c.String(FlagLogFile)
	}

	switch section {
	case SectionMesh:
		setString(c, FlagOutput, &cfg.Mesh.Output)
		setString(c, FlagTexture, &cfg.Mesh.Texture)
		setFloat(c, FlagVecRange, &cfg.Mesh.VecRange)
		setBool(c, FlagColors, &cfg.Mesh.Colors)
		setBool(c, FlagUVs, &cfg.Mesh.UVs)
		setString(c, FlagColorSource, &cfg.Mesh.ColorSource)
		setBool(c, FlagWrapUV, &cfg.Mesh.WrapUV)
		setBool(c, FlagSRGBToLinear, &cfg.Mesh.SRGBToLinear)
		setInt(c, FlagProgressEvery, &cfg.Mesh.ProgressEvery)
		setInt(c, FlagWorkers, &cfg.Mesh.Workers)
		setString(c, FlagAxis, &cfg.Mesh.Axis)
		setFloats(c, FlagTranslate, &cfg.Mesh.Transform.Translate)
		setFloats(c, FlagRotate, &cfg.Mesh.Transform.Rotate)
		setFloats(c, FlagScale, &cfg.Mesh.Transform.Scale)
	case SectionGrid:
		setString(c, FlagOutput, &cfg.Grid.Output)
		setFloat(c, FlagCellSize, &cfg.Grid.CellSize)
		setInt(c, FlagDecimation, &cfg.Grid.Decimation)
		setString(c, FlagPlane, &cfg.Grid.Plane)
		setString(c, FlagAxis, &cfg.Grid.Axis)
	case SectionTiles:
		setString(c, FlagOutput, &cfg.Tiles.OutputDir)
		setFloat(c, FlagTileSize, &cfg.Tiles.TileSize)
		setInt(c, FlagMinInstances, &cfg.Tiles.MinInstances)
		setString(c, FlagSourceType, &cfg.Tiles.SourceType)
		setString(c, FlagPrefix, &cfg.Tiles.FilenamePrefix)
		setString(c, FlagAxis, &cfg.Tiles.Axis)
	}
}

func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setFloat(c *cli.Context, name string, dst *float64) {
	if c.IsSet(name) {
		*dst = c.Float64(name)
	}
}

func setFloats(c *cli.Context, name string, dst *[]float64) {
	if c.IsSet(name) {
		*dst = c.Float64Slice(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setBool(c *cli.Context, name string, dst *bool) {
	if c.IsSet(name) {
		*dst = c.Bool(name)
	}
}
