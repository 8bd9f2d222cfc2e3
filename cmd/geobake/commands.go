package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/geobake/internal/config"
	"github.com/Faultbox/geobake/internal/export"
	"github.com/Faultbox/geobake/internal/logger"
)

// setup loads the configuration for a command and starts logging.
func setup(c *cli.Context, section config.Section) (*config.Config, *export.Exporter, error) {
	cfg, err := config.Load(c, section)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Sugar.Debugf("config: %+v", cfg)
	return cfg, export.New(logger.Named("export")), nil
}

func inputArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one input file, got %d", c.Command.Name, c.NArg())
	}
	return c.Args().First(), nil
}

func meshAction(c *cli.Context) error {
	input, err := inputArg(c)
	if err != nil {
		return err
	}
	cfg, exp, err := setup(c, config.SectionMesh)
	if err != nil {
		return err
	}

	report, err := exp.Mesh(c.Context, input, cfg.Mesh)
	if err != nil {
		logger.Error("mesh export failed", zap.String("input", input), zap.Error(err))
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Wrote %s: %s triangles, %s bytes\n", report.Output, exp.Count(report.Triangles), exp.Count(int(report.Bytes)))
	fmt.Fprintf(out, "  colors: %t, uvs: %t, vec range: %g\n", report.Flags.HasColors(), report.Flags.HasUVs(), report.VecRange)
	for _, d := range report.Diagnostics {
		fmt.Fprintf(out, "  warning: %s\n", d)
	}
	return nil
}

func gridAction(c *cli.Context) error {
	input, err := inputArg(c)
	if err != nil {
		return err
	}
	cfg, exp, err := setup(c, config.SectionGrid)
	if err != nil {
		return err
	}

	report, err := exp.Grid(c.Context, input, cfg.Grid)
	if err != nil {
		logger.Error("grid export failed", zap.String("input", input), zap.Error(err))
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Wrote %s: %s positions in %s cells\n", report.Output, exp.Count(report.KeptCount), exp.Count(report.CellCount))
	fmt.Fprintf(out, "  per cell: min %d, max %d, avg %.1f\n", report.Stats.Min, report.Stats.Max, report.Stats.Mean)
	return nil
}

func tilesAction(c *cli.Context) error {
	input, err := inputArg(c)
	if err != nil {
		return err
	}
	cfg, exp, err := setup(c, config.SectionTiles)
	if err != nil {
		return err
	}

	report, err := exp.Tiles(c.Context, input, cfg.Tiles)
	if err != nil {
		logger.Error("tile export failed", zap.String("input", input), zap.Error(err))
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Wrote %d tiles to %s: %s instances\n", report.TileCount, report.OutputDir, exp.Count(report.TotalInstances))
	if report.FilteredTiles > 0 {
		fmt.Fprintf(out, "  skipped %d sparse tiles\n", report.FilteredTiles)
	}
	if report.TileCount > 0 {
		fmt.Fprintf(out, "  per tile: min %d, max %d, avg %.1f\n", report.Stats.Min, report.Stats.Max, report.Stats.Mean)
	}
	return nil
}

func inspectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("inspect expects at least one file")
	}
	exp := export.New(nil)

	var errs []error
	for _, path := range c.Args().Slice() {
		in, err := export.Inspect(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, line := range exp.Describe(in) {
			fmt.Fprintln(c.App.Writer, line)
		}
	}
	return errors.Join(errs...)
}

func configInitAction(c *cli.Context) error {
	cfg := config.Default()

	path := c.Args().First()
	if path == "" {
		path = filepath.Join(config.ConfigDir(), config.FileName)
	}
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	var err error
	if c.Args().Present() {
		err = cfg.SaveTo(path)
	} else {
		path, err = cfg.Save()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote default configuration to %s\n", path)
	return nil
}
