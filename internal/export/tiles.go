package export

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/geobake/internal/config"
	"github.com/Faultbox/geobake/internal/ingest"
	"github.com/Faultbox/geobake/pkg/spatial"
)

// TilesReport summarizes a tile export.
type TilesReport struct {
	OutputDir      string
	TotalInstances int
	TileCount      int // tiles written
	CreatedTiles   int // tiles before the minimum-count filter
	FilteredTiles  int
	Stats          spatial.CountStats
}

// Tiles derives instances from input and writes tile files plus a manifest
// into cfg.OutputDir.
func (e *Exporter) Tiles(ctx context.Context, input string, cfg config.TilesConfig) (*TilesReport, error) {
	source, err := ingest.ParseSource(cfg.SourceType)
	if err != nil {
		return nil, err
	}
	axis := ingest.DefaultAxis(source)
	if strings.TrimSpace(cfg.Axis) != "" {
		if axis, err = ingest.ParseAxis(cfg.Axis); err != nil {
			return nil, err
		}
	}

	positions, err := ingest.ReadPointsFile(input, source, axis)
	if err != nil {
		return nil, err
	}
	e.log.Info("instances loaded",
		zap.String("input", input),
		zap.String("source", string(source)),
		zap.String("axis", string(axis)),
		zap.String("count", e.Count(len(positions))))

	if err := e.checkpoint(ctx, "partition"); err != nil {
		return nil, err
	}
	set, err := spatial.BuildTiles(positions, spatial.TileOptions{
		TileSize:       cfg.TileSize,
		MinInstances:   cfg.MinInstances,
		FilenamePrefix: cfg.FilenamePrefix,
	})
	if err != nil {
		return nil, err
	}
	if set.FilteredTiles > 0 {
		e.log.Info("sparse tiles skipped",
			zap.Int("tiles", set.FilteredTiles),
			zap.Int("min_instances", cfg.MinInstances))
	}

	if err := e.checkpoint(ctx, "write"); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	err = set.Write(cfg.OutputDir, func(done, total int) {
		if done%tileProgressEvery == 0 || done == total {
			e.log.Info("writing tiles", zap.Int("done", done), zap.Int("total", total))
		}
	})
	if err != nil {
		return nil, err
	}

	report := &TilesReport{
		OutputDir:      cfg.OutputDir,
		TotalInstances: set.TotalInstances,
		TileCount:      len(set.Tiles),
		CreatedTiles:   set.CreatedTiles,
		FilteredTiles:  set.FilteredTiles,
		Stats:          set.Stats,
	}
	e.log.Info("tiles exported",
		zap.String("output_dir", report.OutputDir),
		zap.String("instances", e.Count(report.TotalInstances)),
		zap.Int("tiles", report.TileCount),
		zap.Float64("tile_size", cfg.TileSize))
	if report.TileCount > 0 {
		e.log.Info("instances per tile",
			zap.Int("min", report.Stats.Min),
			zap.Int("max", report.Stats.Max),
			zap.String("avg", fmt.Sprintf("%.1f", report.Stats.Mean)))
	}
	return report, nil
}
