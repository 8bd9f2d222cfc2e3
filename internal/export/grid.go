package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/geobake/internal/config"
	"github.com/Faultbox/geobake/internal/ingest"
	"github.com/Faultbox/geobake/pkg/formats"
	"github.com/Faultbox/geobake/pkg/spatial"
)

// GridReport summarizes a grid export.
type GridReport struct {
	Output     string
	InputCount int
	KeptCount  int
	CellCount  int
	Header     formats.GridHeader
	Stats      spatial.CountStats
}

// Grid bins the vertices of input into a spatial grid file at cfg.Output.
func (e *Exporter) Grid(ctx context.Context, input string, cfg config.GridConfig) (*GridReport, error) {
	plane, err := spatial.ParsePlane(cfg.Plane)
	if err != nil {
		return nil, err
	}
	axis, err := ingest.ParseAxis(cfg.Axis)
	if err != nil {
		return nil, err
	}

	positions, err := ingest.ReadPointsFile(input, ingest.SourceVertices, axis)
	if err != nil {
		return nil, err
	}
	e.log.Info("positions loaded", zap.String("input", input), zap.String("count", e.Count(len(positions))))

	if err := e.checkpoint(ctx, "partition"); err != nil {
		return nil, err
	}
	res, err := spatial.BuildGrid(positions, spatial.GridOptions{
		CellSize:   cfg.CellSize,
		Decimation: cfg.Decimation,
		Plane:      plane,
	})
	if err != nil {
		return nil, err
	}

	if err := e.checkpoint(ctx, "write"); err != nil {
		return nil, err
	}
	if err := formats.WriteGridFile(cfg.Output, res.Grid); err != nil {
		return nil, fmt.Errorf("write %s: %w", cfg.Output, err)
	}

	h := res.Grid.Header
	report := &GridReport{
		Output:     cfg.Output,
		InputCount: res.InputCount,
		KeptCount:  res.KeptCount,
		CellCount:  int(h.CellCount),
		Header:     h,
		Stats:      res.Stats,
	}
	e.log.Info("grid exported",
		zap.String("output", report.Output),
		zap.String("positions", e.Count(report.KeptCount)),
		zap.String("input", e.Count(report.InputCount)),
		zap.Int("decimation", cfg.Decimation),
		zap.String("cells", e.Count(report.CellCount)),
		zap.Float64("cell_size", cfg.CellSize),
		zap.String("plane", string(plane)),
		zap.Float32s("min", []float32{h.MinX, h.MinZ}),
		zap.Float32s("max", []float32{h.MaxX, h.MaxZ}))
	e.log.Info("positions per cell",
		zap.Int("min", res.Stats.Min),
		zap.Int("max", res.Stats.Max),
		zap.String("avg", fmt.Sprintf("%.1f", res.Stats.Mean)))
	return report, nil
}
