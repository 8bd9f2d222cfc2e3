package export

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/Faultbox/geobake/internal/config"
	"github.com/Faultbox/geobake/internal/ingest"
	"github.com/Faultbox/geobake/pkg/colors"
	"github.com/Faultbox/geobake/pkg/formats"
	gmath "github.com/Faultbox/geobake/pkg/math"
	"github.com/Faultbox/geobake/pkg/mesh"
)

// MeshReport summarizes a mesh export.
type MeshReport struct {
	Output      string
	Triangles   int
	Flags       formats.ITRIFlags
	Bytes       uint64
	VecRange    float64
	ColorKind   colors.Kind
	Diagnostics []mesh.Diagnostic
}

// MeshOptions converts mesh settings into encoder options.
func MeshOptions(cfg config.MeshConfig) (mesh.Options, error) {
	mode, err := colors.ParseMode(cfg.ColorSource)
	if err != nil {
		return mesh.Options{}, err
	}
	axis, err := ingest.ParseAxis(cfg.Axis)
	if err != nil {
		return mesh.Options{}, err
	}

	return mesh.Options{
		Colors:        cfg.Colors,
		UVs:           cfg.UVs,
		ColorSource:   mode,
		WrapUV:        cfg.WrapUV,
		SRGBToLinear:  cfg.SRGBToLinear,
		VecRange:      cfg.VecRange,
		Transform:     meshTransform(axis, cfg.Transform),
		ProgressEvery: cfg.ProgressEvery,
		Workers:       cfg.Workers,
	}, nil
}

// meshTransform remaps the input axes and then applies the configured
// placement. It returns nil when the result is the identity.
func meshTransform(axis ingest.Axis, tc config.TransformConfig) *gmath.Mat4 {
	vec := func(v []float64, neutral float64) r3.Vector {
		if len(v) != 3 {
			return r3.Vector{X: neutral, Y: neutral, Z: neutral}
		}
		return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
	}

	m := gmath.TRS(vec(tc.Translate, 0), vec(tc.Rotate, 0), vec(tc.Scale, 1))
	if remap := axis.Matrix(); remap != nil {
		m = m.Mul(*remap)
	}
	if m.IsIdentity() {
		return nil
	}
	return &m
}

// Mesh encodes the PLY mesh at input into an ITRI file at cfg.Output.
func (e *Exporter) Mesh(ctx context.Context, input string, cfg config.MeshConfig) (*MeshReport, error) {
	opts, err := MeshOptions(cfg)
	if err != nil {
		return nil, err
	}

	m, err := ingest.ReadMeshFile(input)
	if err != nil {
		return nil, err
	}
	e.log.Info("mesh loaded",
		zap.String("input", input),
		zap.Int("vertices", len(m.Positions)),
		zap.Int("triangles", len(m.Triangles)),
		zap.Bool("vertex_colors", m.Colors != nil),
		zap.Bool("uvs", len(m.UVs) > 0))

	var diags []mesh.Diagnostic
	if cfg.Colors && cfg.Texture != "" && opts.ColorSource != colors.ModeNone {
		tex, err := ingest.LoadTexture(cfg.Texture)
		if err != nil {
			diags = append(diags, mesh.Diagnostic{Feature: "texture", Reason: err.Error()})
		} else {
			m.Texture = tex
			e.log.Debug("texture loaded",
				zap.String("texture", tex.Name),
				zap.Int("width", tex.Width),
				zap.Int("height", tex.Height))
		}
	}

	if err := e.checkpoint(ctx, "encode"); err != nil {
		return nil, err
	}

	opts.Progress = func(done, total int) {
		e.log.Info("encoding triangles",
			zap.String("done", e.Count(done)),
			zap.String("total", e.Count(total)),
			zap.String("percent", fmt.Sprintf("%.1f%%", 100*float64(done)/float64(total))))
	}

	res, err := mesh.Encode(m, opts)
	if err != nil {
		return nil, err
	}
	diags = append(diags, res.Diagnostics...)
	e.warnDiagnostics(diags)

	if err := e.checkpoint(ctx, "write"); err != nil {
		return nil, err
	}
	if err := formats.WriteITRIFile(cfg.Output, res.ITRI); err != nil {
		return nil, fmt.Errorf("write %s: %w", cfg.Output, err)
	}

	layout, err := res.ITRI.Layout()
	if err != nil {
		return nil, err
	}
	h := res.ITRI.Header
	e.log.Debug("section offsets",
		zap.Uint32("v0", h.V0Offset),
		zap.Uint32("x", h.XOffset),
		zap.Uint32("y", h.YOffset),
		zap.Uint32("colors", h.ColorsOffset),
		zap.Uint32("uvs", h.UVsOffset))

	report := &MeshReport{
		Output:      cfg.Output,
		Triangles:   int(h.Count),
		Flags:       h.Flags,
		Bytes:       layout.TotalSize(),
		VecRange:    res.VecRange,
		ColorKind:   res.ColorKind,
		Diagnostics: diags,
	}
	e.log.Info("mesh exported",
		zap.String("output", report.Output),
		zap.String("triangles", e.Count(report.Triangles)),
		zap.Bool("colors", h.Flags.HasColors()),
		zap.Bool("uvs", h.Flags.HasUVs()),
		zap.Float64("vec_range", res.VecRange),
		zap.Bool("single_pass", res.SinglePass),
		zap.String("bytes", e.Count(int(report.Bytes))))
	return report, nil
}
