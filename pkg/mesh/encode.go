package mesh

import (
	"errors"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/geobake/pkg/colors"
	"github.com/Faultbox/geobake/pkg/formats"
	gmath "github.com/Faultbox/geobake/pkg/math"
	"github.com/Faultbox/geobake/pkg/quant"
)

// Encode converts m into an ITRI triangle soup.
//
// The first pass derives the position box from every vertex and the edge
// range from every triangle. The second pass quantizes each triangle into
// the slot matching its input index. Both passes see the same transformed
// positions.
func Encode(m *Mesh, opts Options) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	positions := m.Positions
	if opts.Transform != nil && !opts.Transform.IsIdentity() {
		positions = transformAll(m.Positions, *opts.Transform)
	}

	res := &Result{}

	writeUVs := opts.UVs
	if writeUVs && len(m.UVs) == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Feature: "uvs", Reason: "no UV layer found"})
		writeUVs = false
	}

	var resolver *colors.Resolver
	if opts.Colors {
		var diag *Diagnostic
		var err error
		resolver, diag, err = newResolver(m, opts)
		if err != nil {
			return nil, err
		}
		if diag != nil {
			res.Diagnostics = append(res.Diagnostics, *diag)
		}
	}

	// pass 1
	res.SinglePass = opts.VecRange > 0 && opts.Bounds != nil
	if opts.Bounds != nil {
		res.Bounds = *opts.Bounds
	} else {
		res.Bounds = gmath.BoundsOf(positions)
	}
	if opts.VecRange > 0 {
		res.VecRange = opts.VecRange
	} else {
		var edges quant.EdgeRange
		for _, tri := range m.Triangles {
			p0 := positions[tri[0]]
			edges.Add(positions[tri[1]].Sub(p0), positions[tri[2]].Sub(p0))
		}
		res.VecRange = edges.Range()
	}

	var flags formats.ITRIFlags
	if resolver != nil {
		flags |= formats.ITRIHasColors
		res.ColorKind = resolver.Kind()
	}
	if writeUVs {
		flags |= formats.ITRIHasUVs
	}

	count := len(m.Triangles)
	layout, err := formats.ComputeITRILayout(uint32(count), flags)
	if err != nil {
		return nil, err
	}

	out := &formats.ITRI{
		Header: layout.Header(res.Bounds.MinArray(), res.Bounds.MaxArray(), float32(res.VecRange)),
		V0:     make([][3]uint16, count),
		X:      make([][3]int16, count),
		Y:      make([][3]int16, count),
	}
	if resolver != nil {
		out.Colors = make([][4]uint8, count)
	}
	if writeUVs {
		out.UVs = make([][6]float32, count)
	}

	enc := &encoder{
		mesh:      m,
		positions: positions,
		box:       quant.NewBoxQuantizer(res.Bounds),
		edges:     quant.NewRangeQuantizer(res.VecRange),
		resolver:  resolver,
		out:       out,
	}

	// pass 2
	if err := runBatches(count, opts, enc.encodeRange); err != nil {
		return nil, err
	}

	res.ITRI = out
	return res, nil
}

// newResolver maps an unavailable color source to a diagnostic.
// Only an unknown color source is an error. ModeNone disables colors quietly.
func newResolver(m *Mesh, opts Options) (*colors.Resolver, *Diagnostic, error) {
	r, err := colors.NewResolver(colors.Inputs{
		Layer: m.Colors,
		UVs:   m.UVs,
		Image: m.Texture,
	}, colors.Settings{
		Mode:         opts.ColorSource,
		WrapUV:       opts.WrapUV,
		SRGBToLinear: opts.SRGBToLinear,
	})
	switch {
	case errors.Is(err, colors.ErrUnknownMode):
		return nil, nil, err
	case err != nil:
		return nil, &Diagnostic{Feature: "colors", Reason: err.Error()}, nil
	}
	return r, nil, nil
}

type encoder struct {
	mesh      *Mesh
	positions []r3.Vector
	box       *quant.BoxQuantizer
	edges     *quant.RangeQuantizer
	resolver  *colors.Resolver
	out       *formats.ITRI
}

// encodeRange fills output slots [start, end). Slots never overlap between calls.
func (e *encoder) encodeRange(start, end int) {
	for i := start; i < end; i++ {
		tri := e.mesh.Triangles[i]
		p0 := e.positions[tri[0]]
		p1 := e.positions[tri[1]]
		p2 := e.positions[tri[2]]

		e.out.V0[i] = e.box.Quantize(p0)
		e.out.X[i] = e.edges.Quantize(p1.Sub(p0))
		e.out.Y[i] = e.edges.Quantize(p2.Sub(p0))

		if e.out.Colors != nil {
			e.out.Colors[i] = e.resolver.Triangle(i, tri)
		}
		if e.out.UVs != nil {
			uv := e.mesh.UVs[i*3 : i*3+3]
			e.out.UVs[i] = [6]float32{uv[0].U, uv[0].V, uv[1].U, uv[1].V, uv[2].U, uv[2].V}
		}
	}
}

// runBatches splits [0, total) into batches of opts.ProgressEvery triangles and
// calls fn for each, on up to opts.Workers goroutines.
func runBatches(total int, opts Options, fn func(start, end int)) error {
	batch := opts.ProgressEvery
	if batch <= 0 {
		batch = DefaultProgressEvery
	}

	var (
		mu   sync.Mutex
		done int
	)
	report := func(n int) {
		mu.Lock()
		defer mu.Unlock()
		done += n
		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	starts := lo.RangeWithSteps(0, total, batch)

	if opts.Workers < 2 {
		for _, start := range starts {
			end := min(start+batch, total)
			fn(start, end)
			report(end - start)
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for _, start := range starts {
		g.Go(func() error {
			end := min(start+batch, total)
			fn(start, end)
			report(end - start)
			return nil
		})
	}
	return g.Wait()
}

func transformAll(points []r3.Vector, m gmath.Mat4) []r3.Vector {
	out := make([]r3.Vector, len(points))
	for i, p := range points {
		out[i] = m.TransformPoint(p)
	}
	return out
}
