package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"

	"github.com/Faultbox/geobake/pkg/colors"
	gmath "github.com/Faultbox/geobake/pkg/math"
	"github.com/Faultbox/geobake/pkg/mesh"
)

// PLY element names.
const (
	ElementVertex   = "vertex"
	ElementFace     = "face"
	ElementParticle = "particle"
)

// plyTypeAliases maps the sized type names some exporters write onto the
// names the PLY parser accepts.
var plyTypeAliases = map[string]string{
	"int8":    "char",
	"uint8":   "uchar",
	"int16":   "short",
	"uint16":  "ushort",
	"int32":   "int",
	"uint32":  "uint",
	"float32": "float",
	"float64": "double",
}

// plyProperty is a property declared in a PLY header.
type plyProperty struct {
	Name string
	Type string // scalar type, or element type for lists
	List bool
}

// plyElement is an element declared in a PLY header.
type plyElement struct {
	Name       string
	Count      int
	Properties []plyProperty
}

func (e *plyElement) property(name string) (plyProperty, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return plyProperty{}, false
}

// PLY is a parsed ASCII PLY file.
type PLY struct {
	elements []plyElement
	data     *goply.Ply
}

// ReadPLY parses an ASCII PLY stream.
// Binary PLY variants are rejected with ErrUnsupportedFormat.
func ReadPLY(r io.Reader) (*PLY, error) {
	normalized, elements, err := normalizePLY(r)
	if err != nil {
		return nil, err
	}

	data, err := parsePLY(normalized)
	if err != nil {
		return nil, err
	}
	return &PLY{elements: elements, data: data}, nil
}

// parsePLY runs the PLY parser, which reports malformed input by panicking.
func parsePLY(src []byte) (ply *goply.Ply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidPLY, r)
		}
	}()
	return goply.New(bytes.NewReader(src)), nil
}

// normalizePLY validates the header, rewrites sized type names and drops
// blank lines. It returns the cleaned file and the declared elements.
func normalizePLY(r io.Reader) ([]byte, []plyElement, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		out      bytes.Buffer
		elements []plyElement
		lineNo   int
		inHeader = true
		format   string
	)

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if out.Len() == 0 && fields[0] != "ply" {
			return nil, nil, fmt.Errorf("%w: missing ply magic", ErrInvalidPLY)
		}

		if inHeader {
			switch fields[0] {
			case "format":
				if len(fields) < 2 {
					return nil, nil, fmt.Errorf("%w: line %d: malformed format", ErrInvalidPLY, lineNo)
				}
				format = fields[1]
				if format != "ascii" {
					return nil, nil, fmt.Errorf("%w: PLY format %q (only ascii is supported)", ErrUnsupportedFormat, format)
				}
			case "element":
				if len(fields) != 3 {
					return nil, nil, fmt.Errorf("%w: line %d: malformed element", ErrInvalidPLY, lineNo)
				}
				count, err := strconv.Atoi(fields[2])
				if err != nil || count < 0 {
					return nil, nil, fmt.Errorf("%w: line %d: bad element count %q", ErrInvalidPLY, lineNo, fields[2])
				}
				elements = append(elements, plyElement{Name: fields[1], Count: count})
			case "property":
				if len(elements) == 0 {
					return nil, nil, fmt.Errorf("%w: line %d: property before element", ErrInvalidPLY, lineNo)
				}
				prop, err := parsePLYProperty(fields)
				if err != nil {
					return nil, nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPLY, lineNo, err)
				}
				last := &elements[len(elements)-1]
				last.Properties = append(last.Properties, prop)
			case "end_header":
				inHeader = false
			case "comment", "obj_info":
				continue
			}
			for i, f := range fields {
				if alias, ok := plyTypeAliases[f]; ok && fields[0] == "property" && i < len(fields)-1 {
					fields[i] = alias
				}
			}
		}

		out.WriteString(strings.Join(fields, " "))
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read PLY: %w", err)
	}

	if out.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: empty file", ErrInvalidPLY)
	}
	if inHeader {
		return nil, nil, fmt.Errorf("%w: missing end_header", ErrInvalidPLY)
	}
	if format == "" {
		return nil, nil, fmt.Errorf("%w: missing format line", ErrInvalidPLY)
	}
	return out.Bytes(), elements, nil
}

func parsePLYProperty(fields []string) (plyProperty, error) {
	canonical := func(t string) string {
		if alias, ok := plyTypeAliases[t]; ok {
			return alias
		}
		return t
	}

	if len(fields) >= 2 && fields[1] == "list" {
		if len(fields) != 5 {
			return plyProperty{}, fmt.Errorf("malformed list property")
		}
		return plyProperty{Name: fields[4], Type: canonical(fields[3]), List: true}, nil
	}
	if len(fields) != 3 {
		return plyProperty{}, fmt.Errorf("malformed property")
	}
	return plyProperty{Name: fields[2], Type: canonical(fields[1])}, nil
}

// element returns the header declaration of name.
func (p *PLY) element(name string) (*plyElement, bool) {
	for i := range p.elements {
		if p.elements[i].Name == name {
			return &p.elements[i], true
		}
	}
	return nil, false
}

// HasElement reports whether the file declares a non-empty element.
func (p *PLY) HasElement(name string) bool {
	e, ok := p.element(name)
	return ok && e.Count > 0
}

// Points returns the x/y/z properties of every record of an element.
func (p *PLY) Points(element string) ([]r3.Vector, error) {
	decl, ok := p.element(element)
	if !ok || decl.Count == 0 {
		return nil, fmt.Errorf("%w: no %q element", ErrNoGeometry, element)
	}
	for _, axis := range []string{"x", "y", "z"} {
		if _, ok := decl.property(axis); !ok {
			return nil, fmt.Errorf("%w: %q element has no %s property", ErrNoGeometry, element, axis)
		}
	}

	records := p.data.Elements(element)
	points := make([]r3.Vector, len(records))
	for i, rec := range records {
		points[i] = r3.Vector{
			X: toFloat(rec["x"]),
			Y: toFloat(rec["y"]),
			Z: toFloat(rec["z"]),
		}
	}
	return points, nil
}

// Mesh builds a triangle mesh from the vertex and face elements.
// Polygons are fan-triangulated; faces with fewer than three corners are
// skipped. Vertex colors and UVs are picked up when present.
func (p *PLY) Mesh() (*mesh.Mesh, error) {
	positions, err := p.Points(ElementVertex)
	if err != nil {
		return nil, err
	}

	faceDecl, ok := p.element(ElementFace)
	if !ok || faceDecl.Count == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrNoGeometry)
	}
	indexProp := ""
	for _, name := range []string{"vertex_indices", "vertex_index"} {
		if prop, ok := faceDecl.property(name); ok && prop.List {
			indexProp = name
			break
		}
	}
	if indexProp == "" {
		return nil, fmt.Errorf("%w: face element has no vertex_indices list", ErrNoGeometry)
	}
	_, hasFaceUV := faceDecl.property("texcoord")

	vertices := p.data.Elements(ElementVertex)
	vertexUVs := p.vertexUVs(vertices)

	m := &mesh.Mesh{Positions: positions}
	var uvs []gmath.Vec2
	for _, face := range p.data.Elements(ElementFace) {
		corners := toUints(face[indexProp])
		var faceUV []float64
		if hasFaceUV {
			faceUV = toFloats(face["texcoord"])
		}
		for k := 1; k+1 < len(corners); k++ {
			fan := [3]int{0, k, k + 1}
			m.Triangles = append(m.Triangles, [3]uint32{corners[fan[0]], corners[fan[1]], corners[fan[2]]})

			switch {
			case len(faceUV) >= 2*len(corners):
				for _, c := range fan {
					uvs = append(uvs, gmath.Vec2{U: float32(faceUV[2*c]), V: float32(faceUV[2*c+1])})
				}
			case vertexUVs != nil:
				for _, c := range fan {
					uvs = append(uvs, vertexUVs[cornerIndex(corners[c], len(vertexUVs))])
				}
			}
		}
	}
	if len(m.Triangles) == 0 {
		return nil, fmt.Errorf("%w: no triangles", ErrNoGeometry)
	}
	if len(uvs) == 3*len(m.Triangles) {
		m.UVs = uvs
	}

	m.Colors = p.vertexColors(vertices)
	return m, nil
}

// cornerIndex clamps an out-of-range index so UV lookup cannot panic.
// The mesh validation reports the bad index itself.
func cornerIndex(i uint32, n int) int {
	if int(i) >= n {
		return 0
	}
	return int(i)
}

// vertexUVs returns per-vertex UVs from the first matching property pair.
func (p *PLY) vertexUVs(vertices []goply.PlyElement) []gmath.Vec2 {
	decl, _ := p.element(ElementVertex)
	for _, pair := range [][2]string{{"s", "t"}, {"u", "v"}, {"texture_u", "texture_v"}} {
		_, okU := decl.property(pair[0])
		_, okV := decl.property(pair[1])
		if !okU || !okV {
			continue
		}
		uvs := make([]gmath.Vec2, len(vertices))
		for i, rec := range vertices {
			uvs[i] = gmath.Vec2{U: float32(toFloat(rec[pair[0]])), V: float32(toFloat(rec[pair[1]]))}
		}
		return uvs
	}
	return nil
}

// vertexColors returns a per-vertex color layer when red/green/blue exist.
// Integer channels are normalized by their type's maximum.
func (p *PLY) vertexColors(vertices []goply.PlyElement) *colors.ColorLayer {
	decl, _ := p.element(ElementVertex)
	channels := []string{"red", "green", "blue"}
	for _, name := range channels {
		if _, ok := decl.property(name); !ok {
			return nil
		}
	}
	if _, ok := decl.property("alpha"); ok {
		channels = append(channels, "alpha")
	}

	layer := &colors.ColorLayer{
		Name:     "vertex",
		Domain:   colors.DomainVertex,
		Channels: len(channels),
		Values:   make([]float32, 0, len(vertices)*len(channels)),
	}
	for _, rec := range vertices {
		for _, name := range channels {
			layer.Values = append(layer.Values, float32(normalizeChannel(rec[name])))
		}
	}
	return layer
}

func normalizeChannel(v interface{}) float64 {
	switch c := v.(type) {
	case uint8:
		return float64(c) / 255
	case uint16:
		return float64(c) / 65535
	case int8:
		return float64(c) / 127
	case int16:
		return float64(c) / 32767
	default:
		return toFloat(v)
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case int8:
		return float64(n)
	case uint8:
		return float64(n)
	case int16:
		return float64(n)
	case uint16:
		return float64(n)
	case int32:
		return float64(n)
	case uint32:
		return float64(n)
	default:
		return 0
	}
}

func toFloats(v interface{}) []float64 {
	list, _ := v.([]interface{})
	out := make([]float64, len(list))
	for i, e := range list {
		out[i] = toFloat(e)
	}
	return out
}

func toUints(v interface{}) []uint32 {
	list, _ := v.([]interface{})
	out := make([]uint32, len(list))
	for i, e := range list {
		f := toFloat(e)
		if f < 0 {
			f = float64(^uint32(0))
		}
		out[i] = uint32(f)
	}
	return out
}
