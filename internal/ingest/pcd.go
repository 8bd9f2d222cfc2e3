package ingest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

const pcdCommentChar = "#"

// pcdHeader holds the header fields ReadPCD needs.
type pcdHeader struct {
	fields []string
	size   []int
	typ    []string
	count  []int
	width  int
	height int
	points int
	data   string
}

// offsetOf returns the byte offset of a field inside a binary record.
func (h *pcdHeader) offsetOf(field int) int {
	off := 0
	for i := 0; i < field; i++ {
		off += h.size[i] * h.count[i]
	}
	return off
}

func (h *pcdHeader) recordSize() int {
	return h.offsetOf(len(h.fields))
}

// columnOf returns the value column of a field in an ASCII record.
func (h *pcdHeader) columnOf(field int) int {
	col := 0
	for i := 0; i < field; i++ {
		col += h.count[i]
	}
	return col
}

func (h *pcdHeader) fieldIndex(name string) int {
	for i, f := range h.fields {
		if f == name {
			return i
		}
	}
	return -1
}

// ReadPCD reads the x/y/z columns of a point cloud data file.
// DATA ascii and binary are supported; binary_compressed is not.
// Points with a NaN or infinite coordinate are dropped.
func ReadPCD(r io.Reader) ([]r3.Vector, error) {
	in := bufio.NewReader(r)
	header := pcdHeader{}

	for header.data == "" {
		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidPCD, err)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, &header); err != nil {
			return nil, err
		}
	}

	if err := header.validate(); err != nil {
		return nil, err
	}

	axes := [3]int{header.fieldIndex("x"), header.fieldIndex("y"), header.fieldIndex("z")}
	for i, a := range axes {
		if a < 0 {
			return nil, fmt.Errorf("%w: no %c field", ErrNoGeometry, "xyz"[i])
		}
	}
	if header.points == 0 {
		return nil, fmt.Errorf("%w: empty point cloud", ErrNoGeometry)
	}

	var points []r3.Vector
	var err error
	switch header.data {
	case "ascii":
		points, err = readPCDAscii(in, &header, axes)
	case "binary":
		points, err = readPCDBinary(in, &header, axes)
	default:
		return nil, fmt.Errorf("%w: PCD data %q", ErrUnsupportedFormat, header.data)
	}
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no finite points", ErrNoGeometry)
	}
	return points, nil
}

func parsePCDHeaderLine(line string, h *pcdHeader) error {
	tokens := strings.Fields(line)
	key, values := tokens[0], tokens[1:]

	parseInts := func(dst *[]int) error {
		*dst = make([]int, len(values))
		for i, v := range values {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: invalid %s value %q", ErrInvalidPCD, key, v)
			}
			(*dst)[i] = n
		}
		return nil
	}
	parseInt := func(dst *int) error {
		if len(values) != 1 {
			return fmt.Errorf("%w: %s expects one value", ErrInvalidPCD, key)
		}
		n, err := strconv.Atoi(values[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid %s value %q", ErrInvalidPCD, key, values[0])
		}
		*dst = n
		return nil
	}

	switch key {
	case "VERSION", "VIEWPOINT":
		return nil
	case "FIELDS":
		h.fields = values
	case "SIZE":
		return parseInts(&h.size)
	case "TYPE":
		h.typ = values
	case "COUNT":
		return parseInts(&h.count)
	case "WIDTH":
		return parseInt(&h.width)
	case "HEIGHT":
		return parseInt(&h.height)
	case "POINTS":
		return parseInt(&h.points)
	case "DATA":
		if len(values) != 1 {
			return fmt.Errorf("%w: DATA expects one value", ErrInvalidPCD)
		}
		h.data = values[0]
	default:
		return fmt.Errorf("%w: unknown header line %q", ErrInvalidPCD, key)
	}
	return nil
}

func (h *pcdHeader) validate() error {
	n := len(h.fields)
	if n == 0 {
		return fmt.Errorf("%w: missing FIELDS", ErrInvalidPCD)
	}
	if h.count == nil {
		h.count = make([]int, n)
		for i := range h.count {
			h.count[i] = 1
		}
	}
	if len(h.size) != n || len(h.typ) != n || len(h.count) != n {
		return fmt.Errorf("%w: SIZE, TYPE and COUNT must list %d fields", ErrInvalidPCD, n)
	}
	if h.points == 0 && h.width*h.height > 0 {
		h.points = h.width * h.height
	}
	if h.width*h.height > 0 && h.width*h.height != h.points {
		return fmt.Errorf("%w: POINTS %d does not match WIDTH*HEIGHT %d", ErrInvalidPCD, h.points, h.width*h.height)
	}
	return nil
}

func readPCDAscii(in *bufio.Reader, h *pcdHeader, axes [3]int) ([]r3.Vector, error) {
	cols := [3]int{h.columnOf(axes[0]), h.columnOf(axes[1]), h.columnOf(axes[2])}
	width := h.columnOf(len(h.fields))

	points := make([]r3.Vector, 0, h.points)
	for n := 0; n < h.points; {
		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidPCD, n, err)
		}
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		if len(tokens) != width {
			return nil, fmt.Errorf("%w: point %d has %d values, want %d", ErrInvalidPCD, n, len(tokens), width)
		}

		var xyz [3]float64
		for i, c := range cols {
			xyz[i], err = strconv.ParseFloat(tokens[c], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidPCD, n, err)
			}
		}
		n++
		if p, ok := pcdPoint(xyz); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

func readPCDBinary(in *bufio.Reader, h *pcdHeader, axes [3]int) ([]r3.Vector, error) {
	for _, a := range axes {
		if h.typ[a] != "F" || (h.size[a] != 4 && h.size[a] != 8) {
			return nil, fmt.Errorf("%w: binary %s field must be F4 or F8", ErrUnsupportedFormat, h.fields[a])
		}
	}

	record := make([]byte, h.recordSize())
	points := make([]r3.Vector, 0, h.points)
	for i := 0; i < h.points; i++ {
		if _, err := io.ReadFull(in, record); err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidPCD, i, err)
		}
		var xyz [3]float64
		for j, a := range axes {
			off := h.offsetOf(a)
			if h.size[a] == 4 {
				xyz[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(record[off:])))
			} else {
				xyz[j] = math.Float64frombits(binary.LittleEndian.Uint64(record[off:]))
			}
		}
		if p, ok := pcdPoint(xyz); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

// pcdPoint builds a point from its coordinates. Points with a NaN or
// infinite coordinate mark invalid samples in non-dense clouds and are
// skipped.
func pcdPoint(xyz [3]float64) (r3.Vector, bool) {
	for _, v := range xyz {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return r3.Vector{}, false
		}
	}
	return r3.Vector{X: xyz[0], Y: xyz[1], Z: xyz[2]}, true
}
