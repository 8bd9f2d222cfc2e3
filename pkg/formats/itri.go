package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ITRI format errors.
var (
	ErrInvalidITRIMagic       = errors.New("invalid ITRI magic: expected 'ITRI'")
	ErrUnsupportedITRIVersion = errors.New("unsupported ITRI version")
	ErrTruncatedITRIData      = errors.New("truncated ITRI data")
	ErrLayoutMismatch         = errors.New("ITRI section layout mismatch")
	ErrLayoutOverflow         = errors.New("ITRI payload exceeds 4 GiB offset range")
)

// ITRI constants.
const (
	ITRIMagic      = "ITRI"
	ITRIVersion    = uint32(1)
	ITRIHeaderSize = 72 // magic + 10 x uint32 + 7 x float32

	// Per-triangle record sizes of each section.
	ITRIPositionRecordSize = 3 * 2     // 3 axes x (u)int16
	ITRIColorRecordSize    = 4         // RGBA8
	ITRIUVRecordSize       = 3 * 2 * 4 // 3 corners x 2 floats
)

// ITRIFlags marks the optional sections present in a file.
type ITRIFlags uint32

// Flag bits.
const (
	ITRIHasColors ITRIFlags = 1 << 0
	ITRIHasUVs    ITRIFlags = 1 << 1
)

// HasColors returns true if the color section is present.
func (f ITRIFlags) HasColors() bool { return f&ITRIHasColors != 0 }

// HasUVs returns true if the UV section is present.
func (f ITRIFlags) HasUVs() bool { return f&ITRIHasUVs != 0 }

// ITRIHeader is the fixed-size little-endian file header.
type ITRIHeader struct {
	Magic        [4]byte
	Version      uint32
	Count        uint32
	Flags        ITRIFlags
	HeaderBytes  uint32
	V0Offset     uint32
	XOffset      uint32
	YOffset      uint32
	ColorsOffset uint32 // 0 when colors are absent
	UVsOffset    uint32 // 0 when UVs are absent
	Reserved     uint32
	BoundsMin    [3]float32
	BoundsMax    [3]float32
	VecRange     float32
}

// Section is a byte range inside an ITRI file.
type Section struct {
	Offset uint32
	Size   uint32
}

// End returns the first byte after the section.
func (s Section) End() uint64 {
	return uint64(s.Offset) + uint64(s.Size)
}

// ITRILayout holds section placement computed from count and flags alone.
type ITRILayout struct {
	Count  uint32
	Flags  ITRIFlags
	V0     Section
	X      Section
	Y      Section
	Colors Section // zero when absent
	UVs    Section // zero when absent
}

// ComputeITRILayout computes every section offset before any payload exists.
// Sections are packed back to back: v0, x, y, colors, uvs.
func ComputeITRILayout(count uint32, flags ITRIFlags) (ITRILayout, error) {
	layout := ITRILayout{Count: count, Flags: flags}

	cursor := uint64(ITRIHeaderSize)
	next := func(recordSize uint64) (Section, error) {
		size := uint64(count) * recordSize
		if cursor+size > math.MaxUint32 {
			return Section{}, fmt.Errorf("%w: %d triangles", ErrLayoutOverflow, count)
		}
		s := Section{Offset: uint32(cursor), Size: uint32(size)}
		cursor += size
		return s, nil
	}

	var err error
	if layout.V0, err = next(ITRIPositionRecordSize); err != nil {
		return ITRILayout{}, err
	}
	if layout.X, err = next(ITRIPositionRecordSize); err != nil {
		return ITRILayout{}, err
	}
	if layout.Y, err = next(ITRIPositionRecordSize); err != nil {
		return ITRILayout{}, err
	}
	if flags.HasColors() {
		if layout.Colors, err = next(ITRIColorRecordSize); err != nil {
			return ITRILayout{}, err
		}
	}
	if flags.HasUVs() {
		if layout.UVs, err = next(ITRIUVRecordSize); err != nil {
			return ITRILayout{}, err
		}
	}

	return layout, nil
}

// TotalSize returns the file size implied by the layout.
func (l ITRILayout) TotalSize() uint64 {
	end := l.Y.End()
	if l.Flags.HasColors() {
		end = l.Colors.End()
	}
	if l.Flags.HasUVs() {
		end = l.UVs.End()
	}
	return end
}

// Header builds the file header for this layout.
func (l ITRILayout) Header(bmin, bmax [3]float32, vecRange float32) ITRIHeader {
	h := ITRIHeader{
		Version:      ITRIVersion,
		Count:        l.Count,
		Flags:        l.Flags,
		HeaderBytes:  ITRIHeaderSize,
		V0Offset:     l.V0.Offset,
		XOffset:      l.X.Offset,
		YOffset:      l.Y.Offset,
		ColorsOffset: l.Colors.Offset,
		UVsOffset:    l.UVs.Offset,
		BoundsMin:    bmin,
		BoundsMax:    bmax,
		VecRange:     vecRange,
	}
	copy(h.Magic[:], ITRIMagic)
	return h
}

// ITRI is a triangle soup in structure-of-arrays form.
// Index i of every slice belongs to triangle i.
type ITRI struct {
	Header ITRIHeader
	V0     [][3]uint16
	X      [][3]int16
	Y      [][3]int16
	Colors [][4]uint8   // nil unless ITRIHasColors
	UVs    [][6]float32 // nil unless ITRIHasUVs
}

// Layout recomputes the section layout from the header's count and flags.
func (t *ITRI) Layout() (ITRILayout, error) {
	return ComputeITRILayout(t.Header.Count, t.Header.Flags)
}

// Validate checks section lengths and header offsets agree with count and flags.
func (t *ITRI) Validate() error {
	n := int(t.Header.Count)
	if len(t.V0) != n || len(t.X) != n || len(t.Y) != n {
		return fmt.Errorf("%w: geometry sections have %d/%d/%d records, want %d",
			ErrLayoutMismatch, len(t.V0), len(t.X), len(t.Y), n)
	}

	wantColors := 0
	if t.Header.Flags.HasColors() {
		wantColors = n
	}
	if len(t.Colors) != wantColors {
		return fmt.Errorf("%w: %d colors, want %d", ErrLayoutMismatch, len(t.Colors), wantColors)
	}

	wantUVs := 0
	if t.Header.Flags.HasUVs() {
		wantUVs = n
	}
	if len(t.UVs) != wantUVs {
		return fmt.Errorf("%w: %d UV records, want %d", ErrLayoutMismatch, len(t.UVs), wantUVs)
	}

	layout, err := t.Layout()
	if err != nil {
		return err
	}
	want := layout.Header(t.Header.BoundsMin, t.Header.BoundsMax, t.Header.VecRange)
	want.Reserved = t.Header.Reserved
	if t.Header != want {
		return fmt.Errorf("%w: header offsets do not match count %d and flags %#x",
			ErrLayoutMismatch, t.Header.Count, uint32(t.Header.Flags))
	}
	return nil
}

// WriteTo writes the header and then seeks to each section's declared offset.
func (t *ITRI) WriteTo(w io.WriteSeeker) error {
	if err := t.Validate(); err != nil {
		return err
	}
	layout, err := t.Layout()
	if err != nil {
		return err
	}

	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &t.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	sections := []sectionData{
		{"v0", layout.V0, encodeU16Triples(t.V0)},
		{"x", layout.X, encodeI16Triples(t.X)},
		{"y", layout.Y, encodeI16Triples(t.Y)},
	}
	if t.Header.Flags.HasColors() {
		sections = append(sections, sectionData{"colors", layout.Colors, encodeColors(t.Colors)})
	}
	if t.Header.Flags.HasUVs() {
		sections = append(sections, sectionData{"uvs", layout.UVs, encodeF32s(t.UVs)})
	}

	for _, s := range sections {
		if uint32(len(s.data)) != s.at.Size {
			return fmt.Errorf("%w: %s section is %d bytes, want %d", ErrLayoutMismatch, s.name, len(s.data), s.at.Size)
		}
		if _, err := w.Seek(int64(s.at.Offset), io.SeekStart); err != nil {
			return fmt.Errorf("seeking to %s section: %w", s.name, err)
		}
		if _, err := w.Write(s.data); err != nil {
			return fmt.Errorf("writing %s section: %w", s.name, err)
		}
	}
	return nil
}

type sectionData struct {
	name string
	at   Section
	data []byte
}

// WriteITRIFile writes t to path. The file only appears once fully written.
func WriteITRIFile(path string, t *ITRI) error {
	return WriteFileAtomic(path, func(f *os.File) error {
		return t.WriteTo(f)
	})
}

// ParseITRI parses an ITRI file from raw bytes.
func ParseITRI(data []byte) (*ITRI, error) {
	if len(data) < ITRIHeaderSize {
		return nil, ErrTruncatedITRIData
	}

	if string(data[0:4]) != ITRIMagic {
		return nil, ErrInvalidITRIMagic
	}

	var h ITRIHeader
	if err := binary.Read(bytes.NewReader(data[:ITRIHeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedITRIData)
	}
	if h.Version != ITRIVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedITRIVersion, h.Version)
	}

	t := &ITRI{Header: h}
	layout, err := t.Layout()
	if err != nil {
		return nil, err
	}
	if h.HeaderBytes != ITRIHeaderSize || h.V0Offset != layout.V0.Offset || h.XOffset != layout.X.Offset ||
		h.YOffset != layout.Y.Offset || h.ColorsOffset != layout.Colors.Offset || h.UVsOffset != layout.UVs.Offset {
		return nil, fmt.Errorf("%w: header offsets do not match count %d", ErrLayoutMismatch, h.Count)
	}
	if uint64(len(data)) < layout.TotalSize() {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrTruncatedITRIData, len(data), layout.TotalSize())
	}

	n := int(h.Count)
	section := func(s Section) []byte { return data[s.Offset:s.End()] }

	t.V0 = make([][3]uint16, n)
	t.X = make([][3]int16, n)
	t.Y = make([][3]int16, n)
	v0, xs, ys := section(layout.V0), section(layout.X), section(layout.Y)
	for i := 0; i < n; i++ {
		for k := 0; k < 3; k++ {
			off := (i*3 + k) * 2
			t.V0[i][k] = binary.LittleEndian.Uint16(v0[off:])
			t.X[i][k] = int16(binary.LittleEndian.Uint16(xs[off:]))
			t.Y[i][k] = int16(binary.LittleEndian.Uint16(ys[off:]))
		}
	}

	if h.Flags.HasColors() {
		cs := section(layout.Colors)
		t.Colors = make([][4]uint8, n)
		for i := range t.Colors {
			copy(t.Colors[i][:], cs[i*4:i*4+4])
		}
	}

	if h.Flags.HasUVs() {
		us := section(layout.UVs)
		t.UVs = make([][6]float32, n)
		for i := range t.UVs {
			for k := 0; k < 6; k++ {
				off := (i*6 + k) * 4
				t.UVs[i][k] = math.Float32frombits(binary.LittleEndian.Uint32(us[off:]))
			}
		}
	}

	return t, nil
}

// ParseITRIFile parses an ITRI file from disk.
func ParseITRIFile(path string) (*ITRI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ITRI file: %w", err)
	}
	return ParseITRI(data)
}

func encodeU16Triples(v [][3]uint16) []byte {
	out := make([]byte, len(v)*6)
	for i, t := range v {
		for k, c := range t {
			binary.LittleEndian.PutUint16(out[(i*3+k)*2:], c)
		}
	}
	return out
}

func encodeI16Triples(v [][3]int16) []byte {
	out := make([]byte, len(v)*6)
	for i, t := range v {
		for k, c := range t {
			binary.LittleEndian.PutUint16(out[(i*3+k)*2:], uint16(c))
		}
	}
	return out
}

func encodeColors(v [][4]uint8) []byte {
	out := make([]byte, 0, len(v)*4)
	for _, c := range v {
		out = append(out, c[:]...)
	}
	return out
}

func encodeF32s(v [][6]float32) []byte {
	out := make([]byte, len(v)*24)
	for i, t := range v {
		for k, f := range t {
			binary.LittleEndian.PutUint32(out[(i*6+k)*4:], math.Float32bits(f))
		}
	}
	return out
}
