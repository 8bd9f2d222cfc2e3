package formats

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestITRI(count int, flags ITRIFlags) *ITRI {
	layout, err := ComputeITRILayout(uint32(count), flags)
	if err != nil {
		panic(err)
	}

	t := &ITRI{
		Header: layout.Header([3]float32{-1, 0, -2}, [3]float32{1, 3, 2}, 2.5),
		V0:     make([][3]uint16, count),
		X:      make([][3]int16, count),
		Y:      make([][3]int16, count),
	}
	for i := 0; i < count; i++ {
		t.V0[i] = [3]uint16{uint16(i), 65535, 0}
		t.X[i] = [3]int16{32767, -32767, int16(i)}
		t.Y[i] = [3]int16{0, int16(-i), 100}
	}
	if flags.HasColors() {
		t.Colors = make([][4]uint8, count)
		for i := range t.Colors {
			t.Colors[i] = [4]uint8{255, uint8(i), 0, 128}
		}
	}
	if flags.HasUVs() {
		t.UVs = make([][6]float32, count)
		for i := range t.UVs {
			t.UVs[i] = [6]float32{0, 0, 1, 0, 0.5, float32(i)}
		}
	}
	return t
}

func TestComputeITRILayout_TwoTrianglesNoOptional(t *testing.T) {
	layout, err := ComputeITRILayout(2, 0)
	if err != nil {
		t.Fatalf("ComputeITRILayout failed: %v", err)
	}

	want := ITRILayout{
		Count: 2,
		V0:    Section{Offset: 72, Size: 12},
		X:     Section{Offset: 84, Size: 12},
		Y:     Section{Offset: 96, Size: 12},
	}
	if diff := cmp.Diff(want, layout); diff != "" {
		t.Errorf("layout mismatch (-want +got):\n%s", diff)
	}

	if layout.TotalSize() != 108 {
		t.Errorf("expected total size 108, got %d", layout.TotalSize())
	}

	h := layout.Header([3]float32{}, [3]float32{}, 1)
	if h.ColorsOffset != 0 || h.UVsOffset != 0 {
		t.Errorf("expected absent sections at offset 0, got colors=%d uvs=%d", h.ColorsOffset, h.UVsOffset)
	}
}

func TestComputeITRILayout_SectionsContiguous(t *testing.T) {
	tests := []struct {
		name  string
		count uint32
		flags ITRIFlags
		total uint64
	}{
		{"empty", 0, 0, 72},
		{"geometry only", 10, 0, 72 + 10*18},
		{"colors", 10, ITRIHasColors, 72 + 10*18 + 10*4},
		{"uvs", 10, ITRIHasUVs, 72 + 10*18 + 10*24},
		{"colors and uvs", 10, ITRIHasColors | ITRIHasUVs, 72 + 10*18 + 10*4 + 10*24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := ComputeITRILayout(tt.count, tt.flags)
			if err != nil {
				t.Fatalf("ComputeITRILayout failed: %v", err)
			}

			if layout.V0.Offset != ITRIHeaderSize {
				t.Errorf("expected v0 at %d, got %d", ITRIHeaderSize, layout.V0.Offset)
			}
			if uint64(layout.X.Offset) != layout.V0.End() {
				t.Errorf("x section not contiguous with v0")
			}
			if uint64(layout.Y.Offset) != layout.X.End() {
				t.Errorf("y section not contiguous with x")
			}

			prev := layout.Y.End()
			if tt.flags.HasColors() {
				if uint64(layout.Colors.Offset) != prev {
					t.Errorf("colors at %d, expected %d", layout.Colors.Offset, prev)
				}
				prev = layout.Colors.End()
			} else if layout.Colors.Offset != 0 {
				t.Errorf("expected absent colors at 0, got %d", layout.Colors.Offset)
			}
			if tt.flags.HasUVs() {
				if uint64(layout.UVs.Offset) != prev {
					t.Errorf("uvs at %d, expected %d", layout.UVs.Offset, prev)
				}
			} else if layout.UVs.Offset != 0 {
				t.Errorf("expected absent uvs at 0, got %d", layout.UVs.Offset)
			}

			if layout.TotalSize() != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, layout.TotalSize())
			}
		})
	}
}

func TestComputeITRILayout_Overflow(t *testing.T) {
	_, err := ComputeITRILayout(1<<30, ITRIHasColors|ITRIHasUVs)
	if !errors.Is(err, ErrLayoutOverflow) {
		t.Errorf("expected ErrLayoutOverflow, got %v", err)
	}
}

func TestWriteITRIFile_RoundTrip(t *testing.T) {
	flagSets := []ITRIFlags{0, ITRIHasColors, ITRIHasUVs, ITRIHasColors | ITRIHasUVs}

	for _, flags := range flagSets {
		src := newTestITRI(3, flags)
		path := filepath.Join(t.TempDir(), "mesh.bin")

		if err := WriteITRIFile(path, src); err != nil {
			t.Fatalf("flags %#x: WriteITRIFile failed: %v", uint32(flags), err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		layout, _ := ComputeITRILayout(3, flags)
		if uint64(info.Size()) != layout.TotalSize() {
			t.Errorf("flags %#x: file size %d, expected %d", uint32(flags), info.Size(), layout.TotalSize())
		}

		got, err := ParseITRIFile(path)
		if err != nil {
			t.Fatalf("flags %#x: ParseITRIFile failed: %v", uint32(flags), err)
		}
		if diff := cmp.Diff(src, got); diff != "" {
			t.Errorf("flags %#x: round trip mismatch (-want +got):\n%s", uint32(flags), diff)
		}
	}
}

func TestWriteITRIFile_RejectsMismatchedSections(t *testing.T) {
	src := newTestITRI(2, ITRIHasColors)
	src.Colors = src.Colors[:1]

	path := filepath.Join(t.TempDir(), "mesh.bin")
	err := WriteITRIFile(path, src)
	if !errors.Is(err, ErrLayoutMismatch) {
		t.Fatalf("expected ErrLayoutMismatch, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("expected no file after failed write, stat returned %v", statErr)
	}
}

func TestParseITRI_Errors(t *testing.T) {
	valid := encodeTestITRI(t, newTestITRI(2, ITRIHasColors))

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "IRTI")

	badVersion := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badVersion[4:], 2)

	badOffset := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(badOffset[24:], 80)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", valid[:40], ErrTruncatedITRIData},
		{"bad magic", badMagic, ErrInvalidITRIMagic},
		{"bad version", badVersion, ErrUnsupportedITRIVersion},
		{"bad offset", badOffset, ErrLayoutMismatch},
		{"truncated payload", valid[:len(valid)-1], ErrTruncatedITRIData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseITRI(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseITRI_HeaderFields(t *testing.T) {
	data := encodeTestITRI(t, newTestITRI(2, 0))

	if string(data[0:4]) != "ITRI" {
		t.Errorf("expected magic ITRI, got %q", data[0:4])
	}
	wantWords := []uint32{1, 2, 0, 72, 72, 84, 96, 0, 0, 0}
	for i, want := range wantWords {
		got := binary.LittleEndian.Uint32(data[4+i*4:])
		if got != want {
			t.Errorf("header word %d: expected %d, got %d", i, want, got)
		}
	}
}

func encodeTestITRI(t *testing.T, src *ITRI) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mesh.bin")
	if err := WriteITRIFile(path, src); err != nil {
		t.Fatalf("WriteITRIFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	return data
}
