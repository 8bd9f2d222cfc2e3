package spatial

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"

	"github.com/Faultbox/geobake/pkg/formats"
)

func TestDecimate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	tests := []struct {
		stride int
		want   []int
	}{
		{1, items},
		{3, []int{0, 3, 6, 9}},
		{4, []int{0, 4, 8}},
		{10, []int{0}},
		{25, []int{0}},
	}

	for _, tt := range tests {
		got, err := Decimate(items, tt.stride)
		if err != nil {
			t.Fatalf("stride %d: Decimate failed: %v", tt.stride, err)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("stride %d mismatch (-want +got):\n%s", tt.stride, diff)
		}
		if wantLen := (len(items) + tt.stride - 1) / tt.stride; len(got) != wantLen {
			t.Errorf("stride %d: expected %d elements, got %d", tt.stride, wantLen, len(got))
		}
	}

	if _, err := Decimate(items, 0); !errors.Is(err, ErrInvalidStride) {
		t.Errorf("expected ErrInvalidStride, got %v", err)
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		a, b, size float64
		want       CellKey
	}{
		{12.3, 7.8, 50, CellKey{0, 0}},
		{-1.0, 51.0, 50, CellKey{-1, 1}},
		{50, -50, 50, CellKey{1, -1}},
		{-0.001, 0, 10, CellKey{-1, 0}},
		{99.99, 100, 10, CellKey{9, 10}},
	}

	for _, tt := range tests {
		got := KeyOf(tt.a, tt.b, tt.size)
		if got != tt.want {
			t.Errorf("KeyOf(%v, %v, %v): expected %v, got %v", tt.a, tt.b, tt.size, tt.want, got)
		}
	}
}

func TestParsePlane(t *testing.T) {
	for in, want := range map[string]Plane{"": PlaneXZ, "XZ": PlaneXZ, "xy": PlaneXY} {
		got, err := ParsePlane(in)
		if err != nil || got != want {
			t.Errorf("ParsePlane(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParsePlane("yz"); !errors.Is(err, ErrUnknownPlane) {
		t.Errorf("expected ErrUnknownPlane, got %v", err)
	}
}

func TestBuildGrid(t *testing.T) {
	positions := []r3.Vector{
		{X: 12, Y: 1, Z: 3},
		{X: -4, Y: 2, Z: 5},
		{X: 15, Y: 3, Z: -2},
		{X: 1, Y: 4, Z: 1},
		{X: 3, Y: 5, Z: 9},
	}

	res, err := BuildGrid(positions, GridOptions{CellSize: 10, Decimation: 1})
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	wantCells := []formats.GridCell{
		{X: -1, Z: 0, Positions: [][3]float32{{-4, 2, 5}}},
		{X: 0, Z: 0, Positions: [][3]float32{{1, 4, 1}, {3, 5, 9}}},
		{X: 1, Z: -1, Positions: [][3]float32{{15, 3, -2}}},
		{X: 1, Z: 0, Positions: [][3]float32{{12, 1, 3}}},
	}
	if diff := cmp.Diff(wantCells, res.Grid.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}

	wantHeader := formats.GridHeader{CellSize: 10, MinX: -4, MaxX: 15, MinZ: -2, MaxZ: 9, CellCount: 4}
	if res.Grid.Header != wantHeader {
		t.Errorf("expected header %+v, got %+v", wantHeader, res.Grid.Header)
	}

	if res.Stats.Min != 1 || res.Stats.Max != 2 || res.Stats.Mean != 1.25 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
	if err := res.Grid.Validate(); err != nil {
		t.Errorf("built grid is invalid: %v", err)
	}
}

func TestBuildGrid_EveryPositionInItsCell(t *testing.T) {
	var positions []r3.Vector
	for i := 0; i < 200; i++ {
		f := float64(i)
		positions = append(positions, r3.Vector{X: math.Sin(f) * 97, Y: f, Z: math.Cos(f*1.3) * 61})
	}

	res, err := BuildGrid(positions, GridOptions{CellSize: 7.5, Decimation: 3})
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}

	if res.KeptCount != 67 {
		t.Errorf("expected 67 kept positions, got %d", res.KeptCount)
	}
	if res.Grid.PositionCount() != res.KeptCount {
		t.Errorf("grid holds %d positions, kept %d", res.Grid.PositionCount(), res.KeptCount)
	}

	want := make(map[CellKey]int)
	for i := 0; i < len(positions); i += 3 {
		want[KeyOf(positions[i].X, positions[i].Z, 7.5)]++
	}
	got := make(map[CellKey]int)
	for _, c := range res.Grid.Cells {
		got[CellKey{X: int(c.X), Z: int(c.Z)}] = len(c.Positions)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cell populations mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildGrid_PlaneXY(t *testing.T) {
	positions := []r3.Vector{{X: 5, Y: 25, Z: -100}}

	res, err := BuildGrid(positions, GridOptions{CellSize: 10, Decimation: 1, Plane: PlaneXY})
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	if c := res.Grid.Cells[0]; c.X != 0 || c.Z != 2 {
		t.Errorf("expected cell (0,2), got (%d,%d)", c.X, c.Z)
	}
	if res.Grid.Header.MinZ != 25 {
		t.Errorf("expected second axis bound 25, got %v", res.Grid.Header.MinZ)
	}
}

func TestBuildGrid_Errors(t *testing.T) {
	one := []r3.Vector{{}}

	tests := []struct {
		name      string
		positions []r3.Vector
		opts      GridOptions
		want      error
	}{
		{"no positions", nil, GridOptions{CellSize: 1, Decimation: 1}, ErrNoPositions},
		{"zero cell size", one, GridOptions{CellSize: 0, Decimation: 1}, ErrInvalidSize},
		{"negative cell size", one, GridOptions{CellSize: -5, Decimation: 1}, ErrInvalidSize},
		{"zero stride", one, GridOptions{CellSize: 1}, ErrInvalidStride},
		{"bad plane", one, GridOptions{CellSize: 1, Decimation: 1, Plane: "yz"}, ErrUnknownPlane},
		{"nan position", []r3.Vector{{X: 1}, {X: math.NaN()}}, GridOptions{CellSize: 1, Decimation: 1}, ErrNonFinite},
		{"infinite position", []r3.Vector{{Z: math.Inf(-1)}}, GridOptions{CellSize: 1, Decimation: 1}, ErrNonFinite},
		{"beyond float32", []r3.Vector{{Y: 1e39}}, GridOptions{CellSize: 1, Decimation: 1}, ErrNonFinite},
		{"key beyond int32", []r3.Vector{{X: 3e9, Z: 1}, {X: 1, Z: 1}}, GridOptions{CellSize: 1, Decimation: 1}, ErrKeyRange},
		{"negative key beyond int32", []r3.Vector{{X: 1, Z: -3e9}}, GridOptions{CellSize: 1, Decimation: 1}, ErrKeyRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGrid(tt.positions, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSeed_Deterministic(t *testing.T) {
	p := r3.Vector{X: 1, Y: 2, Z: 3}

	first := Seed(p)
	second := Seed(r3.Vector{X: 1, Y: 2, Z: 3})
	if first != second {
		t.Errorf("expected identical seeds, got %d and %d", first, second)
	}

	// positions rounding to the same millimetre share a seed
	if got := Seed(r3.Vector{X: 1.0004, Y: 1.9996, Z: 3.0001}); got != first {
		t.Errorf("expected seed %d for rounded-equal position, got %d", first, got)
	}
}

func TestDeriveInstance_Ranges(t *testing.T) {
	for i := 0; i < 500; i++ {
		f := float64(i)
		inst := DeriveInstance(r3.Vector{X: f * 0.37, Y: -f, Z: f * 1.91})

		if inst.Scale < 0.8 || inst.Scale >= 1.2 {
			t.Errorf("scale %v out of range", inst.Scale)
		}
		if inst.Rotation < 0 || float64(inst.Rotation) >= 2*math.Pi {
			t.Errorf("rotation %v out of range", inst.Rotation)
		}
		if want := float32(ScaleOf(inst.Seed)); inst.Scale != want {
			t.Errorf("scale %v does not match seed %d", inst.Scale, inst.Seed)
		}
	}

	if got := ScaleOf(150); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("expected scale 1.0 for seed 150, got %v", got)
	}
	if got := RotationOf(450); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("expected rotation π/2 for seed 450, got %v", got)
	}
}

func TestBuildTiles_Assignment(t *testing.T) {
	positions := []r3.Vector{
		{X: 12.3, Y: 0, Z: 7.8},
		{X: -1.0, Y: 0, Z: 51.0},
	}

	set, err := BuildTiles(positions, TileOptions{TileSize: 50, MinInstances: 1})
	if err != nil {
		t.Fatalf("BuildTiles failed: %v", err)
	}

	var keys []CellKey
	for _, tf := range set.Tiles {
		keys = append(keys, tf.Key)
	}
	want := []CellKey{{-1, 1}, {0, 0}}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("tile keys mismatch (-want +got):\n%s", diff)
	}

	if set.Tiles[0].Filename != "grass_tile_-1_1.bin" {
		t.Errorf("expected grass_tile_-1_1.bin, got %s", set.Tiles[0].Filename)
	}
	if set.Manifest.TileCount != 2 || set.Manifest.TotalInstances != 2 {
		t.Errorf("unexpected manifest counts %d/%d", set.Manifest.TileCount, set.Manifest.TotalInstances)
	}
}

func TestBuildTiles_MinimumCountFilter(t *testing.T) {
	const minInstances = 3

	var positions []r3.Vector
	// tile (0,0) gets exactly minInstances, tile (1,0) one fewer
	for i := 0; i < minInstances; i++ {
		positions = append(positions, r3.Vector{X: float64(i), Z: 1})
	}
	for i := 0; i < minInstances-1; i++ {
		positions = append(positions, r3.Vector{X: 10 + float64(i), Z: 1})
	}

	set, err := BuildTiles(positions, TileOptions{TileSize: 10, MinInstances: minInstances})
	if err != nil {
		t.Fatalf("BuildTiles failed: %v", err)
	}

	if len(set.Tiles) != 1 || set.Tiles[0].Key != (CellKey{0, 0}) {
		t.Fatalf("expected only tile (0,0), got %+v", set.Tiles)
	}
	if set.FilteredTiles != 1 || set.CreatedTiles != 2 {
		t.Errorf("expected 2 created and 1 filtered, got %d and %d", set.CreatedTiles, set.FilteredTiles)
	}
	if set.Manifest.TotalInstances != len(positions) {
		t.Errorf("expected pre-filter total %d, got %d", len(positions), set.Manifest.TotalInstances)
	}
	if set.Stats.Min != minInstances || set.Stats.Max != minInstances {
		t.Errorf("unexpected stats %+v", set.Stats)
	}
}

func TestBuildTiles_Errors(t *testing.T) {
	one := []r3.Vector{{}}

	tests := []struct {
		name      string
		positions []r3.Vector
		opts      TileOptions
		want      error
	}{
		{"no instances", nil, TileOptions{TileSize: 50}, ErrNoInstances},
		{"zero tile size", one, TileOptions{}, ErrInvalidSize},
		{"negative minimum", one, TileOptions{TileSize: 50, MinInstances: -1}, ErrInvalidMin},
		{"nan position", []r3.Vector{{}, {Y: math.NaN()}}, TileOptions{TileSize: 50}, ErrNonFinite},
		{"infinite position", []r3.Vector{{X: math.Inf(1)}}, TileOptions{TileSize: 50}, ErrNonFinite},
		{"key beyond int32", []r3.Vector{{X: 1e12}}, TileOptions{TileSize: 1}, ErrKeyRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTiles(tt.positions, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuildGrid_DecimatedNaNIgnored(t *testing.T) {
	positions := []r3.Vector{{X: 1}, {X: math.NaN()}, {X: 2}}

	res, err := BuildGrid(positions, GridOptions{CellSize: 1, Decimation: 2})
	if err != nil {
		t.Fatalf("BuildGrid failed: %v", err)
	}
	if res.KeptCount != 2 {
		t.Errorf("expected 2 kept positions, got %d", res.KeptCount)
	}
}

func TestTileSet_WriteBadManifestLeavesNoFiles(t *testing.T) {
	set, err := BuildTiles([]r3.Vector{{X: 1}, {X: 80}}, TileOptions{TileSize: 50})
	if err != nil {
		t.Fatalf("BuildTiles failed: %v", err)
	}
	set.Manifest.Tiles[0].Bounds.Min[0] = math.NaN()

	dir := t.TempDir()
	if err := set.Write(dir, nil); err == nil {
		t.Fatal("expected an error for an unencodable manifest")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected an empty directory, got %d entries", len(entries))
	}
}

func TestTileSet_WriteDeterministic(t *testing.T) {
	var positions []r3.Vector
	for i := 0; i < 300; i++ {
		f := float64(i)
		positions = append(positions, r3.Vector{X: math.Mod(f*13.7, 180) - 90, Y: f * 0.01, Z: math.Mod(f*7.3, 140) - 70})
	}

	write := func() string {
		dir := t.TempDir()
		set, err := BuildTiles(positions, TileOptions{TileSize: 50, MinInstances: 5})
		if err != nil {
			t.Fatalf("BuildTiles failed: %v", err)
		}
		calls := 0
		if err := set.Write(dir, func(done, total int) { calls++ }); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if calls != len(set.Tiles) {
			t.Errorf("expected %d progress calls, got %d", len(set.Tiles), calls)
		}
		return dir
	}

	a, b := write(), write()

	entries, err := os.ReadDir(a)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected tiles and a manifest, got %d files", len(entries))
	}
	for _, e := range entries {
		da, _ := os.ReadFile(filepath.Join(a, e.Name()))
		db, err := os.ReadFile(filepath.Join(b, e.Name()))
		if err != nil {
			t.Fatalf("%s missing from second run: %v", e.Name(), err)
		}
		if !bytes.Equal(da, db) {
			t.Errorf("%s differs between runs", e.Name())
		}
	}

	m, err := formats.ReadManifestFile(filepath.Join(a, formats.ManifestFilename))
	if err != nil {
		t.Fatalf("ReadManifestFile failed: %v", err)
	}
	for _, mt := range m.Tiles {
		tile, err := formats.ParseTileFile(filepath.Join(a, mt.Filename))
		if err != nil {
			t.Fatalf("ParseTileFile(%s) failed: %v", mt.Filename, err)
		}
		if int(tile.Header.Count) != mt.InstanceCount {
			t.Errorf("%s: header count %d, manifest %d", mt.Filename, tile.Header.Count, mt.InstanceCount)
		}
	}
}
