package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Grid format errors.
var (
	ErrTruncatedGridData = errors.New("truncated grid data")
	ErrInvalidGridHeader = errors.New("invalid grid header")
)

// GridHeaderSize is the byte length of GridHeader.
const GridHeaderSize = 24

// GridHeader is the fixed-size grid file header.
// The bounds cover the horizontal plane only.
type GridHeader struct {
	CellSize  float32
	MinX      float32
	MaxX      float32
	MinZ      float32
	MaxZ      float32
	CellCount uint32
}

// GridCell holds the raw positions binned into one cell.
type GridCell struct {
	X         int32
	Z         int32
	Positions [][3]float32
}

// Grid is a cell-indexed position container.
// Cells must be in ascending (X, Z) order to be written.
type Grid struct {
	Header GridHeader
	Cells  []GridCell
}

// PositionCount returns the number of positions across all cells.
func (g *Grid) PositionCount() int {
	total := 0
	for i := range g.Cells {
		total += len(g.Cells[i].Positions)
	}
	return total
}

// Validate checks the cell count and ordering invariants.
func (g *Grid) Validate() error {
	if int(g.Header.CellCount) != len(g.Cells) {
		return fmt.Errorf("%w: header declares %d cells, have %d", ErrInvalidGridHeader, g.Header.CellCount, len(g.Cells))
	}
	for i := 1; i < len(g.Cells); i++ {
		prev, cur := g.Cells[i-1], g.Cells[i]
		if prev.X > cur.X || (prev.X == cur.X && prev.Z >= cur.Z) {
			return fmt.Errorf("cells out of order at %d: (%d,%d) after (%d,%d)", i, cur.X, cur.Z, prev.X, prev.Z)
		}
	}
	for i := range g.Cells {
		if len(g.Cells[i].Positions) == 0 {
			return fmt.Errorf("cell (%d,%d) is empty", g.Cells[i].X, g.Cells[i].Z)
		}
	}
	return nil
}

// WriteTo serializes the grid.
func (g *Grid) WriteTo(w io.Writer) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	if err := binary.Write(bw, binary.LittleEndian, &g.Header); err != nil {
		return cw.n, fmt.Errorf("writing grid header: %w", err)
	}

	for i := range g.Cells {
		c := &g.Cells[i]
		cellHeader := struct {
			X, Z  int32
			Count uint32
		}{c.X, c.Z, uint32(len(c.Positions))}
		if err := binary.Write(bw, binary.LittleEndian, &cellHeader); err != nil {
			return cw.n, fmt.Errorf("writing cell (%d,%d): %w", c.X, c.Z, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, c.Positions); err != nil {
			return cw.n, fmt.Errorf("writing cell (%d,%d) positions: %w", c.X, c.Z, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteGridFile writes g to path. The file only appears once fully written.
func WriteGridFile(path string, g *Grid) error {
	return WriteFileAtomic(path, func(f *os.File) error {
		_, err := g.WriteTo(f)
		return err
	})
}

// ParseGrid parses a grid file from raw bytes.
func ParseGrid(data []byte) (*Grid, error) {
	if len(data) < GridHeaderSize {
		return nil, ErrTruncatedGridData
	}

	r := bytes.NewReader(data)

	g := &Grid{}
	if err := binary.Read(r, binary.LittleEndian, &g.Header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedGridData)
	}
	if !(g.Header.CellSize > 0) {
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidGridHeader, g.Header.CellSize)
	}

	// each cell takes at least 12 bytes; reject counts the data cannot hold
	if uint64(g.Header.CellCount)*12 > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: %d cells declared", ErrTruncatedGridData, g.Header.CellCount)
	}

	g.Cells = make([]GridCell, g.Header.CellCount)
	for i := range g.Cells {
		var x, z int32
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &x); err != nil {
			return nil, fmt.Errorf("%w: reading cell %d x", ErrTruncatedGridData, i)
		}
		if err := binary.Read(r, binary.LittleEndian, &z); err != nil {
			return nil, fmt.Errorf("%w: reading cell %d z", ErrTruncatedGridData, i)
		}
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return nil, fmt.Errorf("%w: reading cell %d count", ErrTruncatedGridData, i)
		}
		if uint64(count)*12 > uint64(r.Len()) {
			return nil, fmt.Errorf("%w: cell %d declares %d positions", ErrTruncatedGridData, i, count)
		}

		positions := make([][3]float32, count)
		if err := binary.Read(r, binary.LittleEndian, positions); err != nil {
			return nil, fmt.Errorf("%w: reading cell %d positions", ErrTruncatedGridData, i)
		}
		g.Cells[i] = GridCell{X: x, Z: z, Positions: positions}
	}

	return g, nil
}

// ParseGridFile parses a grid file from disk.
func ParseGridFile(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid file: %w", err)
	}
	return ParseGrid(data)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
