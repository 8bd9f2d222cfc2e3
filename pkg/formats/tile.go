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

// Tile format errors.
var (
	ErrTruncatedTileData = errors.New("truncated tile data")
)

// Tile record sizes.
const (
	TileHeaderSize   = 28 // count + min(3f) + max(3f)
	TileInstanceSize = 22 // xyz(3f) + seed(u16) + scale(f) + rotation(f)
)

// TileHeader is the fixed-size tile file header.
type TileHeader struct {
	Count uint32
	Min   [3]float32
	Max   [3]float32
}

// TileInstance is one packed 22-byte instance record.
type TileInstance struct {
	Position [3]float32
	Seed     uint16
	Scale    float32
	Rotation float32 // radians
}

// Tile is the content of one streaming tile file.
type Tile struct {
	Header    TileHeader
	Instances []TileInstance
}

// WriteTo serializes the tile.
func (t *Tile) WriteTo(w io.Writer) (int64, error) {
	if int(t.Header.Count) != len(t.Instances) {
		return 0, fmt.Errorf("tile header declares %d instances, have %d", t.Header.Count, len(t.Instances))
	}

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	if err := binary.Write(bw, binary.LittleEndian, &t.Header); err != nil {
		return cw.n, fmt.Errorf("writing tile header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, t.Instances); err != nil {
		return cw.n, fmt.Errorf("writing tile instances: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// WriteTileFile writes t to path. The file only appears once fully written.
func WriteTileFile(path string, t *Tile) error {
	return WriteFileAtomic(path, func(f *os.File) error {
		_, err := t.WriteTo(f)
		return err
	})
}

// ParseTile parses a tile file from raw bytes.
func ParseTile(data []byte) (*Tile, error) {
	if len(data) < TileHeaderSize {
		return nil, ErrTruncatedTileData
	}

	r := bytes.NewReader(data)

	t := &Tile{}
	if err := binary.Read(r, binary.LittleEndian, &t.Header); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedTileData)
	}

	if want := uint64(t.Header.Count) * TileInstanceSize; uint64(r.Len()) < want {
		return nil, fmt.Errorf("%w: %d bytes of instances, want %d", ErrTruncatedTileData, r.Len(), want)
	}

	t.Instances = make([]TileInstance, t.Header.Count)
	if err := binary.Read(r, binary.LittleEndian, t.Instances); err != nil {
		return nil, fmt.Errorf("%w: reading instances", ErrTruncatedTileData)
	}

	return t, nil
}

// ParseTileFile parses a tile file from disk.
func ParseTileFile(path string) (*Tile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tile file: %w", err)
	}
	return ParseTile(data)
}
