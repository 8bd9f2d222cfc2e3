package ingest

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types.
const (
	tgaTypeUncompressed = 2  // uncompressed true-color
	tgaTypeRLE          = 10 // RLE compressed true-color
	tgaHeaderSize       = 18
	tgaTopToBottom      = 0x20 // descriptor bit 5
)

// ErrInvalidTGA is returned for TGA data DecodeTGA cannot read.
var ErrInvalidTGA = errors.New("invalid TGA data")

// DecodeTGA decodes an uncompressed (type 2) or RLE (type 10) true-color TGA.
// Only 24 and 32 bits per pixel are supported. The result is top-down like
// every other image.Image decoder.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidTGA, len(data))
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped images not supported", ErrInvalidTGA)
	}
	if imageType != tgaTypeUncompressed && imageType != tgaTypeRLE {
		return nil, fmt.Errorf("%w: unsupported type %d", ErrInvalidTGA, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidTGA, bpp)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrInvalidTGA, width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: truncated id field", ErrInvalidTGA)
	}

	d := tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		pixelSize:   bpp / 8,
		topToBottom: descriptor&tgaTopToBottom != 0,
	}

	var err error
	if imageType == tgaTypeUncompressed {
		err = d.decodeRaw()
	} else {
		err = d.decodeRLE()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	width       int
	height      int
	pixelSize   int
	topToBottom bool
}

// readPixel reads one BGR(A) pixel from the source.
func (d *tgaDecoder) readPixel() ([4]uint8, error) {
	if d.pos+d.pixelSize > len(d.src) {
		return [4]uint8{}, fmt.Errorf("%w: pixel data truncated", ErrInvalidTGA)
	}
	p := d.src[d.pos : d.pos+d.pixelSize]
	d.pos += d.pixelSize

	c := [4]uint8{p[2], p[1], p[0], 255}
	if d.pixelSize == 4 {
		c[3] = p[3]
	}
	return c, nil
}

// set stores pixel n of the file's scan order.
func (d *tgaDecoder) set(n int, c [4]uint8) {
	x, y := n%d.width, n/d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	i := d.img.PixOffset(x, y)
	copy(d.img.Pix[i:i+4], c[:])
}

func (d *tgaDecoder) decodeRaw() error {
	for n := 0; n < d.width*d.height; n++ {
		c, err := d.readPixel()
		if err != nil {
			return err
		}
		d.set(n, c)
	}
	return nil
}

func (d *tgaDecoder) decodeRLE() error {
	total := d.width * d.height
	n := 0
	for n < total {
		if d.pos >= len(d.src) {
			return fmt.Errorf("%w: RLE data truncated at pixel %d", ErrInvalidTGA, n)
		}
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run-length packet: one pixel repeated.
			c, err := d.readPixel()
			if err != nil {
				return err
			}
			for i := 0; i < count && n < total; i++ {
				d.set(n, c)
				n++
			}
			continue
		}

		for i := 0; i < count && n < total; i++ {
			c, err := d.readPixel()
			if err != nil {
				return err
			}
			d.set(n, c)
			n++
		}
	}
	return nil
}
