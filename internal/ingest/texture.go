package ingest

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/Faultbox/geobake/pkg/colors"
)

// LoadTexture reads an image file into a float RGBA buffer with row 0 at the
// bottom, the layout UV sampling expects. TGA files go through DecodeTGA,
// everything else through the registered image decoders.
func LoadTexture(path string) (*colors.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read texture: %w", err)
	}

	img, err := DecodeImage(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decode texture %s: %w", filepath.Base(path), err)
	}

	tex := TextureFromImage(img)
	tex.Name = filepath.Base(path)
	return tex, nil
}

// DecodeImage decodes data, picking the TGA decoder by extension.
func DecodeImage(data []byte, ext string) (image.Image, error) {
	if strings.EqualFold(ext, ".tga") {
		return DecodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// TextureFromImage converts a top-down image into a bottom-up float buffer.
// Channel values are kept as stored; no color space conversion happens here.
func TextureFromImage(img image.Image) *colors.Image {
	flipped := imaging.FlipV(img)
	w, h := flipped.Rect.Dx(), flipped.Rect.Dy()

	pixels := make([]float32, 0, w*h*4)
	for _, b := range flipped.Pix {
		pixels = append(pixels, float32(b)/255)
	}

	return &colors.Image{
		Width:  w,
		Height: h,
		Pixels: pixels,
	}
}
