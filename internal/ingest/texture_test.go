package ingest

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeTGA_Uncompressed(t *testing.T) {
	// 1x2, 24bpp, bottom-to-top: blue is stored first and lands at the bottom.
	data := tgaHeader(tgaTypeUncompressed, 1, 2, 24, 0)
	data = append(data, 255, 0, 0) // blue (BGR)
	data = append(data, 0, 0, 255) // red

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("top pixel = %v, want red", got)
	}
	if got := img.NRGBAAt(0, 1); got != (color.NRGBA{B: 255, A: 255}) {
		t.Errorf("bottom pixel = %v, want blue", got)
	}
}

func TestDecodeTGA_TopToBottom(t *testing.T) {
	data := tgaHeader(tgaTypeUncompressed, 1, 2, 24, tgaTopToBottom)
	data = append(data, 255, 0, 0, 0, 0, 255)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	if got := img.NRGBAAt(0, 0); got.B != 255 {
		t.Errorf("top pixel = %v, want blue", got)
	}
}

func TestDecodeTGA_RLE(t *testing.T) {
	data := tgaHeader(tgaTypeRLE, 4, 1, 32, tgaTopToBottom)
	data = append(data, 0x82, 0, 255, 0, 128) // run of 3 green, alpha 128
	data = append(data, 0x00, 10, 20, 30, 40) // one raw pixel

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA failed: %v", err)
	}
	for x := 0; x < 3; x++ {
		if got := img.NRGBAAt(x, 0); got != (color.NRGBA{G: 255, A: 128}) {
			t.Errorf("pixel %d = %v, want green alpha 128", x, got)
		}
	}
	if got := img.NRGBAAt(3, 0); got != (color.NRGBA{R: 30, G: 20, B: 10, A: 40}) {
		t.Errorf("raw pixel = %v", got)
	}
}

func TestDecodeTGA_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte{0, 0, 2}},
		{"color mapped", func() []byte { d := tgaHeader(tgaTypeUncompressed, 1, 1, 24, 0); d[1] = 1; return d }()},
		{"grayscale", tgaHeader(3, 1, 1, 8, 0)},
		{"16bpp", tgaHeader(tgaTypeUncompressed, 1, 1, 16, 0)},
		{"truncated raw", append(tgaHeader(tgaTypeUncompressed, 2, 1, 24, 0), 1, 2, 3)},
		{"truncated rle", append(tgaHeader(tgaTypeRLE, 2, 1, 24, 0), 0x80, 1, 2, 3)},
		{"empty image", tgaHeader(tgaTypeUncompressed, 0, 1, 24, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTGA(tt.data); !errors.Is(err, ErrInvalidTGA) {
				t.Errorf("DecodeTGA() error = %v, want ErrInvalidTGA", err)
			}
		})
	}
}

func TestTextureFromImage_BottomRowFirst(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255}) // top-left
	src.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 51})  // bottom-right

	tex := TextureFromImage(src)
	if err := tex.Validate(); err != nil {
		t.Fatalf("texture invalid: %v", err)
	}

	// v=0 is the bottom row, so bottom-right is pixel (1, 0).
	if got := tex.Sample(1, 0, false); got != [4]float64{0, 0, 1, float64(float32(51) / 255)} {
		t.Errorf("bottom-right = %v", got)
	}
	if got := tex.Sample(0, 1, false); got != [4]float64{1, 0, 0, 1} {
		t.Errorf("top-left = %v", got)
	}
}

func TestLoadTexture(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "grass.png")
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	f, err := os.Create(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	tex, err := LoadTexture(pngPath)
	if err != nil {
		t.Fatalf("LoadTexture(png) failed: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 || tex.Name != "grass.png" {
		t.Errorf("texture = %dx%d %q", tex.Width, tex.Height, tex.Name)
	}

	tgaPath := filepath.Join(dir, "grass.TGA")
	data := append(tgaHeader(tgaTypeUncompressed, 1, 1, 24, 0), 0, 128, 0)
	if err := os.WriteFile(tgaPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	tex, err = LoadTexture(tgaPath)
	if err != nil {
		t.Fatalf("LoadTexture(tga) failed: %v", err)
	}
	if tex.Pixels[1] != float32(128)/255 {
		t.Errorf("green = %v", tex.Pixels[1])
	}

	badPath := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(badPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTexture(badPath); err == nil {
		t.Error("expected decode error")
	}
	if _, err := LoadTexture(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func tgaHeader(imageType byte, width, height int, bpp, descriptor byte) []byte {
	h := make([]byte, tgaHeaderSize)
	h[2] = imageType
	h[12], h[13] = byte(width), byte(width>>8)
	h[14], h[15] = byte(height), byte(height>>8)
	h[16] = bpp
	h[17] = descriptor
	return h
}
