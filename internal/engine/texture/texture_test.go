package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// makeTGA builds an uncompressed 24-bit top-left-origin TGA.
func makeTGA(w, h int, bgr [3]byte) []byte {
	header := []byte{
		0, 0, 2, // id length, no color map, true-color
		0, 0, 0, 0, 0, // color map spec
		0, 0, 0, 0, // origin
		byte(w), byte(w >> 8), byte(h), byte(h >> 8),
		24, 0x20,
	}
	data := append([]byte{}, header...)
	for i := 0; i < w*h; i++ {
		data = append(data, bgr[0], bgr[1], bgr[2])
	}
	return data
}

func TestDecode(t *testing.T) {
	pngData := encodePNG(t)

	tests := []struct {
		name  string
		file  string
		data  []byte
		wantW int
	}{
		{"png by extension", "wood.png", pngData, 2},
		{"png by signature", "blob", pngData, 2},
		{"png with wrong extension", "wood.jpg", pngData, 2},
		{"tga", `textures\Skin.TGA`, makeTGA(3, 1, [3]byte{0, 0, 255}), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Decode(tt.file, tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got := img.Bounds().Dx(); got != tt.wantW {
				t.Errorf("width = %d, want %d", got, tt.wantW)
			}
		})
	}
}

func TestDecodeTGAColor(t *testing.T) {
	img, err := Decode("a.tga", makeTGA(1, 1, [3]byte{0, 0, 255}))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || g != 0 || b != 0 {
		t.Errorf("pixel = %d,%d,%d, want red", r>>8, g>>8, b>>8)
	}
}

func TestDecodeUnknown(t *testing.T) {
	_, err := Decode("notes", []byte("plain text"))
	if !errors.Is(err, ErrUnknownImageFormat) {
		t.Errorf("Decode() error = %v, want ErrUnknownImageFormat", err)
	}
}
