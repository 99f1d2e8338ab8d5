// Package texture decodes material images referenced by model files.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// ErrUnknownImageFormat is returned when neither the name nor the bytes
// identify a supported image format.
var ErrUnknownImageFormat = errors.New("unknown image format")

// Decode decodes image bytes. The extension of name is tried first, then the
// leading signature bytes.
func Decode(name string, data []byte) (image.Image, error) {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if ext != "" {
		img, err := decodeByExtension(data, ext)
		if err == nil {
			return img, nil
		}
		if sniffed := Sniff(data); sniffed != "" && sniffed != normalizeExt(ext) {
			if img, fallbackErr := decodeByExtension(data, sniffed); fallbackErr == nil {
				return img, nil
			}
		}
		if !errors.Is(err, ErrUnknownImageFormat) {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
	}

	sniffed := Sniff(data)
	if sniffed == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownImageFormat, name)
	}
	img, err := decodeByExtension(data, sniffed)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return img, nil
}

func normalizeExt(ext string) string {
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ext
}

func decodeByExtension(data []byte, ext string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch normalizeExt(ext) {
	case ".png":
		return png.Decode(r)
	case ".jpg":
		return jpeg.Decode(r)
	case ".gif":
		return gif.Decode(r)
	case ".bmp":
		return bmp.Decode(r)
	case ".webp":
		return webp.Decode(r)
	case ".tga":
		return tga.Decode(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownImageFormat, ext)
}

// Sniff guesses the image extension from signature bytes. TGA has no
// signature and is never sniffed.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ".png"
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return ".gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return ".bmp"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return ".webp"
	}
	return ""
}
