package annotation

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DataURIPrefix prefixes exported PNG data URIs.
const DataURIPrefix = "data:image/png;base64,"

// ExportImage returns a copy of the surface at device resolution.
func (o *Overlay) ExportImage() *image.RGBA {
	src := o.dc.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}

// ExportPNG encodes the surface as PNG.
func (o *Overlay) ExportPNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, o.dc.Image()); err != nil {
		return nil, fmt.Errorf("encoding annotation PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportDataURI encodes the surface as a PNG data URI.
func (o *Overlay) ExportDataURI() (string, error) {
	data, err := o.ExportPNG()
	if err != nil {
		return "", err
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}
