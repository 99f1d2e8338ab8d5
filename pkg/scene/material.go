package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	gomath "math"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned for color strings that are not #rgb or #rrggbb.
var ErrInvalidColor = errors.New("invalid color")

// Color is a non-premultiplied RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// White is the neutral base color.
var White = Color{1, 1, 1, 1}

// ParseHexColor parses "#rrggbb", "#rgb" or the same without '#'.
func ParseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: 1,
	}, nil
}

// Hex formats the color as #rrggbb.
func (c Color) Hex() string {
	n := c.NRGBA()
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// NRGBA converts to an 8-bit color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

// ColorFromImage converts any color.Color to Color.
func ColorFromImage(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{float64(n.R) / 255, float64(n.G) / 255, float64(n.B) / 255, float64(n.A) / 255}
}

func to8(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}

// Material is the surface description shared by one or more mesh nodes.
type Material struct {
	Name      string
	BaseColor Color
	Metallic  float64
	Roughness float64

	// Texture is the decoded base color map, nil when untextured.
	Texture image.Image
	// TextureRef is the resource path the texture came from.
	TextureRef string

	DoubleSided bool
}

// DefaultMaterial returns a plain white material.
func DefaultMaterial() *Material {
	return &Material{Name: "default", BaseColor: White, Roughness: 1}
}

// Clone returns a shallow copy; the texture image is shared read-only.
func (m *Material) Clone() *Material {
	c := *m
	return &c
}

// Sample returns the base color modulated by the texture at uv.
func (m *Material) Sample(u, v float64) Color {
	if m.Texture == nil {
		return m.BaseColor
	}
	b := m.Texture.Bounds()
	u -= gomath.Floor(u)
	v -= gomath.Floor(v)
	x := b.Min.X + int(u*float64(b.Dx()))
	y := b.Min.Y + int(v*float64(b.Dy()))
	if x >= b.Max.X {
		x = b.Max.X - 1
	}
	if y >= b.Max.Y {
		y = b.Max.Y - 1
	}
	t := ColorFromImage(m.Texture.At(x, y))
	return Color{m.BaseColor.R * t.R, m.BaseColor.G * t.G, m.BaseColor.B * t.B, m.BaseColor.A * t.A}
}
