package debug

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// boxEdges indexes scene.Bounds.Corners: 12 edges, 2 endpoints each.
var boxEdges = [12][2]int{
	// Bottom face
	{0, 1}, {1, 5}, {5, 4}, {4, 0},
	// Top face
	{2, 3}, {3, 7}, {7, 6}, {6, 2},
	// Vertical edges
	{0, 2}, {1, 3}, {5, 7}, {4, 6},
}

// BoundsWireframe returns the 12 box edges as pairs of world-space points.
func BoundsWireframe(b scene.Bounds) [][2]math.Vec3 {
	if b.IsEmpty() {
		return nil
	}
	corners := b.Corners()
	lines := make([][2]math.Vec3, 0, len(boxEdges))
	for _, e := range boxEdges {
		lines = append(lines, [2]math.Vec3{corners[e[0]], corners[e[1]]})
	}
	return lines
}

// DrawBounds overlays the wireframe of b on a copy of img.
// Edges with an endpoint behind the camera are skipped.
func DrawBounds(img image.Image, b scene.Bounds, viewProj math.Mat4, c color.Color, width float64) image.Image {
	dc := gg.NewContextForImage(img)
	w := float64(dc.Width())
	h := float64(dc.Height())

	dc.SetColor(c)
	dc.SetLineWidth(width)
	for _, line := range BoundsWireframe(b) {
		x0, y0, ok0 := project(line[0], viewProj, w, h)
		x1, y1, ok1 := project(line[1], viewProj, w, h)
		if !ok0 || !ok1 {
			continue
		}
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
	return dc.Image()
}

func project(p math.Vec3, viewProj math.Mat4, w, h float64) (x, y float64, ok bool) {
	clip := viewProj.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
	if clip[3] <= 0 {
		return 0, 0, false
	}
	nx, ny := clip[0]/clip[3], clip[1]/clip[3]
	return (nx + 1) * 0.5 * w, (1 - ny) * 0.5 * h, true
}
