// Package renderer provides a z-buffered software renderer for scene previews.
package renderer

import (
	"image"
	"image/color"
	gomath "math"

	"github.com/Faultbox/modelboard/internal/engine/lighting"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int

	Background scene.Color
	Lights     lighting.Rig

	Highlight      scene.Color
	HighlightBlend float64
}

// DefaultConfig returns a white background lit by lighting.DefaultRig.
func DefaultConfig() Config {
	return Config{
		Width:          800,
		Height:         600,
		Background:     scene.White,
		Lights:         lighting.DefaultRig(),
		Highlight:      scene.Color{R: 1, G: 0.55, B: 0.1, A: 1},
		HighlightBlend: 0.35,
	}
}

// Stats counts triangles processed in the last frame.
type Stats struct {
	Triangles int
	Culled    int
	Drawn     int
}

// Renderer rasterizes a scene graph into an RGBA image.
// It is not safe for concurrent use.
type Renderer struct {
	config Config
	img    *image.NRGBA
	depth  []float64

	Stats Stats
}

// New creates a new renderer.
func New(cfg Config) *Renderer {
	r := &Renderer{config: cfg}
	r.Resize(cfg.Width, cfg.Height)
	return r
}

// Resize reallocates the color and depth buffers.
func (r *Renderer) Resize(width, height int) {
	width = max(width, 1)
	height = max(height, 1)
	r.config.Width, r.config.Height = width, height
	r.img = image.NewNRGBA(image.Rect(0, 0, width, height))
	r.depth = make([]float64, width*height)
}

// Size returns the output dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.config.Width, r.config.Height
}

// Clear fills the color buffer with the background and resets depth.
func (r *Renderer) Clear() {
	bg := r.config.Background.NRGBA()
	pix := r.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = bg.R, bg.G, bg.B, bg.A
	}
	n := len(r.depth)
	if n == 0 {
		return
	}
	r.depth[0] = gomath.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.depth[i:], r.depth[:i])
	}
}

// Render draws root with the given view-projection matrix and returns a copy
// of the frame.
func (r *Renderer) Render(root *scene.Node, viewProj math.Mat4) *image.NRGBA {
	r.Clear()
	r.Stats = Stats{}

	if root != nil {
		root.Walk(func(node *scene.Node, world math.Mat4) bool {
			if node.Mesh != nil {
				r.drawMesh(node, world, viewProj)
			}
			return true
		})
	}

	out := image.NewNRGBA(r.img.Rect)
	copy(out.Pix, r.img.Pix)
	return out
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y   float64
	Z      float64
	W      float64
	World  math.Vec3
	Normal math.Vec3
	UV     math.Vec2
}

func (r *Renderer) drawMesh(node *scene.Node, world, viewProj math.Mat4) {
	mesh := node.Mesh
	mat := node.Material
	if mat == nil {
		mat = scene.DefaultMaterial()
	}
	normalMat := world.NormalMatrix()
	mvp := viewProj.Mul(world)

	for i := 0; i < mesh.TriangleCount(); i++ {
		r.Stats.Triangles++
		ia, ib, ic := mesh.Triangle(i)
		idx := [3]uint32{ia, ib, ic}

		var sv [3]screenVertex
		var ndc [3]math.Vec2
		visible := true
		for k, vi := range idx {
			p := mesh.Positions[vi]
			clip := mvp.MulVec4(math.Vec4{p.X, p.Y, p.Z, 1})
			if clip[3] <= 0 {
				visible = false
				break
			}
			x, y, z := clip[0]/clip[3], clip[1]/clip[3], clip[2]/clip[3]
			ndc[k] = math.Vec2{X: x, Y: y}
			sv[k] = screenVertex{
				X:     (x + 1) * 0.5 * float64(r.config.Width),
				Y:     (1 - y) * 0.5 * float64(r.config.Height), // Y flipped
				Z:     z,
				W:     clip[3],
				World: world.TransformPoint(p),
			}
			if int(vi) < len(mesh.Normals) {
				sv[k].Normal = normalMat.TransformDirection(mesh.Normals[vi]).Normalize()
			}
			if int(vi) < len(mesh.UVs) {
				sv[k].UV = mesh.UVs[vi]
			}
		}
		if !visible {
			r.Stats.Culled++
			continue
		}

		// Counter-clockwise in NDC is front facing.
		area := (ndc[1].X-ndc[0].X)*(ndc[2].Y-ndc[0].Y) - (ndc[1].Y-ndc[0].Y)*(ndc[2].X-ndc[0].X)
		if area == 0 || (area < 0 && !mat.DoubleSided) {
			r.Stats.Culled++
			continue
		}
		r.rasterize(sv, mat, node.Highlighted, area < 0)
		r.Stats.Drawn++
	}
}

func (r *Renderer) rasterize(sv [3]screenVertex, mat *scene.Material, highlighted, backFace bool) {
	w, h := r.config.Width, r.config.Height
	minX := max(int(gomath.Floor(gomath.Min(sv[0].X, gomath.Min(sv[1].X, sv[2].X)))), 0)
	maxX := min(int(gomath.Ceil(gomath.Max(sv[0].X, gomath.Max(sv[1].X, sv[2].X)))), w-1)
	minY := max(int(gomath.Floor(gomath.Min(sv[0].Y, gomath.Min(sv[1].Y, sv[2].Y)))), 0)
	maxY := min(int(gomath.Ceil(gomath.Max(sv[0].Y, gomath.Max(sv[1].Y, sv[2].Y)))), h-1)
	if minX > maxX || minY > maxY {
		return
	}

	// Meshes without normals are shaded flat.
	flat := sv[0].Normal.Length() == 0
	var faceNormal math.Vec3
	if flat {
		faceNormal = sv[1].World.Sub(sv[0].World).Cross(sv[2].World.Sub(sv[0].World)).Normalize()
		if backFace {
			faceNormal = faceNormal.Scale(-1)
		}
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			b0, b1, b2, ok := barycentric(px, py, sv)
			if !ok {
				continue
			}
			z := b0*sv[0].Z + b1*sv[1].Z + b2*sv[2].Z
			if z < -1 || z > 1 {
				continue
			}
			i := y*w + x
			if z >= r.depth[i] {
				continue
			}
			r.depth[i] = z

			// Perspective-correct attribute weights.
			p0, p1, p2 := b0/sv[0].W, b1/sv[1].W, b2/sv[2].W
			sum := p0 + p1 + p2
			p0, p1, p2 = p0/sum, p1/sum, p2/sum

			n := faceNormal
			if !flat {
				n = sv[0].Normal.Scale(p0).Add(sv[1].Normal.Scale(p1)).Add(sv[2].Normal.Scale(p2)).Normalize()
				if backFace {
					n = n.Scale(-1)
				}
			}
			base := mat.BaseColor
			if mat.Texture != nil {
				u := sv[0].UV.X*p0 + sv[1].UV.X*p1 + sv[2].UV.X*p2
				v := sv[0].UV.Y*p0 + sv[1].UV.Y*p1 + sv[2].UV.Y*p2
				base = mat.Sample(u, v)
			}
			r.img.SetNRGBA(x, y, r.shade(base, n, highlighted))
		}
	}
}

func (r *Renderer) shade(base scene.Color, n math.Vec3, highlighted bool) color.NRGBA {
	k := r.config.Lights.Intensity(n)
	c := scene.Color{
		R: gomath.Min(1, base.R*k),
		G: gomath.Min(1, base.G*k),
		B: gomath.Min(1, base.B*k),
		A: 1,
	}
	if highlighted {
		t := r.config.HighlightBlend
		hl := r.config.Highlight
		c.R = c.R*(1-t) + hl.R*t
		c.G = c.G*(1-t) + hl.G*t
		c.B = c.B*(1-t) + hl.B*t
	}
	return c.NRGBA()
}

// barycentric returns the weights of (px, py) in the screen triangle.
func barycentric(px, py float64, sv [3]screenVertex) (b0, b1, b2 float64, ok bool) {
	d := (sv[1].Y-sv[2].Y)*(sv[0].X-sv[2].X) + (sv[2].X-sv[1].X)*(sv[0].Y-sv[2].Y)
	if d == 0 {
		return 0, 0, 0, false
	}
	b0 = ((sv[1].Y-sv[2].Y)*(px-sv[2].X) + (sv[2].X-sv[1].X)*(py-sv[2].Y)) / d
	b1 = ((sv[2].Y-sv[0].Y)*(px-sv[2].X) + (sv[0].X-sv[2].X)*(py-sv[2].Y)) / d
	b2 = 1 - b0 - b1
	if b0 < 0 || b1 < 0 || b2 < 0 {
		return 0, 0, 0, false
	}
	return b0, b1, b2, true
}
