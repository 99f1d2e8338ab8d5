package renderer

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/modelboard/internal/engine/lighting"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

func quadNode(z float64, c scene.Color, ccw bool) *scene.Node {
	n := scene.NewNode("quad")
	idx := []uint32{0, 1, 2, 0, 2, 3}
	if !ccw {
		idx = []uint32{0, 2, 1, 0, 3, 2}
	}
	n.Mesh = &scene.Mesh{
		Positions: []math.Vec3{
			{X: -1, Y: -1, Z: z}, {X: 1, Y: -1, Z: z}, {X: 1, Y: 1, Z: z}, {X: -1, Y: 1, Z: z},
		},
		Indices: idx,
	}
	n.Mesh.ComputeNormals()
	n.Material = &scene.Material{BaseColor: c, Roughness: 1}
	return n
}

func viewProj() math.Mat4 {
	view := math.LookAt(math.Vec3{Z: 5}, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(gomath.Pi/3, 1, 0.1, 100)
	return proj.Mul(view)
}

var red = scene.Color{R: 1, A: 1}

func TestRenderQuad(t *testing.T) {
	r := New(Config{Width: 64, Height: 64, Background: scene.White, Lights: lighting.DefaultRig()})
	img := r.Render(quadNode(0, red, true), viewProj())

	center := img.NRGBAAt(32, 32)
	if center.R != 255 || center.G != 0 || center.B != 0 {
		t.Errorf("center pixel = %+v, want red", center)
	}
	corner := img.NRGBAAt(0, 0)
	if corner.R != 255 || corner.G != 255 || corner.B != 255 {
		t.Errorf("corner pixel = %+v, want background", corner)
	}
	if r.Stats.Drawn != 2 {
		t.Errorf("drawn = %d, want 2", r.Stats.Drawn)
	}
}

func TestRenderCullsBackFaces(t *testing.T) {
	r := New(Config{Width: 32, Height: 32, Background: scene.White, Lights: lighting.Rig{Ambient: 0.6}})
	node := quadNode(0, red, false)
	r.Render(node, viewProj())
	if r.Stats.Drawn != 0 || r.Stats.Culled != 2 {
		t.Errorf("stats = %+v, want both triangles culled", r.Stats)
	}

	node.Material.DoubleSided = true
	img := r.Render(node, viewProj())
	if img.NRGBAAt(16, 16).G == 255 {
		t.Error("double-sided back face was not drawn")
	}
}

func TestRenderDepthOrder(t *testing.T) {
	blue := scene.Color{B: 1, A: 1}
	root := scene.NewNode("root")
	root.AddChild(quadNode(0, blue, true))
	root.AddChild(quadNode(-1, red, true))

	r := New(Config{Width: 32, Height: 32, Background: scene.White, Lights: lighting.Rig{Ambient: 0.6}})
	img := r.Render(root, viewProj())
	if c := img.NRGBAAt(16, 16); c.B == 0 || c.R != 0 {
		t.Errorf("center pixel = %+v, want nearer blue quad", c)
	}
}

func TestRenderHighlight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 32, 32
	r := New(cfg)
	node := quadNode(0, scene.Color{B: 1, A: 1}, true)

	plain := r.Render(node, viewProj()).NRGBAAt(16, 16)
	node.Highlighted = true
	lit := r.Render(node, viewProj()).NRGBAAt(16, 16)
	if plain == lit {
		t.Error("highlight did not change the shaded color")
	}
}

func TestRenderEmpty(t *testing.T) {
	r := New(DefaultConfig())
	img := r.Render(nil, viewProj())
	w, h := r.Size()
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Errorf("frame size = %v, want %dx%d", img.Bounds(), w, h)
	}
	if c := img.NRGBAAt(w/2, h/2); c.R != 255 || c.A != 255 {
		t.Errorf("empty frame pixel = %+v", c)
	}
}
