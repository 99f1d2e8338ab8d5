package picking

import (
	gomath "math"
	"testing"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

func quad(name string, z float64) *scene.Node {
	n := scene.NewNode(name)
	n.Mesh = &scene.Mesh{
		Positions: []math.Vec3{
			{X: -1, Y: -1, Z: z}, {X: 1, Y: -1, Z: z}, {X: 1, Y: 1, Z: z}, {X: -1, Y: 1, Z: z},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	return n
}

func TestIntersectBounds(t *testing.T) {
	box := scene.NewBounds(math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float64
	}{
		{"front", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}, true, 4},
		{"inside", Ray{Origin: math.Vec3{}, Direction: math.Vec3{X: 1}}, true, 1},
		{"miss", Ray{Origin: math.Vec3{X: 3, Z: 5}, Direction: math.Vec3{Z: -1}}, false, 0},
		{"behind", Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ray.IntersectBounds(box)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && gomath.Abs(got-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
		})
	}

	if _, ok := (Ray{Direction: math.Vec3{Z: 1}}).IntersectBounds(scene.Bounds{}); ok {
		t.Error("empty box should never be hit")
	}
}

func TestIntersectTriangle(t *testing.T) {
	a := math.Vec3{X: -1, Y: -1}
	b := math.Vec3{X: 1, Y: -1}
	c := math.Vec3{Y: 1}

	r := Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{Z: -1}}
	got, ok := r.IntersectTriangle(a, b, c)
	if !ok || gomath.Abs(got-2) > 1e-9 {
		t.Fatalf("IntersectTriangle = %v, %v; want 2, true", got, ok)
	}

	// Back face still counts.
	r = Ray{Origin: math.Vec3{Z: -2}, Direction: math.Vec3{Z: 1}}
	if _, ok := r.IntersectTriangle(a, b, c); !ok {
		t.Error("back face should be hit")
	}

	r = Ray{Origin: math.Vec3{X: 5, Z: 2}, Direction: math.Vec3{Z: -1}}
	if _, ok := r.IntersectTriangle(a, b, c); ok {
		t.Error("ray outside triangle should miss")
	}

	r = Ray{Origin: math.Vec3{Z: 2}, Direction: math.Vec3{X: 1}}
	if _, ok := r.IntersectTriangle(a, b, c); ok {
		t.Error("parallel ray should miss")
	}
}

func TestPickNearest(t *testing.T) {
	root := scene.NewNode("root")
	far := quad("far", -2)
	near := quad("near", 0)
	root.AddChild(far)
	root.AddChild(near)

	ray := Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: -1}}
	hit, ok := Pick(root, ray)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Node != near {
		t.Errorf("picked %q, want near", hit.Node.Name)
	}
	if gomath.Abs(hit.Distance-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", hit.Distance)
	}

	// Translating the near quad out of the way exposes the far one.
	near.Translation = math.Vec3{X: 10}
	hit, ok = Pick(root, ray)
	if !ok || hit.Node != far {
		t.Fatalf("expected far quad after moving near one")
	}

	if _, ok := Pick(root, Ray{Origin: math.Vec3{Z: 5}, Direction: math.Vec3{Z: 1}}); ok {
		t.Error("ray pointing away should miss")
	}
	if _, ok := Pick(nil, ray); ok {
		t.Error("nil root should miss")
	}
}

func TestScreenToRayCenter(t *testing.T) {
	eye := math.Vec3{Z: 5}
	view := math.LookAt(eye, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(gomath.Pi/3, 1, 0.1, 100)
	inv := proj.Mul(view).Inverse()

	x, y := NDC(50, 50, 100, 100)
	r := ScreenToRay(x, y, inv)
	if !r.Direction.ApproxEqual(math.Vec3{Z: -1}, 1e-6) {
		t.Errorf("direction = %+v, want -Z", r.Direction)
	}
	if gomath.Abs(r.Origin.X) > 1e-6 || gomath.Abs(r.Origin.Y) > 1e-6 {
		t.Errorf("origin off axis: %+v", r.Origin)
	}
}
