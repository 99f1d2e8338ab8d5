package picking

import (
	gomath "math"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Hit describes the nearest surface hit by a ray.
type Hit struct {
	Node     *scene.Node
	Distance float64
	Point    math.Vec3
	Triangle int
}

// Pick returns the nearest mesh node under root hit by the ray.
// Nodes whose world box misses the ray, or lies farther than the current
// best hit, are skipped without testing triangles.
func Pick(root *scene.Node, ray Ray) (Hit, bool) {
	if root == nil {
		return Hit{}, false
	}

	best := Hit{Distance: gomath.Inf(1)}
	root.Walk(func(node *scene.Node, world math.Mat4) bool {
		mesh := node.Mesh
		if mesh == nil {
			return true
		}
		box := mesh.Bounds().Transform(world)
		if t, ok := ray.IntersectBounds(box); !ok || t > best.Distance {
			return true
		}

		for i := 0; i < mesh.TriangleCount(); i++ {
			ia, ib, ic := mesh.Triangle(i)
			a := world.TransformPoint(mesh.Positions[ia])
			b := world.TransformPoint(mesh.Positions[ib])
			c := world.TransformPoint(mesh.Positions[ic])
			if t, ok := ray.IntersectTriangle(a, b, c); ok && t < best.Distance {
				best = Hit{Node: node, Distance: t, Point: ray.At(t), Triangle: i}
			}
		}
		return true
	})

	if best.Node == nil {
		return Hit{}, false
	}
	return best, true
}
