// Package picking provides ray casting and object picking utilities.
package picking

import (
	gomath "math"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3 // Normalized direction
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) math.Vec3 {
	return r.Origin.Add(r.Direction.Scale(t))
}

// NDC converts pixel coordinates to normalized device coordinates (-1 to 1, Y up).
func NDC(screenX, screenY float64, viewportW, viewportH int) (x, y float64) {
	w := float64(max(viewportW, 1))
	h := float64(max(viewportH, 1))
	return 2*screenX/w - 1, 1 - 2*screenY/h
}

// ScreenToRay converts normalized device coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(ndcX, ndcY float64, invViewProj math.Mat4) Ray {
	nearWorld := unproject(invViewProj, math.Vec4{ndcX, ndcY, -1, 1})
	farWorld := unproject(invViewProj, math.Vec4{ndcX, ndcY, 1, 1})

	return Ray{Origin: nearWorld, Direction: farWorld.Sub(nearWorld).Normalize()}
}

func unproject(m math.Mat4, p math.Vec4) math.Vec3 {
	v := m.MulVec4(p)
	if v[3] != 0 {
		v[0] /= v[3]
		v[1] /= v[3]
		v[2] /= v[3]
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// IntersectBounds tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectBounds(box scene.Bounds) (t float64, hit bool) {
	if box.IsEmpty() {
		return 0, false
	}
	tmin := -gomath.MaxFloat64
	tmax := gomath.MaxFloat64

	origin := [3]float64{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float64{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
	hi := [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

	for axis := 0; axis < 3; axis++ {
		if dir[axis] != 0 {
			t1 := (lo[axis] - origin[axis]) / dir[axis]
			t2 := (hi[axis] - origin[axis]) / dir[axis]
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			tmin = gomath.Max(tmin, t1)
			tmax = gomath.Min(tmax, t2)
		} else if origin[axis] < lo[axis] || origin[axis] > hi[axis] {
			return 0, false
		}
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

const triangleEpsilon = 1e-9

// IntersectTriangle runs the Moller-Trumbore test and returns the hit
// distance. Both faces count as hits.
func (r Ray) IntersectTriangle(a, b, c math.Vec3) (t float64, hit bool) {
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if gomath.Abs(det) < triangleEpsilon {
		return 0, false // Parallel to the triangle plane
	}
	inv := 1 / det

	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t = e2.Dot(q) * inv
	if t <= triangleEpsilon {
		return 0, false
	}
	return t, true
}
