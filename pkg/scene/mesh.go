package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/modelboard/pkg/math"
)

// ErrIndexOutOfRange is returned when a triangle references a missing vertex.
var ErrIndexOutOfRange = errors.New("vertex index out of range")

// Mesh is an indexed triangle list in node-local space.
type Mesh struct {
	Positions []math.Vec3
	Normals   []math.Vec3
	UVs       []math.Vec2
	Indices   []uint32
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return len(m.Positions) / 3
}

// Triangle returns the vertex indices of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c uint32) {
	if len(m.Indices) > 0 {
		return m.Indices[i*3], m.Indices[i*3+1], m.Indices[i*3+2]
	}
	base := uint32(i * 3)
	return base, base + 1, base + 2
}

// Validate checks that every index addresses an existing vertex and that
// optional attributes match the position count.
func (m *Mesh) Validate() error {
	n := uint32(len(m.Positions))
	for i, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w: index %d at %d (vertices=%d)", ErrIndexOutOfRange, idx, i, n)
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("normal count %d does not match vertex count %d", len(m.Normals), n)
	}
	if len(m.UVs) != 0 && len(m.UVs) != len(m.Positions) {
		return fmt.Errorf("uv count %d does not match vertex count %d", len(m.UVs), n)
	}
	return nil
}

// Bounds returns the local-space bounding box.
func (m *Mesh) Bounds() Bounds {
	var b Bounds
	for _, p := range m.Positions {
		b.Extend(p)
	}
	return b
}

// ComputeNormals fills Normals with area-weighted vertex normals.
func (m *Mesh) ComputeNormals() {
	normals := make([]math.Vec3, len(m.Positions))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		p0, p1, p2 := m.Positions[a], m.Positions[b], m.Positions[c]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	m.Normals = normals
}
