// Package scene holds the in-memory scene graph produced by format parsers
// and consumed by the camera, picking and rendering code.
package scene

import (
	"strings"

	"github.com/Faultbox/modelboard/pkg/math"
)

// Node is a scene graph node with a local TRS transform and an optional mesh.
type Node struct {
	Name        string
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3

	// Matrix, when set, replaces the TRS transform.
	Matrix *math.Mat4

	Mesh     *Mesh
	Material *Material

	// Highlighted marks the node as the current selection.
	Highlighted bool

	parent   *Node
	children []*Node
}

// NewNode creates a node with identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
}

// AddChild attaches c under n, detaching it from any previous parent.
func (n *Node) AddChild(c *Node) {
	if c.parent != nil {
		c.parent.removeChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
}

func (n *Node) removeChild(c *Node) {
	for i, ch := range n.children {
		if ch == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// Children returns the direct children.
func (n *Node) Children() []*Node {
	return n.children
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// LocalMatrix returns the node transform relative to its parent.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return math.Compose(n.Translation, n.Rotation, n.Scale)
}

// WorldMatrix returns the node transform relative to the root.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul(m)
	}
	return m
}

// Walk visits n and its descendants depth-first with their world matrices.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(node *Node, world math.Mat4) bool) {
	var parentWorld math.Mat4
	if n.parent != nil {
		parentWorld = n.parent.WorldMatrix()
	} else {
		parentWorld = math.Identity()
	}
	n.walk(parentWorld, fn)
}

func (n *Node) walk(parentWorld math.Mat4, fn func(*Node, math.Mat4) bool) {
	world := parentWorld.Mul(n.LocalMatrix())
	if !fn(n, world) {
		return
	}
	for _, c := range n.children {
		c.walk(world, fn)
	}
}

// WorldBounds returns the world-space box enclosing every mesh under n.
func (n *Node) WorldBounds() Bounds {
	var b Bounds
	n.Walk(func(node *Node, world math.Mat4) bool {
		if node.Mesh != nil {
			b = b.Union(node.Mesh.Bounds().Transform(world))
		}
		return true
	})
	return b
}

// MeshNodes returns every node under n that carries a mesh, in walk order.
func (n *Node) MeshNodes() []*Node {
	var out []*Node
	n.Walk(func(node *Node, _ math.Mat4) bool {
		if node.Mesh != nil {
			out = append(out, node)
		}
		return true
	})
	return out
}

// Path returns the slash-joined names from the root to n.
func (n *Node) Path() string {
	var parts []string
	for p := n; p != nil; p = p.parent {
		parts = append(parts, p.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Contains reports whether c is n or a descendant of n.
func (n *Node) Contains(c *Node) bool {
	for p := c; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}
