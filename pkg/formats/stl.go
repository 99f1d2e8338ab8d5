package formats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	gomath "math"
	"strconv"
	"strings"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// STL format errors.
var (
	ErrTruncatedSTL = errors.New("truncated STL data")
	ErrInvalidSTL   = errors.New("invalid STL data")
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// STLDefaultColor is the neutral grey applied to STL meshes, which carry no material.
const STLDefaultColor = "#888888"

// STLParser reads ASCII and binary STL.
type STLParser struct{}

// Parse implements Parser.
func (STLParser) Parse(_ context.Context, data []byte, _ *Env) (*scene.Node, error) {
	var (
		mesh *scene.Mesh
		name string
		err  error
	)
	if isBinarySTL(data) {
		mesh, err = parseBinarySTL(data)
	} else {
		mesh, name, err = parseASCIISTL(data)
	}
	if err != nil {
		return nil, err
	}

	mat := scene.DefaultMaterial()
	mat.Name = "stl"
	mat.BaseColor, _ = scene.ParseHexColor(STLDefaultColor)

	node := scene.NewNode(name)
	node.Mesh = mesh
	node.Material = mat
	return node, nil
}

// isBinarySTL decides by size first, since binary headers may start with "solid".
func isBinarySTL(data []byte) bool {
	if len(data) >= stlHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if int64(stlHeaderSize+4)+int64(count)*stlTriangleSize == int64(len(data)) {
			return true
		}
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return !bytes.HasPrefix(trimmed, []byte("solid"))
}

func parseBinarySTL(data []byte) (*scene.Mesh, error) {
	if len(data) < stlHeaderSize+4 {
		return nil, ErrTruncatedSTL
	}
	count := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	need := stlHeaderSize + 4 + count*stlTriangleSize
	if count < 0 || need > len(data) {
		return nil, fmt.Errorf("%w: %d triangles need %d bytes, have %d", ErrTruncatedSTL, count, need, len(data))
	}

	mesh := &scene.Mesh{
		Positions: make([]math.Vec3, 0, count*3),
		Normals:   make([]math.Vec3, 0, count*3),
	}
	off := stlHeaderSize + 4
	for i := 0; i < count; i++ {
		var v [4]math.Vec3
		for j := range v {
			base := off + j*12
			v[j] = math.Vec3{
				X: float64(gomath.Float32frombits(binary.LittleEndian.Uint32(data[base:]))),
				Y: float64(gomath.Float32frombits(binary.LittleEndian.Uint32(data[base+4:]))),
				Z: float64(gomath.Float32frombits(binary.LittleEndian.Uint32(data[base+8:]))),
			}
		}
		addFacet(mesh, v[0], v[1], v[2], v[3])
		off += stlTriangleSize
	}
	return mesh, nil
}

func parseASCIISTL(data []byte) (*scene.Mesh, string, error) {
	mesh := &scene.Mesh{}
	var (
		name   string
		normal math.Vec3
		verts  []math.Vec3
		inLoop bool
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if len(fields) < 5 || strings.ToLower(fields[1]) != "normal" {
				return nil, "", fmt.Errorf("%w: line %d: malformed facet", ErrInvalidSTL, lineNo)
			}
			n, err := parseVec3(fields[2:5])
			if err != nil {
				return nil, "", fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, lineNo, err)
			}
			normal = n
		case "outer":
			inLoop = true
			verts = verts[:0]
		case "vertex":
			if !inLoop || len(fields) < 4 {
				return nil, "", fmt.Errorf("%w: line %d: vertex outside loop", ErrInvalidSTL, lineNo)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, "", fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, lineNo, err)
			}
			verts = append(verts, v)
		case "endloop":
			inLoop = false
			// Polygonal facets from some exporters are fanned.
			for i := 1; i+1 < len(verts); i++ {
				addFacet(mesh, normal, verts[0], verts[i], verts[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("reading STL: %w", err)
	}
	return mesh, name, nil
}

func parseVec3(f []string) (math.Vec3, error) {
	var out [3]float64
	for i := range out {
		v, err := strconv.ParseFloat(f[i], 64)
		if err != nil {
			return math.Vec3{}, err
		}
		out[i] = v
	}
	return math.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// addFacet appends a flat-shaded triangle, recomputing the normal when the
// stored one is zero.
func addFacet(mesh *scene.Mesh, n, a, b, c math.Vec3) {
	if n.Length() < 1e-12 {
		n = b.Sub(a).Cross(c.Sub(a)).Normalize()
	} else {
		n = n.Normalize()
	}
	mesh.Positions = append(mesh.Positions, a, b, c)
	mesh.Normals = append(mesh.Normals, n, n, n)
}
