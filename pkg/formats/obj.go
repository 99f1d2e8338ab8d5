package formats

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// OBJ format errors.
var (
	ErrInvalidOBJIndex = errors.New("invalid OBJ face index")
	ErrInvalidOBJValue = errors.New("invalid OBJ number")
)

// OBJParser reads Wavefront OBJ with MTL materials.
type OBJParser struct{}

type objVertexKey struct {
	v, vt, vn int
}

// objGroup accumulates one object/group + material combination.
type objGroup struct {
	name     string
	material string
	mesh     *scene.Mesh
	lookup   map[objVertexKey]uint32
	hasNorm  bool
}

type objState struct {
	positions []math.Vec3
	uvs       []math.Vec2
	normals   []math.Vec3

	groups    []*objGroup
	current   *objGroup
	groupName string
	material  string
	libraries []string
}

// Parse implements Parser.
func (OBJParser) Parse(ctx context.Context, data []byte, env *Env) (*scene.Node, error) {
	st := &objState{groupName: "default"}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64<<10), 16<<20)
	lineNo := 0
	var pending string
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\") + " "
			continue
		}
		line = pending + line
		pending = ""
		if err := st.parseLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}

	materials := make(map[string]*scene.Material)
	for _, lib := range st.libraries {
		if err := loadMTL(ctx, env, lib, materials); err != nil {
			if IsTransport(err) {
				env.Warn("material library unavailable", zap.String("mtllib", lib), zap.Error(err))
				continue
			}
			return nil, err
		}
	}

	root := scene.NewNode("")
	shared := scene.DefaultMaterial()
	for _, g := range st.groups {
		if g.mesh.TriangleCount() == 0 {
			continue
		}
		if !g.hasNorm {
			g.mesh.ComputeNormals()
		}
		n := scene.NewNode(g.name)
		n.Mesh = g.mesh
		if m, ok := materials[g.material]; ok {
			n.Material = m
		} else {
			if g.material != "" {
				env.Warn("material not defined", zap.String("usemtl", g.material))
			}
			n.Material = shared
		}
		root.AddChild(n)
	}
	return root, nil
}

func (st *objState) parseLine(line string) error {
	if line == "" || line[0] == '#' {
		return nil
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "v":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		st.positions = append(st.positions, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "vt":
		v, err := parseFloats(fields[1:], 1)
		if err != nil {
			return err
		}
		uv := math.Vec2{X: v[0]}
		if len(v) > 1 {
			uv.Y = v[1]
		}
		// OBJ texture space has its origin at the bottom-left.
		uv.Y = 1 - uv.Y
		st.uvs = append(st.uvs, uv)
	case "vn":
		v, err := parseFloats(fields[1:], 3)
		if err != nil {
			return err
		}
		st.normals = append(st.normals, math.Vec3{X: v[0], Y: v[1], Z: v[2]})
	case "f":
		return st.face(fields[1:])
	case "o", "g":
		name := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		if name == "" {
			name = "default"
		}
		st.groupName = name
		st.current = nil
	case "usemtl":
		if len(fields) > 1 {
			st.material = strings.TrimSpace(strings.TrimPrefix(line, "usemtl"))
		}
		st.current = nil
	case "mtllib":
		// Names may contain spaces only when a single library is given.
		rest := strings.TrimSpace(strings.TrimPrefix(line, "mtllib"))
		if rest == "" {
			return nil
		}
		if strings.Count(rest, ".mtl") > 1 {
			st.libraries = append(st.libraries, fields[1:]...)
		} else {
			st.libraries = append(st.libraries, rest)
		}
	}
	return nil
}

func parseFloats(fields []string, min int) ([]float64, error) {
	if len(fields) < min {
		return nil, fmt.Errorf("%w: want %d values, have %d", ErrInvalidOBJValue, min, len(fields))
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOBJValue, f)
		}
		out[i] = v
	}
	return out, nil
}

func (st *objState) group() *objGroup {
	if st.current != nil {
		return st.current
	}
	for _, g := range st.groups {
		if g.name == st.groupName && g.material == st.material {
			st.current = g
			return g
		}
	}
	g := &objGroup{
		name:     st.groupName,
		material: st.material,
		mesh:     &scene.Mesh{},
		lookup:   make(map[objVertexKey]uint32),
	}
	st.groups = append(st.groups, g)
	st.current = g
	return g
}

// face adds a polygon as a triangle fan.
func (st *objState) face(refs []string) error {
	if len(refs) < 3 {
		return nil
	}
	g := st.group()
	idx := make([]uint32, len(refs))
	for i, ref := range refs {
		key, err := st.resolveRef(ref)
		if err != nil {
			return err
		}
		vi, ok := g.lookup[key]
		if !ok {
			vi = uint32(len(g.mesh.Positions))
			g.lookup[key] = vi
			g.mesh.Positions = append(g.mesh.Positions, st.positions[key.v])
			if key.vt >= 0 || len(g.mesh.UVs) > 0 {
				for len(g.mesh.UVs) < len(g.mesh.Positions)-1 {
					g.mesh.UVs = append(g.mesh.UVs, math.Vec2{})
				}
				uv := math.Vec2{}
				if key.vt >= 0 {
					uv = st.uvs[key.vt]
				}
				g.mesh.UVs = append(g.mesh.UVs, uv)
			}
			if key.vn >= 0 {
				g.hasNorm = true
			}
			g.mesh.Normals = append(g.mesh.Normals, normalOrZero(st.normals, key.vn))
		}
		idx[i] = vi
	}
	for i := 1; i+1 < len(idx); i++ {
		g.mesh.Indices = append(g.mesh.Indices, idx[0], idx[i], idx[i+1])
	}
	return nil
}

func normalOrZero(normals []math.Vec3, i int) math.Vec3 {
	if i < 0 {
		return math.Vec3{}
	}
	return normals[i]
}

// resolveRef parses "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// indices; -1 marks an absent component.
func (st *objState) resolveRef(ref string) (objVertexKey, error) {
	parts := strings.Split(ref, "/")
	key := objVertexKey{v: -1, vt: -1, vn: -1}

	var err error
	if key.v, err = objIndex(parts[0], len(st.positions)); err != nil {
		return key, err
	}
	if key.v < 0 {
		return key, fmt.Errorf("%w: %q has no vertex", ErrInvalidOBJIndex, ref)
	}
	if len(parts) > 1 && parts[1] != "" {
		if key.vt, err = objIndex(parts[1], len(st.uvs)); err != nil {
			return key, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if key.vn, err = objIndex(parts[2], len(st.normals)); err != nil {
			return key, err
		}
	}
	return key, nil
}

// objIndex converts a 1-based (or negative, relative) index.
func objIndex(s string, n int) (int, error) {
	if s == "" {
		return -1, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOBJIndex, s)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	}
	return 0, fmt.Errorf("%w: %d (have %d)", ErrInvalidOBJIndex, i, n)
}

// loadMTL reads a material library into materials. Texture failures are
// warnings.
func loadMTL(ctx context.Context, env *Env, lib string, materials map[string]*scene.Material) error {
	data, err := env.Fetch(ctx, lib)
	if err != nil {
		return err
	}

	var cur *scene.Material
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "newmtl":
			cur = scene.DefaultMaterial()
			cur.Name = strings.TrimSpace(line[len(fields[0]):])
			materials[cur.Name] = cur
		case "kd":
			if cur == nil {
				continue
			}
			if v, err := parseFloats(fields[1:], 3); err == nil {
				cur.BaseColor.R, cur.BaseColor.G, cur.BaseColor.B = v[0], v[1], v[2]
			}
		case "d":
			if cur == nil {
				continue
			}
			if v, err := parseFloats(fields[len(fields)-1:], 1); err == nil {
				cur.BaseColor.A = v[0]
			}
		case "tr":
			if cur == nil {
				continue
			}
			if v, err := parseFloats(fields[len(fields)-1:], 1); err == nil {
				cur.BaseColor.A = 1 - v[0]
			}
		case "map_kd":
			if cur == nil || len(fields) < 2 {
				continue
			}
			ref := mapFileName(fields[1:])
			if ref == "" {
				continue
			}
			img, err := env.Texture(ctx, ref)
			if err != nil {
				env.Warn("texture unavailable", zap.String("map_Kd", ref), zap.Error(err))
				continue
			}
			cur.Texture = img
			cur.TextureRef = ref
		}
	}
	return sc.Err()
}

// mapFileName skips the options of a texture map statement and returns the
// file name, which may contain spaces.
func mapFileName(args []string) string {
	i := 0
	for i < len(args) && strings.HasPrefix(args[i], "-") {
		opt := strings.ToLower(args[i])
		i++
		switch opt {
		case "-o", "-s", "-t":
			// One to three numbers.
			for n := 0; n < 3 && i < len(args); n++ {
				if _, err := strconv.ParseFloat(args[i], 64); err != nil {
					break
				}
				i++
			}
		case "-mm":
			i += 2
		default:
			// -blendu, -blendv, -bm, -boost, -cc, -clamp, -imfchan, -texres, -type
			i++
		}
	}
	if i >= len(args) {
		return ""
	}
	return strings.Join(args[i:], " ")
}
