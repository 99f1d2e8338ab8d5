package formats

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/engine/texture"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// glTF format errors.
var (
	ErrInvalidGLBMagic     = errors.New("invalid GLB magic: expected 'glTF'")
	ErrUnsupportedGLTF     = errors.New("unsupported glTF version")
	ErrTruncatedGLB        = errors.New("truncated GLB data")
	ErrInvalidAccessor     = errors.New("invalid glTF accessor")
	ErrMissingBinaryBuffer = errors.New("GLB binary chunk missing")
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbChunkBIN  = 0x004E4942 // "BIN\0"
)

// Primitive modes.
const (
	gltfModeTriangles     = 4
	gltfModeTriangleStrip = 5
	gltfModeTriangleFan   = 6
)

type gltfDocument struct {
	Asset struct {
		Version   string `json:"version"`
		Generator string `json:"generator"`
	} `json:"asset"`
	Scene       *int             `json:"scene"`
	Scenes      []gltfScene      `json:"scenes"`
	Nodes       []gltfNode       `json:"nodes"`
	Meshes      []gltfMesh       `json:"meshes"`
	Accessors   []gltfAccessor   `json:"accessors"`
	BufferViews []gltfBufferView `json:"bufferViews"`
	Buffers     []gltfBuffer     `json:"buffers"`
	Materials   []gltfMaterial   `json:"materials"`
	Textures    []gltfTexture    `json:"textures"`
	Images      []gltfImage      `json:"images"`
}

type gltfScene struct {
	Name  string `json:"name"`
	Nodes []int  `json:"nodes"`
}

type gltfNode struct {
	Name        string    `json:"name"`
	Children    []int     `json:"children"`
	Mesh        *int      `json:"mesh"`
	Matrix      []float64 `json:"matrix"`
	Translation []float64 `json:"translation"`
	Rotation    []float64 `json:"rotation"`
	Scale       []float64 `json:"scale"`
}

type gltfMesh struct {
	Name       string          `json:"name"`
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Material   *int           `json:"material"`
	Mode       *int           `json:"mode"`
}

type gltfAccessor struct {
	BufferView    *int   `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Normalized    bool   `json:"normalized"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
}

type gltfBufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

type gltfBuffer struct {
	URI        string `json:"uri"`
	ByteLength int    `json:"byteLength"`
}

type gltfMaterial struct {
	Name                 string `json:"name"`
	DoubleSided          bool   `json:"doubleSided"`
	PbrMetallicRoughness *struct {
		BaseColorFactor  []float64       `json:"baseColorFactor"`
		BaseColorTexture *gltfTextureRef `json:"baseColorTexture"`
		MetallicFactor   *float64        `json:"metallicFactor"`
		RoughnessFactor  *float64        `json:"roughnessFactor"`
	} `json:"pbrMetallicRoughness"`
}

type gltfTextureRef struct {
	Index int `json:"index"`
}

type gltfTexture struct {
	Source *int `json:"source"`
}

type gltfImage struct {
	Name       string `json:"name"`
	URI        string `json:"uri"`
	BufferView *int   `json:"bufferView"`
	MimeType   string `json:"mimeType"`
}

// GLTFParser reads .gltf JSON and .glb binary containers.
type GLTFParser struct{}

type gltfBuild struct {
	ctx       context.Context
	env       *Env
	doc       *gltfDocument
	buffers   [][]byte
	materials map[int]*scene.Material
	visiting  map[int]bool
}

// Parse implements Parser.
func (GLTFParser) Parse(ctx context.Context, data []byte, env *Env) (*scene.Node, error) {
	jsonChunk, binChunk, err := splitGLTF(data)
	if err != nil {
		return nil, err
	}

	var doc gltfDocument
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, fmt.Errorf("decoding glTF JSON: %w", err)
	}
	if doc.Asset.Version != "" && doc.Asset.Version[0] != '2' {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGLTF, doc.Asset.Version)
	}

	b := &gltfBuild{
		ctx:       ctx,
		env:       env,
		doc:       &doc,
		materials: make(map[int]*scene.Material),
		visiting:  make(map[int]bool),
	}
	if err := b.loadBuffers(binChunk); err != nil {
		return nil, err
	}

	root := scene.NewNode("")
	for _, idx := range b.rootNodes() {
		child, err := b.buildNode(idx)
		if err != nil {
			return nil, err
		}
		if child != nil {
			root.AddChild(child)
		}
	}
	if len(doc.Scenes) > 0 {
		root.Name = doc.Scenes[b.sceneIndex()].Name
	}
	return root, nil
}

// splitGLTF returns the JSON chunk and, for GLB, the BIN chunk.
func splitGLTF(data []byte) (jsonChunk, binChunk []byte, err error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil, nil
	}
	if len(data) < 12 {
		return nil, nil, ErrTruncatedGLB
	}
	if binary.LittleEndian.Uint32(data[0:4]) != glbMagic {
		return nil, nil, ErrInvalidGLBMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != 2 {
		return nil, nil, fmt.Errorf("%w: GLB container %d", ErrUnsupportedGLTF, v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) {
		return nil, nil, fmt.Errorf("%w: header length %d, have %d", ErrTruncatedGLB, total, len(data))
	}

	offset := 12
	for offset+8 <= total {
		length := int(binary.LittleEndian.Uint32(data[offset:]))
		kind := binary.LittleEndian.Uint32(data[offset+4:])
		start := offset + 8
		end := start + length
		if length < 0 || end > total {
			return nil, nil, fmt.Errorf("%w: chunk at %d", ErrTruncatedGLB, offset)
		}
		switch kind {
		case glbChunkJSON:
			if jsonChunk == nil {
				jsonChunk = data[start:end]
			}
		case glbChunkBIN:
			if binChunk == nil {
				binChunk = data[start:end]
			}
		}
		offset = end + (4-length%4)%4
	}
	if jsonChunk == nil {
		return nil, nil, fmt.Errorf("%w: no JSON chunk", ErrTruncatedGLB)
	}
	return jsonChunk, binChunk, nil
}

func (b *gltfBuild) loadBuffers(binChunk []byte) error {
	b.buffers = make([][]byte, len(b.doc.Buffers))
	for i, buf := range b.doc.Buffers {
		if buf.URI == "" {
			if i != 0 || binChunk == nil {
				return fmt.Errorf("%w: buffer %d", ErrMissingBinaryBuffer, i)
			}
			b.buffers[i] = binChunk
			continue
		}
		data, err := b.env.Fetch(b.ctx, buf.URI)
		if err != nil {
			return err
		}
		if len(data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: have %d bytes, want %d", i, len(data), buf.ByteLength)
		}
		b.buffers[i] = data
	}
	return nil
}

func (b *gltfBuild) sceneIndex() int {
	if b.doc.Scene != nil && *b.doc.Scene >= 0 && *b.doc.Scene < len(b.doc.Scenes) {
		return *b.doc.Scene
	}
	return 0
}

// rootNodes returns the default scene's nodes, or every parentless node
// when the document declares no scenes.
func (b *gltfBuild) rootNodes() []int {
	if len(b.doc.Scenes) > 0 {
		return b.doc.Scenes[b.sceneIndex()].Nodes
	}
	isChild := make(map[int]bool)
	for _, n := range b.doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i := range b.doc.Nodes {
		if !isChild[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func (b *gltfBuild) buildNode(idx int) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("node %d: cyclic hierarchy", idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	gn := b.doc.Nodes[idx]
	node := scene.NewNode(gn.Name)
	if node.Name == "" {
		node.Name = fmt.Sprintf("node_%d", idx)
	}
	applyGLTFTransform(node, gn)

	if gn.Mesh != nil {
		if err := b.attachMesh(node, *gn.Mesh); err != nil {
			return nil, err
		}
	}
	for _, c := range gn.Children {
		child, err := b.buildNode(c)
		if err != nil {
			return nil, err
		}
		node.AddChild(child)
	}
	return node, nil
}

func applyGLTFTransform(node *scene.Node, gn gltfNode) {
	if len(gn.Matrix) == 16 {
		var m math.Mat4
		copy(m[:], gn.Matrix)
		node.Matrix = &m
		return
	}
	if len(gn.Translation) == 3 {
		node.Translation = math.Vec3{X: gn.Translation[0], Y: gn.Translation[1], Z: gn.Translation[2]}
	}
	if len(gn.Rotation) == 4 {
		node.Rotation = math.Quat{X: gn.Rotation[0], Y: gn.Rotation[1], Z: gn.Rotation[2], W: gn.Rotation[3]}
	}
	if len(gn.Scale) == 3 {
		node.Scale = math.Vec3{X: gn.Scale[0], Y: gn.Scale[1], Z: gn.Scale[2]}
	}
}

// attachMesh puts a single primitive directly on node; multiple primitives
// become child nodes so each can be selected and recolored on its own.
func (b *gltfBuild) attachMesh(node *scene.Node, meshIdx int) error {
	if meshIdx < 0 || meshIdx >= len(b.doc.Meshes) {
		return fmt.Errorf("mesh index %d out of range", meshIdx)
	}
	gm := b.doc.Meshes[meshIdx]

	var built []*scene.Node
	for pi, prim := range gm.Primitives {
		mesh, err := b.buildPrimitive(prim)
		if err != nil {
			return fmt.Errorf("mesh %d primitive %d: %w", meshIdx, pi, err)
		}
		if mesh == nil {
			continue
		}
		name := gm.Name
		if name == "" {
			name = fmt.Sprintf("mesh_%d", meshIdx)
		}
		if len(gm.Primitives) > 1 {
			name = fmt.Sprintf("%s_%d", name, pi)
		}
		n := scene.NewNode(name)
		n.Mesh = mesh
		n.Material = b.material(prim.Material)
		built = append(built, n)
	}

	if len(built) == 1 {
		node.Mesh, node.Material = built[0].Mesh, built[0].Material
		return nil
	}
	for _, n := range built {
		node.AddChild(n)
	}
	return nil
}

func (b *gltfBuild) buildPrimitive(prim gltfPrimitive) (*scene.Mesh, error) {
	mode := gltfModeTriangles
	if prim.Mode != nil {
		mode = *prim.Mode
	}
	if mode != gltfModeTriangles && mode != gltfModeTriangleStrip && mode != gltfModeTriangleFan {
		b.env.Warn("skipping non-triangle primitive", zap.Int("mode", mode))
		return nil, nil
	}

	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return nil, nil
	}
	pos, err := b.readAccessor(posIdx, 3)
	if err != nil {
		return nil, fmt.Errorf("POSITION: %w", err)
	}

	mesh := &scene.Mesh{Positions: make([]math.Vec3, len(pos)/3)}
	for i := range mesh.Positions {
		mesh.Positions[i] = math.Vec3{X: pos[i*3], Y: pos[i*3+1], Z: pos[i*3+2]}
	}

	if idx, ok := prim.Attributes["NORMAL"]; ok {
		n, err := b.readAccessor(idx, 3)
		if err != nil {
			return nil, fmt.Errorf("NORMAL: %w", err)
		}
		if len(n) == len(pos) {
			mesh.Normals = make([]math.Vec3, len(n)/3)
			for i := range mesh.Normals {
				mesh.Normals[i] = math.Vec3{X: n[i*3], Y: n[i*3+1], Z: n[i*3+2]}
			}
		}
	}
	if idx, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uv, err := b.readAccessor(idx, 2)
		if err != nil {
			return nil, fmt.Errorf("TEXCOORD_0: %w", err)
		}
		if len(uv)/2 == len(mesh.Positions) {
			mesh.UVs = make([]math.Vec2, len(uv)/2)
			for i := range mesh.UVs {
				mesh.UVs[i] = math.Vec2{X: uv[i*2], Y: uv[i*2+1]}
			}
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		raw, err := b.readAccessor(*prim.Indices, 1)
		if err != nil {
			return nil, fmt.Errorf("indices: %w", err)
		}
		indices = make([]uint32, len(raw))
		for i, v := range raw {
			indices[i] = uint32(v)
		}
	} else {
		indices = make([]uint32, len(mesh.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	mesh.Indices = triangulate(indices, mode)

	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	if mesh.Normals == nil {
		mesh.ComputeNormals()
	}
	return mesh, nil
}

// triangulate converts strips and fans to a triangle list.
func triangulate(idx []uint32, mode int) []uint32 {
	switch mode {
	case gltfModeTriangleStrip:
		var out []uint32
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				out = append(out, idx[i], idx[i+1], idx[i+2])
			} else {
				out = append(out, idx[i+1], idx[i], idx[i+2])
			}
		}
		return out
	case gltfModeTriangleFan:
		var out []uint32
		for i := 1; i+1 < len(idx); i++ {
			out = append(out, idx[0], idx[i], idx[i+1])
		}
		return out
	}
	return idx[:len(idx)-len(idx)%3]
}

func componentSize(componentType int) int {
	switch componentType {
	case 5120, 5121:
		return 1
	case 5122, 5123:
		return 2
	case 5125, 5126:
		return 4
	}
	return 0
}

func typeComponents(t string) int {
	switch t {
	case "SCALAR":
		return 1
	case "VEC2":
		return 2
	case "VEC3":
		return 3
	case "VEC4", "MAT2":
		return 4
	case "MAT3":
		return 9
	case "MAT4":
		return 16
	}
	return 0
}

// maxAccessorCount bounds accessors that have no buffer view to size them.
const maxAccessorCount = 1 << 24

// readAccessor returns count*want values, dropping extra components.
func (b *gltfBuild) readAccessor(idx, want int) ([]float64, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("%w: index %d", ErrInvalidAccessor, idx)
	}
	acc := b.doc.Accessors[idx]
	n := typeComponents(acc.Type)
	size := componentSize(acc.ComponentType)
	if n == 0 || size == 0 || n < want {
		return nil, fmt.Errorf("%w: %d type %s component %d", ErrInvalidAccessor, idx, acc.Type, acc.ComponentType)
	}
	if acc.Count < 0 || acc.ByteOffset < 0 {
		return nil, fmt.Errorf("%w: %d has count %d offset %d", ErrInvalidAccessor, idx, acc.Count, acc.ByteOffset)
	}
	if acc.BufferView == nil {
		// No view means all zeros; sparse data is not applied.
		if acc.Count > maxAccessorCount {
			return nil, fmt.Errorf("%w: %d count %d without buffer view", ErrInvalidAccessor, idx, acc.Count)
		}
		return make([]float64, acc.Count*want), nil
	}

	bvIdx := *acc.BufferView
	view, err := b.bufferViewBytes(bvIdx)
	if err != nil {
		return nil, err
	}

	elem := n * size
	stride := b.doc.BufferViews[bvIdx].ByteStride
	if stride == 0 {
		stride = elem
	}
	if stride < elem {
		return nil, fmt.Errorf("%w: buffer view %d stride %d below element size %d", ErrInvalidAccessor, bvIdx, stride, elem)
	}
	// Every element occupies at least one byte of the view, which also
	// keeps the offset arithmetic below from overflowing.
	if acc.Count > len(view) || acc.ByteOffset > len(view) || (acc.Count > 1 && stride > len(view)) {
		return nil, fmt.Errorf("%w: %d reads past buffer view", ErrInvalidAccessor, idx)
	}
	if acc.Count > 0 && acc.ByteOffset+(acc.Count-1)*stride+elem > len(view) {
		return nil, fmt.Errorf("%w: %d reads past buffer view", ErrInvalidAccessor, idx)
	}

	out := make([]float64, acc.Count*want)
	for i := 0; i < acc.Count; i++ {
		base := acc.ByteOffset + i*stride
		for c := 0; c < want; c++ {
			out[i*want+c] = readComponent(view[base+c*size:], acc.ComponentType, acc.Normalized)
		}
	}
	return out, nil
}

func readComponent(b []byte, componentType int, normalized bool) float64 {
	switch componentType {
	case 5120:
		v := float64(int8(b[0]))
		if normalized {
			return gomath.Max(v/127, -1)
		}
		return v
	case 5121:
		v := float64(b[0])
		if normalized {
			return v / 255
		}
		return v
	case 5122:
		v := float64(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return gomath.Max(v/32767, -1)
		}
		return v
	case 5123:
		v := float64(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535
		}
		return v
	case 5125:
		return float64(binary.LittleEndian.Uint32(b))
	case 5126:
		return float64(gomath.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func (b *gltfBuild) material(idx *int) *scene.Material {
	if idx == nil || *idx < 0 || *idx >= len(b.doc.Materials) {
		return scene.DefaultMaterial()
	}
	if m, ok := b.materials[*idx]; ok {
		return m
	}

	gm := b.doc.Materials[*idx]
	m := scene.DefaultMaterial()
	m.Name = gm.Name
	m.DoubleSided = gm.DoubleSided
	if pbr := gm.PbrMetallicRoughness; pbr != nil {
		if len(pbr.BaseColorFactor) == 4 {
			f := pbr.BaseColorFactor
			m.BaseColor = scene.Color{R: f[0], G: f[1], B: f[2], A: f[3]}
		}
		m.Metallic = 1
		if pbr.MetallicFactor != nil {
			m.Metallic = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			m.Roughness = *pbr.RoughnessFactor
		}
		if pbr.BaseColorTexture != nil {
			b.applyTexture(m, pbr.BaseColorTexture.Index)
		}
	}
	b.materials[*idx] = m
	return m
}

// applyTexture decodes the image behind a texture index. Failures leave the
// material untextured and are reported as warnings.
func (b *gltfBuild) applyTexture(m *scene.Material, texIdx int) {
	if texIdx < 0 || texIdx >= len(b.doc.Textures) || b.doc.Textures[texIdx].Source == nil {
		return
	}
	imgIdx := *b.doc.Textures[texIdx].Source
	if imgIdx < 0 || imgIdx >= len(b.doc.Images) {
		return
	}
	gi := b.doc.Images[imgIdx]

	ref := gi.URI
	if gi.BufferView != nil {
		ref = gi.Name
		if ref == "" {
			ref = fmt.Sprintf("image_%d", imgIdx)
		}
	} else if gi.URI == "" {
		return
	}

	key := fmt.Sprintf("#image/%d", imgIdx)
	img, err := b.env.textureCache().GetOrLoad(key, func() (image.Image, error) {
		var (
			data []byte
			err  error
		)
		if gi.BufferView != nil {
			data, err = b.bufferViewBytes(*gi.BufferView)
		} else {
			data, err = b.env.Fetch(b.ctx, gi.URI)
		}
		if err != nil {
			return nil, err
		}
		img, err := texture.Decode(ref, data)
		if err != nil {
			return nil, &FormatError{Format: b.env.Format, Cause: CauseContent, Ref: ref, Err: err}
		}
		return img, nil
	})
	if err != nil {
		b.env.Warn("texture unavailable", zap.String("image", ref), zap.Error(err))
		return
	}
	m.Texture = img
	m.TextureRef = ref
}

func (b *gltfBuild) bufferViewBytes(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(b.doc.BufferViews) {
		return nil, fmt.Errorf("%w: buffer view %d out of range", ErrInvalidAccessor, idx)
	}
	bv := b.doc.BufferViews[idx]
	if bv.Buffer < 0 || bv.Buffer >= len(b.buffers) {
		return nil, fmt.Errorf("%w: buffer %d out of range", ErrInvalidAccessor, bv.Buffer)
	}
	if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteStride < 0 {
		return nil, fmt.Errorf("%w: buffer view %d has negative offset, length or stride", ErrInvalidAccessor, idx)
	}
	buf := b.buffers[bv.Buffer]
	if bv.ByteOffset > len(buf) || bv.ByteLength > len(buf)-bv.ByteOffset {
		return nil, fmt.Errorf("%w: buffer view %d exceeds buffer", ErrInvalidAccessor, idx)
	}
	return buf[bv.ByteOffset : bv.ByteOffset+bv.ByteLength], nil
}
