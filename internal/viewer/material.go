package viewer

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/engine/texture"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Selection returns the selected node, or nil.
func (s *Session) Selection() *scene.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectAt applies click selection at (x, y) in CSS pixels regardless of
// the active tool, and returns the resulting selection.
func (s *Session) SelectAt(x, y float64) *scene.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pick(x, y)
	return s.selected
}

// ClearSelection deselects any node.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectNode(nil)
}

// editable returns the selected node's material, cloning it on the first
// edit so nodes sharing the original keep their look.
func (s *Session) editable() (*scene.Material, error) {
	n := s.selected
	if n == nil {
		return nil, ErrNoSelection
	}
	if !s.owned[n] {
		if n.Material == nil {
			n.Material = scene.DefaultMaterial()
		} else {
			n.Material = n.Material.Clone()
		}
		s.owned[n] = true
	}
	return n.Material, nil
}

// ApplyColor sets the base color of the selected node. Opacity is kept.
func (s *Session) ApplyColor(hex string) error {
	c, err := scene.ParseHexColor(hex)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mat, err := s.editable()
	if err != nil {
		return err
	}
	mat.BaseColor = scene.Color{R: c.R, G: c.G, B: c.B, A: mat.BaseColor.A}
	s.log.Debug("applied color", zap.String("node", s.selected.Path()), zap.String("color", c.Hex()))
	return nil
}

// ApplyTexture fetches ref through the installed resource map, decodes it
// and sets it as the selected node's base color map. The fetch runs without
// the session lock; if the selection changes meanwhile nothing is applied.
func (s *Session) ApplyTexture(ctx context.Context, ref string) error {
	s.mu.Lock()
	target := s.selected
	m := s.resources
	s.mu.Unlock()
	if target == nil || m == nil {
		return ErrNoSelection
	}

	data, err := m.ReadAll(ctx, ref)
	if err != nil {
		return fmt.Errorf("texture %s: %w", ref, err)
	}
	img, err := texture.Decode(ref, data)
	if err != nil {
		return fmt.Errorf("texture %s: %w", ref, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != target {
		return ErrSelectionChanged
	}
	return s.setTexture(img, ref)
}

// ApplyTextureImage sets an already decoded image as the base color map.
func (s *Session) ApplyTextureImage(img image.Image, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setTexture(img, name)
}

func (s *Session) setTexture(img image.Image, ref string) error {
	mat, err := s.editable()
	if err != nil {
		return err
	}
	mat.Texture = img
	mat.TextureRef = ref
	b := img.Bounds()
	s.log.Debug("applied texture",
		zap.String("node", s.selected.Path()),
		zap.String("ref", ref),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()))
	return nil
}

// ClearTexture removes the selected node's base color map.
func (s *Session) ClearTexture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mat, err := s.editable()
	if err != nil {
		return err
	}
	mat.Texture = nil
	mat.TextureRef = ""
	return nil
}
