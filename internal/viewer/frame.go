package viewer

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/Faultbox/modelboard/internal/annotation"
)

// SetStyle sets the color and sizes used for new annotations.
func (s *Session) SetStyle(st annotation.Style) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.SetStyle(st)
}

// SetPrompter installs the text tool's input source.
func (s *Session) SetPrompter(p annotation.Prompter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.SetPrompter(p)
}

// Annotations returns the overlay entities in creation order.
func (s *Session) Annotations() []annotation.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Entities()
}

// EraseAt removes annotations hit within radius of (x, y) and returns how
// many were removed.
func (s *Session) EraseAt(x, y, radius float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.EraseAt(x, y, radius)
}

// ClearAnnotations removes every annotation.
func (s *Session) ClearAnnotations() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.Clear()
}

// ExportAnnotations encodes the overlay alone as PNG.
func (s *Session) ExportAnnotations() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.ExportPNG()
}

// ExportAnnotationsDataURI encodes the overlay as a PNG data URI.
func (s *Session) ExportAnnotationsDataURI() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.ExportDataURI()
}

// Frame renders the scene from the current camera. It does no I/O.
func (s *Session) Frame() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render.Render(s.root, s.cam.ViewProjection())
}

// Capture renders the scene and composites the annotation overlay on top.
func (s *Session) Capture() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.render.Render(s.root, s.cam.ViewProjection())
	overlay := s.overlay.ExportImage()

	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)
	draw.Draw(out, b, overlay, overlay.Bounds().Min, draw.Over)
	return out
}
