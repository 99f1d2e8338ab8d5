package viewer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/annotation"
	"github.com/Faultbox/modelboard/internal/engine/camera"
	"github.com/Faultbox/modelboard/internal/engine/input"
	"github.com/Faultbox/modelboard/internal/engine/picking"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Camera returns the current camera state.
func (s *Session) Camera() camera.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.State()
}

// Home returns the home snapshot captured by the last fit.
func (s *Session) Home() (camera.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Home()
}

// Phase returns the camera lifecycle phase.
func (s *Session) Phase() camera.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Phase()
}

// ViewProjection returns the current projection * view matrix.
func (s *Session) ViewProjection() math.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.ViewProjection()
}

// Pan moves the view by a screen offset in CSS pixels. Works while locked.
func (s *Session) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam.Pan(dx, dy)
}

// Zoom divides the orbit distance by factor. Works while locked.
func (s *Session) Zoom(factor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Zoom(factor)
}

// Reset restores the home view.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Reset()
}

// SetLocked disables or enables pointer orbit.
func (s *Session) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam.SetLocked(locked)
}

// Locked reports whether pointer orbit is disabled.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Locked()
}

// Tick advances damped camera motion by dt seconds and reports whether the
// view changed. It runs while locked too.
func (s *Session) Tick(dt float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cam.Update(dt)
}

// Queue buffers an event for the next Step. It is safe to call from a UI
// goroutine while another goroutine drives frames.
func (s *Session) Queue(e input.Event) {
	s.events.Push(e)
}

// Step dispatches queued events in arrival order and then advances the
// camera by dt. It reports whether the camera is still moving.
func (s *Session) Step(dt float64) bool {
	for _, e := range s.events.Drain() {
		s.Dispatch(e)
	}
	return s.Tick(dt)
}

// SetTool switches the annotation tool. ToolNone hands the pointer back to
// 3D navigation and selection.
func (s *Session) SetTool(t annotation.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.SetTool(t)
	// Drop any half-finished 3D gesture.
	s.tracker = input.NewTracker(s.tolerance)
}

// Tool returns the active annotation tool.
func (s *Session) Tool() annotation.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay.Tool()
}

// PointerDown starts a gesture at (x, y) in CSS pixels.
func (s *Session) PointerDown(x, y float64, b input.Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay.Accepts() {
		s.overlay.PointerDown(x, y)
		return
	}
	s.tracker.Down(x, y, b)
}

// PointerMove continues a gesture. With no tool active, a primary drag
// orbits and a secondary or middle drag pans.
func (s *Session) PointerMove(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay.Accepts() {
		s.overlay.PointerMove(x, y)
		return
	}
	dx, dy, ok := s.tracker.Move(x, y)
	if !ok {
		return
	}
	switch s.tracker.Button() {
	case input.ButtonPrimary:
		s.cam.HandleDrag(dx, dy)
	case input.ButtonSecondary, input.ButtonMiddle:
		if !s.cam.Locked() {
			s.cam.Pan(dx, dy)
		}
	}
}

// PointerUp ends a gesture. A primary click within the click tolerance
// picks the node under the pointer.
func (s *Session) PointerUp(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay.Accepts() {
		s.overlay.PointerUp(x, y)
		return
	}
	b := s.tracker.Button()
	if s.tracker.Up(x, y) && b == input.ButtonPrimary {
		s.pick(x, y)
	}
}

// Wheel zooms by wheel steps; positive steps move away. Ignored while a
// drawing tool is active or the camera is locked.
func (s *Session) Wheel(steps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlay.Accepts() {
		return
	}
	s.cam.HandleWheel(steps)
}

// Dispatch routes a buffered input event.
func (s *Session) Dispatch(e input.Event) {
	switch e.Type {
	case input.EventPointerDown:
		s.PointerDown(e.X, e.Y, e.Button)
	case input.EventPointerMove:
		s.PointerMove(e.X, e.Y)
	case input.EventPointerUp:
		s.PointerUp(e.X, e.Y)
	case input.EventWheel:
		s.Wheel(e.WheelDelta)
	case input.EventResize:
		s.Resize(e.Width, e.Height, e.DPR)
	}
}

// pick applies click selection at (x, y): a miss clears, a hit on the
// selected node toggles it off, any other hit replaces the selection.
func (s *Session) pick(x, y float64) {
	if s.root == nil {
		s.selectNode(nil)
		return
	}
	hit, ok := picking.Pick(s.root, s.cam.Ray(x, y))
	switch {
	case !ok:
		s.selectNode(nil)
	case hit.Node == s.selected:
		s.selectNode(nil)
	default:
		s.log.Debug("picked", zap.String("node", hit.Node.Path()), zap.Float64("distance", hit.Distance))
		s.selectNode(hit.Node)
	}
}

func (s *Session) selectNode(n *scene.Node) {
	if s.selected != nil {
		s.selected.Highlighted = false
	}
	s.selected = n
	if n != nil {
		n.Highlighted = true
	}
}
