package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	gomath "math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Faultbox/modelboard/internal/annotation"
	"github.com/Faultbox/modelboard/internal/engine/camera"
	"github.com/Faultbox/modelboard/internal/engine/input"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/resource"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// cubeSTL returns an ASCII STL cube of half-size h centered at the origin.
func cubeSTL(h float64) []byte {
	quads := [][4][3]float64{
		{{h, -h, -h}, {h, h, -h}, {h, h, h}, {h, -h, h}},
		{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}},
		{{-h, h, -h}, {-h, h, h}, {h, h, h}, {h, h, -h}},
		{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}},
		{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}},
		{{-h, -h, -h}, {-h, h, -h}, {h, h, -h}, {h, -h, -h}},
	}
	var b strings.Builder
	b.WriteString("solid cube\n")
	for _, q := range quads {
		b.WriteString("facet normal 0 0 0\nouter loop\n")
		for _, v := range q {
			fmt.Fprintf(&b, "vertex %g %g %g\n", v[0], v[1], v[2])
		}
		b.WriteString("endloop\nendfacet\n")
	}
	b.WriteString("endsolid cube\n")
	return []byte(b.String())
}

// twoPanels is two unit-high quads in the z=0 plane with a gap at x=0.
// Both groups share the default material.
const twoPanels = `
v -1 -0.5 0
v -0.1 -0.5 0
v -0.1 0.5 0
v -1 0.5 0
v 0.1 -0.5 0
v 1 -0.5 0
v 1 0.5 0
v 0.1 0.5 0
g left
f 1 2 3 4
g right
f 5 6 7 8
`

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newSession(t *testing.T) (*Session, *resource.Resolver) {
	t.Helper()
	res := resource.NewResolver(resource.Options{})
	s := New(Options{Width: 200, Height: 150, DPR: 1, Resolver: res})
	t.Cleanup(func() { _ = s.Close() })
	return s, res
}

func loadPanels(t *testing.T, s *Session, extra ...resource.FileBlob) {
	t.Helper()
	files := append([]resource.FileBlob{{Name: "panels.obj", Data: []byte(twoPanels)}}, extra...)
	if _, err := s.Load(context.Background(), resource.FileSet{Files: files}); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

// screenOf projects a world point to CSS pixels with the session camera.
func screenOf(s *Session, p math.Vec3) (x, y float64) {
	st := s.Camera()
	w, h, _ := s.Size()
	vp := math.Perspective(st.FovY*gomath.Pi/180, float64(w)/float64(h), st.Near, st.Far).
		Mul(math.LookAt(st.Position, st.Target, math.Vec3{Y: 1}))
	ndc := vp.TransformPoint(p)
	return (ndc.X + 1) / 2 * float64(w), (1 - ndc.Y) / 2 * float64(h)
}

func click(s *Session, x, y float64) {
	s.PointerDown(x, y, input.ButtonPrimary)
	s.PointerUp(x, y)
}

func child(t *testing.T, s *Session, name string) *scene.Node {
	t.Helper()
	for _, n := range s.Root().MeshNodes() {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("node %q not found", name)
	return nil
}

func TestLoadFitsAndReleasesPrevious(t *testing.T) {
	s, res := newSession(t)

	if s.Phase() != camera.PhaseEmpty {
		t.Fatalf("initial phase = %v", s.Phase())
	}
	first, err := s.Load(context.Background(), resource.FileBlob{Name: "cube.stl", Data: cubeSTL(0.5)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first.Format != resource.FormatSTL || first.Fit.Degenerate || first.Fit.Rescaled {
		t.Errorf("unexpected result %+v", first)
	}
	if s.Phase() != camera.PhaseFitted {
		t.Errorf("phase = %v, want fitted", s.Phase())
	}
	if _, ok := s.Home(); !ok {
		t.Error("no home snapshot after load")
	}
	if res.Blobs().Len() != 1 {
		t.Errorf("blobs = %d, want 1", res.Blobs().Len())
	}

	second, err := s.Load(context.Background(), resource.FileSet{Files: []resource.FileBlob{
		{Name: "panels.obj", Data: []byte(twoPanels)},
		{Name: "tex.png", Data: pngBytes(t)},
	}})
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if second.Main != "panels.obj" || len(second.Files) != 2 {
		t.Errorf("second result = %+v", second)
	}
	if res.Blobs().Len() != 2 {
		t.Errorf("blobs after swap = %d, want 2 (previous model released)", res.Blobs().Len())
	}
}

func TestFailedLoadKeepsScene(t *testing.T) {
	s, res := newSession(t)
	loadPanels(t, s)
	root := s.Root()
	s.Pan(10, 0)
	before := s.Camera()

	_, err := s.Load(context.Background(), resource.FileBlob{Name: "broken.stl", Data: []byte("solid x\nfacet bogus\n")})
	if err == nil {
		t.Fatal("expected parse error")
	}
	if s.Root() != root {
		t.Error("failed load replaced the scene")
	}
	if s.Camera() != before {
		t.Error("failed load moved the camera")
	}
	if s.Phase() != camera.PhaseFitted {
		t.Errorf("phase = %v, want fitted", s.Phase())
	}
	if res.Blobs().Len() != 1 {
		t.Errorf("blobs = %d, want 1", res.Blobs().Len())
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.stl" {
			close(started)
			<-unblock
		}
		_, _ = w.Write(cubeSTL(0.5))
	}))
	defer srv.Close()

	res := resource.NewResolver(resource.Options{Client: srv.Client()})
	s := New(Options{Width: 100, Height: 100, Resolver: res})
	defer s.Close()

	slowErr := make(chan error, 1)
	go func() {
		_, err := s.Load(context.Background(), resource.RemoteURL{URL: srv.URL + "/slow.stl"})
		slowErr <- err
	}()
	<-started

	if _, err := s.Load(context.Background(), resource.RemoteURL{URL: srv.URL + "/fast.stl"}); err != nil {
		t.Fatalf("fast Load: %v", err)
	}
	installed := s.Root()
	close(unblock)

	if err := <-slowErr; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("slow load error = %v, want ErrStaleLoad", err)
	}
	if s.Root() != installed {
		t.Error("stale load replaced the newer scene")
	}
	if s.Phase() != camera.PhaseFitted {
		t.Errorf("phase = %v", s.Phase())
	}
}

func TestClickSelection(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	left, right := child(t, s, "left"), child(t, s, "right")

	lx, ly := screenOf(s, math.Vec3{X: -0.55})
	rx, ry := screenOf(s, math.Vec3{X: 0.55})

	click(s, lx, ly)
	if s.Selection() != left || !left.Highlighted {
		t.Fatalf("selection = %v, want left", s.Selection())
	}

	click(s, rx, ry)
	if s.Selection() != right {
		t.Fatalf("selection = %v, want right", s.Selection())
	}
	if left.Highlighted || !right.Highlighted {
		t.Error("highlight did not move to the new selection")
	}

	click(s, rx, ry)
	if s.Selection() != nil || right.Highlighted {
		t.Error("clicking the selection again should clear it")
	}

	click(s, lx, ly)
	click(s, 1, 1)
	if s.Selection() != nil {
		t.Error("clicking empty space should clear the selection")
	}
}

func TestDragOrbitsWithoutSelecting(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	lx, ly := screenOf(s, math.Vec3{X: -0.55})
	before := s.Camera()

	s.PointerDown(lx, ly, input.ButtonPrimary)
	s.PointerMove(lx+30, ly)
	s.PointerUp(lx+30, ly)

	if s.Selection() != nil {
		t.Error("drag selected a node")
	}
	if !s.Tick(1.0 / 60) {
		t.Fatal("Tick reported no motion after a drag")
	}
	after := s.Camera()
	if after.Position == before.Position {
		t.Error("orbit did not move the camera")
	}
	if gomath.Abs(after.Distance()-before.Distance()) > 1e-9 {
		t.Errorf("orbit changed distance: %v -> %v", before.Distance(), after.Distance())
	}
}

func TestQueuedEventsApplyOnStep(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	lx, ly := screenOf(s, math.Vec3{X: -0.55})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Queue(input.Event{Type: input.EventPointerDown, X: lx, Y: ly, Button: input.ButtonPrimary})
		s.Queue(input.Event{Type: input.EventPointerUp, X: lx, Y: ly})
	}()
	<-done

	if s.Selection() != nil {
		t.Fatal("queued events applied before Step")
	}
	s.Step(1.0 / 60)
	if sel := s.Selection(); sel == nil || sel.Name != "left" {
		t.Errorf("selection after Step = %v, want left", sel)
	}
}

func TestSecondaryDragPans(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	before := s.Camera()

	s.PointerDown(100, 75, input.ButtonSecondary)
	s.PointerMove(120, 75)
	s.PointerUp(120, 75)

	after := s.Camera()
	if after.Target == before.Target {
		t.Error("secondary drag did not pan")
	}
	if s.Selection() != nil {
		t.Error("secondary click selected a node")
	}
}

func TestLockIgnoresPointerOrbit(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	s.SetLocked(true)
	before := s.Camera()

	s.PointerDown(100, 75, input.ButtonPrimary)
	s.PointerMove(150, 90)
	s.PointerUp(150, 90)
	s.Wheel(3)
	if s.Tick(1.0 / 60) {
		t.Error("Tick moved a locked camera")
	}
	if s.Camera() != before {
		t.Error("pointer input moved a locked camera")
	}

	s.Pan(5, 5)
	if err := s.Zoom(2); err != nil {
		t.Fatal(err)
	}
	if s.Camera() == before {
		t.Error("programmatic moves should work while locked")
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if s.Camera() != before {
		t.Error("Reset did not restore home")
	}
}

func TestMaterialEditClonesShared(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	left, right := child(t, s, "left"), child(t, s, "right")
	if left.Material != right.Material {
		t.Fatal("fixture should share one material")
	}
	shared := right.Material.BaseColor

	lx, ly := screenOf(s, math.Vec3{X: -0.55})
	click(s, lx, ly)
	if err := s.ApplyColor("#ff0000"); err != nil {
		t.Fatal(err)
	}

	if got := left.Material.BaseColor; got != (scene.Color{R: 1, A: 1}) {
		t.Errorf("left color = %+v", got)
	}
	if right.Material.BaseColor != shared {
		t.Error("edit leaked into the shared material")
	}
	if left.Material == right.Material {
		t.Error("material was not cloned")
	}

	if err := s.ApplyColor("not-a-color"); !errors.Is(err, scene.ErrInvalidColor) {
		t.Errorf("error = %v, want ErrInvalidColor", err)
	}
	if got := left.Material.BaseColor; got != (scene.Color{R: 1, A: 1}) {
		t.Error("invalid color changed the material")
	}
}

func TestEditsRequireSelection(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	mats := make([]scene.Material, 0, 2)
	for _, n := range s.Root().MeshNodes() {
		mats = append(mats, *n.Material)
	}

	if err := s.ApplyColor("#00ff00"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("ApplyColor error = %v", err)
	}
	if err := s.ApplyTexture(context.Background(), "tex.png"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("ApplyTexture error = %v", err)
	}
	if err := s.ClearTexture(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("ClearTexture error = %v", err)
	}
	for i, n := range s.Root().MeshNodes() {
		if n.Material.BaseColor != mats[i].BaseColor {
			t.Errorf("node %s changed without a selection", n.Name)
		}
	}
}

func TestApplyTexture(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s, resource.FileBlob{Name: "textures/tex.png", Data: pngBytes(t)})
	left := child(t, s, "left")

	lx, ly := screenOf(s, math.Vec3{X: -0.55})
	click(s, lx, ly)

	if err := s.ApplyTexture(context.Background(), "tex.png"); err != nil {
		t.Fatalf("ApplyTexture: %v", err)
	}
	if left.Material.Texture == nil || left.Material.TextureRef != "tex.png" {
		t.Fatalf("texture not applied: %+v", left.Material)
	}
	if child(t, s, "right").Material.Texture != nil {
		t.Error("texture leaked to the other node")
	}

	if err := s.ApplyTexture(context.Background(), "missing.png"); err == nil {
		t.Error("expected error for a missing texture")
	}
	if left.Material.TextureRef != "tex.png" {
		t.Error("failed fetch changed the texture")
	}

	if err := s.ClearTexture(); err != nil {
		t.Fatal(err)
	}
	if left.Material.Texture != nil || left.Material.TextureRef != "" {
		t.Error("ClearTexture left a texture")
	}
}

func TestToolRoutesPointerToOverlay(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)
	before := s.Camera()
	lx, ly := screenOf(s, math.Vec3{X: -0.55})

	s.SetTool(annotation.ToolPen)
	s.PointerDown(lx, ly, input.ButtonPrimary)
	s.PointerMove(lx+20, ly+5)
	s.PointerUp(lx+20, ly+5)
	s.Wheel(5)

	if got := len(s.Annotations()); got != 1 {
		t.Fatalf("annotations = %d, want 1", got)
	}
	if s.Selection() != nil {
		t.Error("drawing selected a node")
	}
	if s.Tick(1.0/60) || s.Camera() != before {
		t.Error("drawing moved the camera")
	}

	s.SetTool(annotation.ToolNone)
	click(s, lx, ly)
	if s.Selection() == nil {
		t.Error("tool none should route clicks to selection")
	}

	if n := s.EraseAt(lx, ly, 5); n != 1 {
		t.Errorf("EraseAt removed %d, want 1", n)
	}
}

func TestDispatch(t *testing.T) {
	s, _ := newSession(t)
	loadPanels(t, s)

	s.Dispatch(input.Event{Type: input.EventResize, Width: 320, Height: 240, DPR: 2})
	if w, h, dpr := s.Size(); w != 320 || h != 240 || dpr != 2 {
		t.Fatalf("size = %dx%d@%v", w, h, dpr)
	}
	if b := s.Frame().Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("frame = %v, want 640x480", b)
	}

	lx, ly := screenOf(s, math.Vec3{X: -0.55})
	for _, e := range []input.Event{
		{Type: input.EventPointerDown, X: lx, Y: ly},
		{Type: input.EventPointerUp, X: lx, Y: ly},
	} {
		s.Dispatch(e)
	}
	if s.Selection() == nil {
		t.Error("dispatched click did not select")
	}

	d := s.Camera().Distance()
	s.Dispatch(input.Event{Type: input.EventWheel, WheelDelta: 2})
	if s.Camera().Distance() <= d {
		t.Error("positive wheel should move away")
	}
}

func TestCaptureCompositesOverlay(t *testing.T) {
	s, _ := newSession(t)
	s.Resize(100, 80, 2)

	s.SetTool(annotation.ToolArrow)
	s.PointerDown(10, 40, input.ButtonPrimary)
	s.PointerMove(90, 40)
	s.PointerUp(90, 40)

	frame := s.Frame()
	img := s.Capture()
	if img.Bounds() != frame.Bounds() || img.Bounds().Dx() != 200 {
		t.Fatalf("capture bounds = %v, frame = %v", img.Bounds(), frame.Bounds())
	}

	onArrow := color.RGBAModel.Convert(img.At(60, 80)).(color.RGBA)
	if onArrow.R > 64 || onArrow.G > 64 || onArrow.B > 64 {
		t.Errorf("arrow pixel = %+v, want dark", onArrow)
	}
	corner := color.RGBAModel.Convert(img.At(2, 2)).(color.RGBA)
	if corner != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("background pixel = %+v, want white", corner)
	}
	if f := color.RGBAModel.Convert(frame.At(60, 80)).(color.RGBA); f.R != 255 {
		t.Error("Frame should not include annotations")
	}
}

func TestCloseRejectsLoad(t *testing.T) {
	s, res := newSession(t)
	loadPanels(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if res.Blobs().Len() != 0 {
		t.Errorf("blobs after close = %d", res.Blobs().Len())
	}
	if _, err := s.Load(context.Background(), resource.FileBlob{Name: "cube.stl", Data: cubeSTL(1)}); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
