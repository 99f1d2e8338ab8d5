package debug

import (
	"image"
	"image/color"
	"image/png"
	gomath "math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

func TestWritePNGCreatesDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))

	if err := WritePNG(path, img); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bounds().Dx() != 4 || got.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v", got.Bounds())
	}
}

func TestGenerateFilename(t *testing.T) {
	sc := NewScreenshotCapture("shots", "")
	sc.now = func() time.Time { return time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC) }

	got := sc.GenerateFilename()
	want := filepath.Join("shots", "snapshot_2024-05-01_13-04-05.png")
	if got != want {
		t.Errorf("GenerateFilename = %q, want %q", got, want)
	}

	sc.SetOutputDir(t.TempDir())
	path, err := sc.CaptureFromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "13-04-05.png") {
		t.Errorf("path = %q", path)
	}
	second, err := sc.CaptureFromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(second, "13-04-05_2.png") {
		t.Errorf("second capture in the same second = %q", second)
	}
}

func TestBoundsWireframe(t *testing.T) {
	if BoundsWireframe(scene.Bounds{}) != nil {
		t.Error("empty bounds should have no edges")
	}
	b := scene.NewBounds(math.Vec3{}, math.Vec3{X: 1, Y: 2, Z: 3})
	lines := BoundsWireframe(b)
	if len(lines) != 12 {
		t.Fatalf("edges = %d, want 12", len(lines))
	}
	// Every edge runs along exactly one axis.
	for i, l := range lines {
		d := l[1].Sub(l[0])
		axes := 0
		for _, c := range []float64{d.X, d.Y, d.Z} {
			if c != 0 {
				axes++
			}
		}
		if axes != 1 {
			t.Errorf("edge %d is not axis aligned: %+v", i, d)
		}
	}
}

func TestDrawBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	view := math.LookAt(math.Vec3{Z: 5}, math.Vec3{}, math.Vec3{Y: 1})
	proj := math.Perspective(gomath.Pi/3, 1, 0.1, 100)
	b := scene.NewBounds(math.Vec3{X: -1, Y: -1, Z: -1}, math.Vec3{X: 1, Y: 1, Z: 1})

	out := DrawBounds(img, b, proj.Mul(view), color.Black, 1)

	changed := false
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y && !changed; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if r, _, _, _ := out.At(x, y).RGBA(); r < 0xffff {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("wireframe drew nothing")
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 0xffff {
		t.Error("source image was modified")
	}
}
