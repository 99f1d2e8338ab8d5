// Package annotation implements the 2D drawing overlay placed over the 3D view:
// freehand strokes, arrows and text labels, with whole-entity erasing and
// PNG export.
package annotation

import (
	gomath "math"

	"github.com/fogleman/gg"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// Entity is one drawn annotation. The set of entity types is closed.
type Entity interface {
	// Kind returns "stroke", "arrow" or "text".
	Kind() string
	// HitTest reports whether p lies within radius of the entity geometry.
	HitTest(p math.Vec2, radius float64) bool

	draw(dc *gg.Context, r *rasterizer)
}

// Stroke is a freehand polyline.
type Stroke struct {
	Points []math.Vec2
	Color  scene.Color
	Width  float64
}

// Arrow is a segment with an arrowhead at To.
type Arrow struct {
	From  math.Vec2
	To    math.Vec2
	Color scene.Color
	Width float64
}

// TextLabel is a single line of text whose top-left corner sits at Anchor.
type TextLabel struct {
	Anchor   math.Vec2
	Text     string
	Color    scene.Color
	FontSize float64
}

func (*Stroke) Kind() string    { return "stroke" }
func (*Arrow) Kind() string     { return "arrow" }
func (*TextLabel) Kind() string { return "text" }

// HitTest matches when any recorded point is within radius.
func (s *Stroke) HitTest(p math.Vec2, radius float64) bool {
	for _, q := range s.Points {
		if q.Distance(p) <= radius {
			return true
		}
	}
	return false
}

// HitTest uses the distance to the segment, not the infinite line.
func (a *Arrow) HitTest(p math.Vec2, radius float64) bool {
	return math.SegmentDistance(p, a.From, a.To) <= radius
}

// HitTest matches on the anchor point only.
func (t *TextLabel) HitTest(p math.Vec2, radius float64) bool {
	return t.Anchor.Distance(p) <= radius
}

// HeadSize returns the arrowhead length for a line width.
func HeadSize(width float64) float64 {
	return gomath.Max(10, 4*width)
}

func (s *Stroke) draw(dc *gg.Context, r *rasterizer) {
	if len(s.Points) == 0 {
		return
	}
	dc.SetColor(s.Color.NRGBA())
	if len(s.Points) == 1 {
		p := s.Points[0]
		dc.DrawCircle(p.X, p.Y, s.Width/2)
		dc.Fill()
		return
	}
	dc.SetLineWidth(s.Width * r.dpr)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(s.Points[0].X, s.Points[0].Y)
	for _, p := range s.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

func (a *Arrow) draw(dc *gg.Context, r *rasterizer) {
	d := a.To.Sub(a.From)
	if d.Length() == 0 {
		return
	}
	dc.SetColor(a.Color.NRGBA())
	dc.SetLineWidth(a.Width * r.dpr)
	dc.SetLineCapRound()
	dc.DrawLine(a.From.X, a.From.Y, a.To.X, a.To.Y)
	dc.Stroke()

	size := HeadSize(a.Width)
	angle := gomath.Atan2(d.Y, d.X)
	left := angle + gomath.Pi - gomath.Pi/6
	right := angle + gomath.Pi + gomath.Pi/6
	dc.MoveTo(a.To.X, a.To.Y)
	dc.LineTo(a.To.X+size*gomath.Cos(left), a.To.Y+size*gomath.Sin(left))
	dc.LineTo(a.To.X+size*gomath.Cos(right), a.To.Y+size*gomath.Sin(right))
	dc.ClosePath()
	dc.Fill()
}

func (t *TextLabel) draw(dc *gg.Context, r *rasterizer) {
	if t.Text == "" {
		return
	}
	face := r.face(t.FontSize)
	if face == nil {
		return
	}
	// Neither glyphs nor line widths follow the context matrix; text is laid
	// out in device pixels with a face sized for the pixel ratio.
	dc.Push()
	dc.Identity()
	dc.SetFontFace(face)
	dc.SetColor(t.Color.NRGBA())
	dc.DrawStringAnchored(t.Text, t.Anchor.X*r.dpr, t.Anchor.Y*r.dpr, 0, 1)
	dc.Pop()
}
