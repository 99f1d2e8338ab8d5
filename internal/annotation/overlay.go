package annotation

import (
	"errors"
	"fmt"
	gomath "math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

var (
	// ErrUnknownTool is returned by ParseTool for an unrecognized name.
	ErrUnknownTool = errors.New("unknown annotation tool")
	// ErrInvalidStyle is returned by SetStyle for non-positive sizes.
	ErrInvalidStyle = errors.New("invalid annotation style")
)

// DefaultEraserRadius is the eraser hit radius in CSS pixels.
const DefaultEraserRadius = 12.0

// Style is the pen state applied to new entities.
type Style struct {
	Color    scene.Color
	Width    float64
	FontSize float64
}

// DefaultStyle returns black, 2px lines and 16px text.
func DefaultStyle() Style {
	return Style{Color: scene.Color{A: 1}, Width: 2, FontSize: 16}
}

// Validate checks that sizes are positive and finite.
func (s Style) Validate() error {
	if !(s.Width > 0) || gomath.IsInf(s.Width, 0) {
		return fmt.Errorf("%w: width %v", ErrInvalidStyle, s.Width)
	}
	if !(s.FontSize > 0) || gomath.IsInf(s.FontSize, 0) {
		return fmt.Errorf("%w: font size %v", ErrInvalidStyle, s.FontSize)
	}
	return nil
}

// Prompter asks the user for a text label anchored at a point.
// ok is false when the user cancelled.
type Prompter interface {
	Prompt(at math.Vec2) (text string, ok bool)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(at math.Vec2) (string, bool)

// Prompt calls f.
func (f PrompterFunc) Prompt(at math.Vec2) (string, bool) { return f(at) }

// Options configures a new overlay.
type Options struct {
	Width        int
	Height       int
	DPR          float64
	Style        Style
	EraserRadius float64
	Prompter     Prompter
	Logger       *zap.Logger
}

// Overlay is a retained vector drawing surface. Entities are kept in
// creation order and replayed onto a raster whenever the surface changes.
// It is not safe for concurrent use.
type Overlay struct {
	width, height int
	raster        rasterizer
	dc            *gg.Context

	entities []Entity
	active   *Stroke
	preview  *Arrow

	tool         Tool
	style        Style
	eraserRadius float64
	prompter     Prompter
	log          *zap.Logger
}

// New creates an overlay with the given options.
func New(opts Options) *Overlay {
	style := opts.Style
	if style.Validate() != nil {
		style = DefaultStyle()
	}
	radius := opts.EraserRadius
	if radius <= 0 {
		radius = DefaultEraserRadius
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	o := &Overlay{
		tool:         ToolNone,
		style:        style,
		eraserRadius: radius,
		prompter:     opts.Prompter,
		log:          log,
	}
	o.Resize(opts.Width, opts.Height, opts.DPR)
	return o
}

// Resize rebuilds the backing surface at width*dpr by height*dpr device
// pixels and replays every entity.
func (o *Overlay) Resize(width, height int, dpr float64) {
	o.width = max(width, 1)
	o.height = max(height, 1)
	if !(dpr >= 1) || gomath.IsInf(dpr, 0) {
		dpr = 1
	}
	if o.raster.dpr != dpr {
		o.raster.faces = nil
	}
	o.raster.dpr = dpr

	dw := int(gomath.Floor(float64(o.width) * dpr))
	dh := int(gomath.Floor(float64(o.height) * dpr))
	o.dc = gg.NewContext(max(dw, 1), max(dh, 1))
	o.redraw()
}

// Size returns the surface size in CSS pixels and the device pixel ratio.
func (o *Overlay) Size() (width, height int, dpr float64) {
	return o.width, o.height, o.raster.dpr
}

// Tool returns the active tool.
func (o *Overlay) Tool() Tool { return o.tool }

// SetTool switches tools, dropping any gesture in progress.
func (o *Overlay) SetTool(t Tool) {
	if t == nil {
		t = ToolNone
	}
	o.active = nil
	if o.preview != nil {
		o.preview = nil
		o.redraw()
	}
	o.tool = t
}

// Accepts reports whether pointer input belongs to the overlay.
func (o *Overlay) Accepts() bool { return o.tool.Accepts() }

// Style returns the current style.
func (o *Overlay) Style() Style { return o.style }

// SetStyle replaces the style used for new entities.
func (o *Overlay) SetStyle(s Style) error {
	if err := s.Validate(); err != nil {
		return err
	}
	o.style = s
	return nil
}

// SetPrompter replaces the text prompter.
func (o *Overlay) SetPrompter(p Prompter) { o.prompter = p }

// PointerDown routes a press to the active tool and reports whether it was handled.
func (o *Overlay) PointerDown(x, y float64) bool {
	if !o.tool.Accepts() {
		return false
	}
	o.tool.press(o, math.Vec2{X: x, Y: y})
	return true
}

// PointerMove routes motion to the active tool.
func (o *Overlay) PointerMove(x, y float64) bool {
	if !o.tool.Accepts() {
		return false
	}
	o.tool.move(o, math.Vec2{X: x, Y: y})
	return true
}

// PointerUp routes a release to the active tool.
func (o *Overlay) PointerUp(x, y float64) bool {
	if !o.tool.Accepts() {
		return false
	}
	o.tool.release(o, math.Vec2{X: x, Y: y})
	return true
}

// EraseAt removes every entity within radius of (x, y) and returns how many
// were removed. Entities are removed whole.
func (o *Overlay) EraseAt(x, y, radius float64) int {
	p := math.Vec2{X: x, Y: y}
	kept := o.entities[:0]
	removed := 0
	for _, e := range o.entities {
		if e.HitTest(p, radius) {
			if s, ok := e.(*Stroke); ok && s == o.active {
				o.active = nil
			}
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(o.entities); i++ {
		o.entities[i] = nil
	}
	o.entities = kept

	if removed > 0 {
		o.log.Debug("annotations erased", zap.Int("removed", removed), zap.Int("remaining", len(kept)))
		o.redraw()
	}
	return removed
}

// Clear drops every entity.
func (o *Overlay) Clear() {
	o.entities = nil
	o.active = nil
	o.preview = nil
	o.redraw()
}

// Entities returns a copy of the entity list in paint order.
func (o *Overlay) Entities() []Entity {
	out := make([]Entity, len(o.entities))
	copy(out, o.entities)
	return out
}

// Len returns the number of entities.
func (o *Overlay) Len() int { return len(o.entities) }

// Add appends an entity directly, as when restoring a saved overlay.
func (o *Overlay) Add(e Entity) {
	if e == nil {
		return
	}
	o.entities = append(o.entities, e)
	o.redraw()
}

func (o *Overlay) redraw() {
	dc := o.dc
	dc.Identity()
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()
	dc.Scale(o.raster.dpr, o.raster.dpr)
	for _, e := range o.entities {
		e.draw(dc, &o.raster)
	}
	if o.preview != nil {
		o.preview.draw(dc, &o.raster)
	}
}

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

func regularFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	return fontTTF, fontErr
}

// rasterizer carries the device pixel ratio and a face cache keyed by CSS size.
type rasterizer struct {
	dpr   float64
	faces map[float64]font.Face
}

func (r *rasterizer) face(size float64) font.Face {
	if f, ok := r.faces[size]; ok {
		return f
	}
	ttf, err := regularFont()
	if err != nil {
		return nil
	}
	f := truetype.NewFace(ttf, &truetype.Options{Size: size * r.dpr, DPI: 72, Hinting: font.HintingFull})
	if r.faces == nil {
		r.faces = make(map[float64]font.Face)
	}
	r.faces[size] = f
	return f
}
