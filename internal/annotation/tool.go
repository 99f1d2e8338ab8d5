package annotation

import (
	"fmt"

	"github.com/Faultbox/modelboard/pkg/math"
)

// Tool is the active drawing mode. The set of tools is closed; each tool
// handles its own press, move and release.
type Tool interface {
	Name() string
	// Accepts reports whether the overlay takes pointer input under this tool.
	Accepts() bool

	press(o *Overlay, p math.Vec2)
	move(o *Overlay, p math.Vec2)
	release(o *Overlay, p math.Vec2)
}

type (
	noneTool   struct{}
	penTool    struct{}
	arrowTool  struct{}
	textTool   struct{}
	eraserTool struct{}
)

// Available tools.
var (
	ToolNone   Tool = noneTool{}
	ToolPen    Tool = penTool{}
	ToolArrow  Tool = arrowTool{}
	ToolText   Tool = textTool{}
	ToolEraser Tool = eraserTool{}
)

// Tools lists every tool in toolbar order.
func Tools() []Tool {
	return []Tool{ToolNone, ToolPen, ToolArrow, ToolText, ToolEraser}
}

// ParseTool returns the tool with the given name.
func ParseTool(name string) (Tool, error) {
	switch name {
	case "", "none":
		return ToolNone, nil
	case "pen":
		return ToolPen, nil
	case "arrow":
		return ToolArrow, nil
	case "text":
		return ToolText, nil
	case "eraser":
		return ToolEraser, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
}

func (noneTool) Name() string   { return "none" }
func (penTool) Name() string    { return "pen" }
func (arrowTool) Name() string  { return "arrow" }
func (textTool) Name() string   { return "text" }
func (eraserTool) Name() string { return "eraser" }

func (noneTool) Accepts() bool   { return false }
func (penTool) Accepts() bool    { return true }
func (arrowTool) Accepts() bool  { return true }
func (textTool) Accepts() bool   { return true }
func (eraserTool) Accepts() bool { return true }

func (noneTool) press(*Overlay, math.Vec2)   {}
func (noneTool) move(*Overlay, math.Vec2)    {}
func (noneTool) release(*Overlay, math.Vec2) {}

// pen: press seeds a stroke, move extends it, release ends it.

func (penTool) press(o *Overlay, p math.Vec2) {
	s := &Stroke{Points: []math.Vec2{p}, Color: o.style.Color, Width: o.style.Width}
	o.entities = append(o.entities, s)
	o.active = s
	o.redraw()
}

func (penTool) move(o *Overlay, p math.Vec2) {
	if o.active == nil {
		return
	}
	o.active.Points = append(o.active.Points, p)
	o.redraw()
}

func (penTool) release(o *Overlay, _ math.Vec2) {
	o.active = nil
}

// arrow: press starts a preview, move updates it, release commits it.

func (arrowTool) press(o *Overlay, p math.Vec2) {
	o.preview = &Arrow{From: p, To: p, Color: o.style.Color, Width: o.style.Width}
	o.redraw()
}

func (arrowTool) move(o *Overlay, p math.Vec2) {
	if o.preview == nil {
		return
	}
	o.preview.To = p
	o.redraw()
}

func (arrowTool) release(o *Overlay, p math.Vec2) {
	a := o.preview
	if a == nil {
		return
	}
	o.preview = nil
	a.To = p
	if a.To.Distance(a.From) > 0 {
		o.entities = append(o.entities, a)
	}
	o.redraw()
}

// text: press asks the prompter for a label.

func (textTool) press(o *Overlay, p math.Vec2) {
	if o.prompter == nil {
		return
	}
	text, ok := o.prompter.Prompt(p)
	if !ok || text == "" {
		return
	}
	o.entities = append(o.entities, &TextLabel{
		Anchor:   p,
		Text:     text,
		Color:    o.style.Color,
		FontSize: o.style.FontSize,
	})
	o.redraw()
}

func (textTool) move(*Overlay, math.Vec2)    {}
func (textTool) release(*Overlay, math.Vec2) {}

// eraser: press removes every entity under the pointer.

func (eraserTool) press(o *Overlay, p math.Vec2) {
	o.EraseAt(p.X, p.Y, o.eraserRadius)
}

func (eraserTool) move(*Overlay, math.Vec2)    {}
func (eraserTool) release(*Overlay, math.Vec2) {}
