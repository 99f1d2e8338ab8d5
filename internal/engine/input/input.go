// Package input models pointer events and turns them into clicks and drags.
package input

import (
	"sync"

	"github.com/Faultbox/modelboard/pkg/math"
)

// EventType identifies a pointer or viewport event.
type EventType int

const (
	EventNone EventType = iota
	EventPointerDown
	EventPointerMove
	EventPointerUp
	EventWheel
	EventResize
)

func (t EventType) String() string {
	switch t {
	case EventPointerDown:
		return "pointerdown"
	case EventPointerMove:
		return "pointermove"
	case EventPointerUp:
		return "pointerup"
	case EventWheel:
		return "wheel"
	case EventResize:
		return "resize"
	default:
		return "none"
	}
}

// Button is a pointer button.
type Button uint8

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Event represents a processed input event. Coordinates are CSS pixels
// relative to the viewport origin.
type Event struct {
	Type   EventType
	X, Y   float64
	Button Button

	WheelDelta float64

	Width  int
	Height int
	DPR    float64
}

// Input buffers events between frames. Push may be called from any
// goroutine; the frame loop drains.
type Input struct {
	mu     sync.Mutex
	events []Event
}

// New creates a new input handler.
func New() *Input {
	return &Input{
		events: make([]Event, 0, 16),
	}
}

// Push appends an event to the buffer.
func (i *Input) Push(e Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events = append(i.events, e)
}

// Drain returns the buffered events and empties the buffer.
func (i *Input) Drain() []Event {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Event, len(i.events))
	copy(out, i.events)
	i.events = i.events[:0]
	return out
}

// Len returns the number of buffered events.
func (i *Input) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.events)
}

// DefaultClickTolerance is how far, in pixels, a pointer may travel between
// press and release and still count as a click.
const DefaultClickTolerance = 4.0

// Tracker follows a single pointer from press to release.
type Tracker struct {
	Tolerance float64

	down   bool
	button Button
	start  math.Vec2
	last   math.Vec2
	travel float64
}

// NewTracker creates a tracker with the given click tolerance.
func NewTracker(tolerance float64) *Tracker {
	if tolerance <= 0 {
		tolerance = DefaultClickTolerance
	}
	return &Tracker{Tolerance: tolerance}
}

// Down records a press.
func (t *Tracker) Down(x, y float64, b Button) {
	p := math.Vec2{X: x, Y: y}
	t.down = true
	t.button = b
	t.start, t.last = p, p
	t.travel = 0
}

// Move records pointer motion and returns the delta since the last sample.
// ok is false when no button is held.
func (t *Tracker) Move(x, y float64) (dx, dy float64, ok bool) {
	if !t.down {
		return 0, 0, false
	}
	p := math.Vec2{X: x, Y: y}
	d := p.Sub(t.last)
	t.travel += d.Length()
	t.last = p
	return d.X, d.Y, true
}

// Up records a release and reports whether the gesture was a click.
func (t *Tracker) Up(x, y float64) (click bool) {
	if !t.down {
		return false
	}
	t.down = false
	end := math.Vec2{X: x, Y: y}
	return t.travel+t.last.Distance(end) <= t.Tolerance && t.start.Distance(end) <= t.Tolerance
}

// Pressed reports whether a button is held.
func (t *Tracker) Pressed() bool { return t.down }

// Button returns the button of the current or last press.
func (t *Tracker) Button() Button { return t.button }
