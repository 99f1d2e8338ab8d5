// Package camera frames loaded models and drives the orbit camera.
package camera

import (
	"errors"
	gomath "math"

	"github.com/Faultbox/modelboard/internal/engine/picking"
	"github.com/Faultbox/modelboard/pkg/math"
	"github.com/Faultbox/modelboard/pkg/scene"
)

var (
	// ErrInvalidZoom is returned for a zoom factor that is not a positive finite number.
	ErrInvalidZoom = errors.New("zoom factor must be positive and finite")
	// ErrNotFitted is returned by Reset before any model was framed.
	ErrNotFitted = errors.New("camera has no home view")
)

// Phase is the controller lifecycle state.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseLoading
	PhaseFitted
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhaseFitted:
		return "fitted"
	default:
		return "unknown"
	}
}

var (
	worldUp         = math.Vec3{Y: 1}
	fitDirection    = math.Vec3{X: 1, Y: 0.6, Z: 1}.Normalize()
	fallbackEye     = math.Vec3{X: 2.5, Y: 2, Z: 3}
	fallbackTarget  = math.Vec3{}
	fallbackNear    = 0.1
	fallbackFar     = 1000.0
	polarEpsilon    = 1e-6
	settleThreshold = 1e-5
)

// Config holds the framing and interaction constants.
type Config struct {
	FovDegrees       float64 `yaml:"fov_degrees"`
	TargetSize       float64 `yaml:"target_size"`
	RescaleThreshold float64 `yaml:"rescale_threshold"`
	Margin           float64 `yaml:"margin"`
	NearFloor        float64 `yaml:"near_floor"`
	MinDistanceRatio float64 `yaml:"min_distance_ratio"`
	MaxDistanceRatio float64 `yaml:"max_distance_ratio"`

	// Damping is the fraction of the pending orbit applied per 60 Hz frame.
	Damping           float64 `yaml:"damping"`
	RotateSensitivity float64 `yaml:"rotate_sensitivity"` // radians per pixel
	WheelZoomStep     float64 `yaml:"wheel_zoom_step"`
}

// DefaultConfig returns the standard framing constants.
func DefaultConfig() Config {
	return Config{
		FovDegrees:        60,
		TargetSize:        1,
		RescaleThreshold:  100,
		Margin:            1.5,
		NearFloor:         0.001,
		MinDistanceRatio:  0.05,
		MaxDistanceRatio:  20,
		Damping:           0.08,
		RotateSensitivity: 0.005,
		WheelZoomStep:     1.05,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FovDegrees <= 0 || c.FovDegrees >= 180 {
		c.FovDegrees = d.FovDegrees
	}
	if c.TargetSize <= 0 {
		c.TargetSize = d.TargetSize
	}
	if c.RescaleThreshold <= 1 {
		c.RescaleThreshold = d.RescaleThreshold
	}
	if c.Margin <= 0 {
		c.Margin = d.Margin
	}
	if c.NearFloor <= 0 {
		c.NearFloor = d.NearFloor
	}
	if c.MinDistanceRatio <= 0 {
		c.MinDistanceRatio = d.MinDistanceRatio
	}
	if c.MaxDistanceRatio <= c.MinDistanceRatio {
		c.MaxDistanceRatio = d.MaxDistanceRatio
	}
	if c.Damping < 0 || c.Damping > 1 {
		c.Damping = d.Damping
	}
	if c.RotateSensitivity <= 0 {
		c.RotateSensitivity = d.RotateSensitivity
	}
	if c.WheelZoomStep <= 1 {
		c.WheelZoomStep = d.WheelZoomStep
	}
	return c
}

// State is the full camera pose and clip setup.
type State struct {
	Position    math.Vec3
	Target      math.Vec3
	FovY        float64 // degrees
	Near        float64
	Far         float64
	MinDistance float64
	MaxDistance float64
}

// Distance returns the orbit radius.
func (s State) Distance() float64 {
	return s.Position.Distance(s.Target)
}

// Snapshot is the home view captured after a fit.
type Snapshot = State

// FitReport describes how a model was framed.
type FitReport struct {
	Bounds     scene.Bounds // world box after any rescale
	Rescaled   bool
	Scale      float64
	Degenerate bool
	Distance   float64
}

// Controller owns the camera state for one viewer.
// It is not safe for concurrent use.
type Controller struct {
	cfg   Config
	state State

	home    Snapshot
	hasHome bool

	phase     Phase
	prevPhase Phase

	viewportW int
	viewportH int
	locked    bool

	// Pending orbit, consumed by Update.
	yawDelta   float64
	pitchDelta float64
}

// NewController creates a controller in the Empty phase with the fallback view.
func NewController(cfg Config) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{cfg: cfg, viewportW: 1, viewportH: 1}
	c.state = c.fallbackState()
	return c
}

func (c *Controller) fallbackState() State {
	d := fallbackEye.Distance(fallbackTarget)
	return State{
		Position:    fallbackEye,
		Target:      fallbackTarget,
		FovY:        c.cfg.FovDegrees,
		Near:        fallbackNear,
		Far:         fallbackFar,
		MinDistance: d * c.cfg.MinDistanceRatio,
		MaxDistance: d * c.cfg.MaxDistanceRatio,
	}
}

// Config returns the effective configuration.
func (c *Controller) Config() Config { return c.cfg }

// State returns the current camera state.
func (c *Controller) State() State { return c.state }

// Home returns the home snapshot, if a model has been framed.
func (c *Controller) Home() (Snapshot, bool) { return c.home, c.hasHome }

// Phase returns the lifecycle state.
func (c *Controller) Phase() Phase { return c.phase }

// Locked reports whether pointer orbit is disabled.
func (c *Controller) Locked() bool { return c.locked }

// SetLocked enables or disables pointer orbit. Programmatic moves and
// Update keep working while locked.
func (c *Controller) SetLocked(locked bool) {
	c.locked = locked
	if locked {
		c.yawDelta, c.pitchDelta = 0, 0
	}
}

// SetViewport sets the drawable size in pixels.
func (c *Controller) SetViewport(w, h int) {
	c.viewportW = max(w, 1)
	c.viewportH = max(h, 1)
}

// Viewport returns the drawable size in pixels.
func (c *Controller) Viewport() (w, h int) { return c.viewportW, c.viewportH }

// Aspect returns width/height of the viewport.
func (c *Controller) Aspect() float64 {
	return float64(c.viewportW) / float64(c.viewportH)
}

// BeginLoad enters the Loading phase.
func (c *Controller) BeginLoad() {
	if c.phase != PhaseLoading {
		c.prevPhase = c.phase
	}
	c.phase = PhaseLoading
}

// AbortLoad returns to the phase active before BeginLoad.
func (c *Controller) AbortLoad() {
	if c.phase == PhaseLoading {
		c.phase = c.prevPhase
	}
}

// Fit frames root: rescales out-of-range models, places the camera on the
// (1, 0.6, 1) diagonal and captures a fresh home snapshot.
func (c *Controller) Fit(root *scene.Node) FitReport {
	report := FitReport{Scale: 1}
	var box scene.Bounds
	if root != nil {
		box = root.WorldBounds()
	}

	if box.IsDegenerate() {
		report.Degenerate = true
		report.Bounds = box
		c.state = c.fallbackState()
		report.Distance = c.state.Distance()
		c.capture()
		return report
	}

	maxDim := box.MaxDim()
	ratio := maxDim / c.cfg.TargetSize
	if ratio > c.cfg.RescaleThreshold || ratio < 1/c.cfg.RescaleThreshold {
		s := c.cfg.TargetSize / maxDim
		rescale(root, s)
		box = root.WorldBounds()
		maxDim = box.MaxDim()
		report.Rescaled = true
		report.Scale = s
	}
	report.Bounds = box

	fov := c.cfg.FovDegrees * gomath.Pi / 180
	dist := gomath.Abs(maxDim/(2*gomath.Tan(fov/2))) * c.cfg.Margin
	near := gomath.Max(maxDim/1000, c.cfg.NearFloor)
	center := box.Center()

	c.state = State{
		Position:    center.Add(fitDirection.Scale(dist)),
		Target:      center,
		FovY:        c.cfg.FovDegrees,
		Near:        near,
		Far:         near + maxDim*1000,
		MinDistance: dist * c.cfg.MinDistanceRatio,
		MaxDistance: dist * c.cfg.MaxDistanceRatio,
	}
	report.Distance = dist
	c.capture()
	return report
}

func (c *Controller) capture() {
	c.home = c.state
	c.hasHome = true
	c.phase = PhaseFitted
	c.yawDelta, c.pitchDelta = 0, 0
}

func rescale(root *scene.Node, s float64) {
	if root.Matrix != nil {
		m := math.Scale(math.Vec3{X: s, Y: s, Z: s}).Mul(*root.Matrix)
		root.Matrix = &m
		return
	}
	root.Scale = root.Scale.Scale(s)
	root.Translation = root.Translation.Scale(s)
}

// axes returns the camera right and up vectors.
func (c *Controller) axes() (right, up math.Vec3) {
	forward := c.state.Target.Sub(c.state.Position).Normalize()
	right = forward.Cross(worldUp)
	if right.Length() < 1e-9 {
		right = math.Vec3{X: 1}
	}
	right = right.Normalize()
	up = right.Cross(forward).Normalize()
	return right, up
}

// Pan moves position and target together by a screen-space offset in pixels.
// Positive dy moves the view content down.
func (c *Controller) Pan(dx, dy float64) {
	dist := c.state.Distance()
	fov := c.state.FovY * gomath.Pi / 180
	worldHeight := 2 * gomath.Tan(fov/2) * dist
	moveX := dx / float64(c.viewportW) * worldHeight * c.Aspect()
	moveY := dy / float64(c.viewportH) * worldHeight

	right, up := c.axes()
	offset := right.Scale(moveX).Add(up.Scale(-moveY))
	c.state.Position = c.state.Position.Add(offset)
	c.state.Target = c.state.Target.Add(offset)
}

// Zoom divides the orbit distance by factor, clamped to the distance limits.
// factor > 1 moves closer.
func (c *Controller) Zoom(factor float64) error {
	if !(factor > 0) || gomath.IsInf(factor, 0) {
		return ErrInvalidZoom
	}
	c.setDistance(c.state.Distance() / factor)
	return nil
}

func (c *Controller) setDistance(d float64) {
	d = math.Clamp(d, c.state.MinDistance, c.state.MaxDistance)
	offset := c.state.Position.Sub(c.state.Target)
	if offset.Length() == 0 {
		offset = fitDirection
	}
	c.state.Position = c.state.Target.Add(offset.Normalize().Scale(d))
}

// Reset restores the home snapshot exactly.
func (c *Controller) Reset() error {
	if !c.hasHome {
		return ErrNotFitted
	}
	c.state = c.home
	c.yawDelta, c.pitchDelta = 0, 0
	return nil
}

// HandleDrag queues an orbit from a pointer drag in pixels. Ignored while locked.
func (c *Controller) HandleDrag(dx, dy float64) {
	if c.locked {
		return
	}
	c.yawDelta += dx * c.cfg.RotateSensitivity
	c.pitchDelta += dy * c.cfg.RotateSensitivity
	if c.cfg.Damping == 0 {
		c.applyOrbit(1)
	}
}

// HandleWheel zooms by wheel steps; positive steps move away. Ignored while locked.
func (c *Controller) HandleWheel(steps float64) {
	if c.locked || steps == 0 {
		return
	}
	_ = c.Zoom(gomath.Pow(c.cfg.WheelZoomStep, -steps))
}

// Update applies damped orbit motion for a frame of dt seconds and reports
// whether the camera moved.
func (c *Controller) Update(dt float64) bool {
	if c.yawDelta == 0 && c.pitchDelta == 0 {
		return false
	}
	// Normalize the per-frame factor to a 60 Hz tick.
	k := 1 - gomath.Pow(1-c.cfg.Damping, dt*60)
	if dt <= 0 {
		k = c.cfg.Damping
	}
	c.applyOrbit(k)
	if gomath.Abs(c.yawDelta) < settleThreshold && gomath.Abs(c.pitchDelta) < settleThreshold {
		c.yawDelta, c.pitchDelta = 0, 0
	}
	return true
}

func (c *Controller) applyOrbit(k float64) {
	yaw := c.yawDelta * k
	pitch := c.pitchDelta * k
	c.yawDelta -= yaw
	c.pitchDelta -= pitch

	offset := c.state.Position.Sub(c.state.Target)
	r := offset.Length()
	if r == 0 {
		return
	}
	theta := gomath.Atan2(offset.X, offset.Z) - yaw
	phi := gomath.Acos(math.Clamp(offset.Y/r, -1, 1)) - pitch
	phi = math.Clamp(phi, polarEpsilon, gomath.Pi-polarEpsilon)

	sinPhi := gomath.Sin(phi)
	c.state.Position = c.state.Target.Add(math.Vec3{
		X: r * sinPhi * gomath.Sin(theta),
		Y: r * gomath.Cos(phi),
		Z: r * sinPhi * gomath.Cos(theta),
	})
}

// View returns the view matrix.
func (c *Controller) View() math.Mat4 {
	return math.LookAt(c.state.Position, c.state.Target, worldUp)
}

// Projection returns the perspective matrix for the given aspect ratio.
func (c *Controller) Projection(aspect float64) math.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return math.Perspective(c.state.FovY*gomath.Pi/180, aspect, c.state.Near, c.state.Far)
}

// ViewProjection returns projection * view for the current viewport.
func (c *Controller) ViewProjection() math.Mat4 {
	return c.Projection(c.Aspect()).Mul(c.View())
}

// Ray returns the world-space ray through pixel (x, y) of the viewport.
func (c *Controller) Ray(x, y float64) picking.Ray {
	nx, ny := picking.NDC(x, y, c.viewportW, c.viewportH)
	return picking.ScreenToRay(nx, ny, c.ViewProjection().Inverse())
}
