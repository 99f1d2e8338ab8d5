// Package viewer implements the model viewer session: it owns the loaded
// scene, the camera, the current selection and the annotation overlay, and
// routes pointer input between 3D navigation and drawing.
package viewer

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/annotation"
	"github.com/Faultbox/modelboard/internal/engine/camera"
	"github.com/Faultbox/modelboard/internal/engine/input"
	"github.com/Faultbox/modelboard/internal/engine/renderer"
	"github.com/Faultbox/modelboard/internal/logger"
	"github.com/Faultbox/modelboard/pkg/formats"
	"github.com/Faultbox/modelboard/pkg/resource"
	"github.com/Faultbox/modelboard/pkg/scene"
)

var (
	// ErrNoSelection is returned by material edits when nothing is selected.
	ErrNoSelection = errors.New("no node selected")
	// ErrStaleLoad is returned by a load that finished after a newer one started.
	ErrStaleLoad = errors.New("load superseded by a newer load")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrSelectionChanged is returned when the selection moved while a
	// texture was being fetched.
	ErrSelectionChanged = errors.New("selection changed during texture fetch")
)

// Options configures a session.
type Options struct {
	Width  int
	Height int
	DPR    float64

	Camera camera.Config
	// Renderer defaults to renderer.DefaultConfig; its size is always
	// derived from Width, Height and DPR.
	Renderer *renderer.Config
	// Annotation style and tool options; size and logger are set by the session.
	Annotation annotation.Options

	Resolver *resource.Resolver
	Registry *formats.Registry

	ClickTolerance float64
	Progress       formats.ProgressFunc
	Logger         *zap.Logger
}

// LoadResult describes a model installed by Load.
type LoadResult struct {
	Format   resource.Format
	Main     string
	Files    []string
	Bytes    int64
	Warnings []string
	Fit      camera.FitReport
	Elapsed  time.Duration
}

// Session is one viewer instance. All methods are safe for concurrent use;
// they apply in call order under the session mutex.
type Session struct {
	id       string
	log      *zap.Logger
	resolver *resource.Resolver
	registry *formats.Registry
	progress formats.ProgressFunc

	mu        sync.Mutex
	closed    bool
	gen       uint64
	root      *scene.Node
	resources *resource.Map

	selected *scene.Node
	// owned marks nodes whose material was cloned for editing.
	owned map[*scene.Node]bool

	cam       *camera.Controller
	render    *renderer.Renderer
	overlay   *annotation.Overlay
	tracker   *input.Tracker
	tolerance float64
	events    *input.Input // queued for Step, not guarded by mu

	width, height int
	dpr           float64
}

// New creates a session with an empty scene.
func New(opts Options) *Session {
	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logger.Named("viewer")
	}
	log = log.With(zap.String("session", id))

	resolver := opts.Resolver
	if resolver == nil {
		resolver = resource.NewResolver(resource.Options{Logger: log.Named("resource")})
	}
	registry := opts.Registry
	if registry == nil {
		registry = formats.NewRegistry(log.Named("formats"))
	}

	rcfg := renderer.DefaultConfig()
	if opts.Renderer != nil {
		rcfg = *opts.Renderer
	}

	annOpts := opts.Annotation
	annOpts.Logger = log.Named("annotation")

	s := &Session{
		id:        id,
		log:       log,
		resolver:  resolver,
		registry:  registry,
		progress:  opts.Progress,
		owned:     make(map[*scene.Node]bool),
		cam:       camera.NewController(opts.Camera),
		render:    renderer.New(rcfg),
		overlay:   annotation.New(annOpts),
		tolerance: opts.ClickTolerance,
		events:    input.New(),
	}
	s.tracker = input.NewTracker(s.tolerance)
	s.resize(opts.Width, opts.Height, opts.DPR)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Load resolves and parses loc, frames it and replaces the current scene.
// Resolution and parsing run without holding the session lock. A load that
// finishes after a newer Load started is discarded with ErrStaleLoad. On
// failure the previous scene stays installed.
func (s *Session) Load(ctx context.Context, loc resource.Locator) (*LoadResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.gen++
	gen := s.gen
	s.cam.BeginLoad()
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("loading model", zap.Stringer("locator", loc), zap.Uint64("generation", gen))

	m, err := s.resolver.Resolve(ctx, loc)
	var res *formats.Result
	if err == nil {
		res, err = s.registry.Load(ctx, m, s.progress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		s.release(m)
		if s.closed {
			return nil, ErrClosed
		}
		s.log.Debug("discarding stale load", zap.Uint64("generation", gen), zap.Uint64("current", s.gen))
		return nil, fmt.Errorf("%w: %s", ErrStaleLoad, loc)
	}
	if err != nil {
		s.release(m)
		s.cam.AbortLoad()
		s.log.Warn("load failed", zap.Stringer("locator", loc), zap.Error(err))
		return nil, err
	}

	fit := s.cam.Fit(res.Root)
	if fit.Degenerate {
		s.log.Warn("model has no usable bounds, using default view", zap.String("main", m.Main()))
	}

	old := s.resources
	s.root = res.Root
	s.resources = m
	s.selected = nil
	s.owned = make(map[*scene.Node]bool)
	s.release(old)

	result := &LoadResult{
		Format:   res.Format,
		Main:     m.Main(),
		Files:    m.Keys(),
		Bytes:    res.Bytes,
		Warnings: res.Warnings,
		Fit:      fit,
		Elapsed:  time.Since(start),
	}
	s.log.Info("model loaded",
		zap.String("main", result.Main),
		zap.String("format", string(result.Format)),
		zap.Int64("bytes", result.Bytes),
		zap.Bool("rescaled", fit.Rescaled),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (s *Session) release(m *resource.Map) {
	if m == nil {
		return
	}
	if err := m.Release(); err != nil {
		s.log.Warn("releasing resources", zap.Error(err))
	}
}

// Root returns the installed scene, nil before the first successful load.
func (s *Session) Root() *scene.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Resources returns the resource keys of the installed model.
func (s *Session) Resources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resources == nil {
		return nil
	}
	return s.resources.Keys()
}

// Resize sets the viewport in CSS pixels and the device pixel ratio. The
// camera works in CSS pixels; the frame and overlay are width*dpr by
// height*dpr device pixels.
func (s *Session) Resize(width, height int, dpr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resize(width, height, dpr)
}

func (s *Session) resize(width, height int, dpr float64) {
	if !(dpr >= 1) || gomath.IsInf(dpr, 0) {
		dpr = 1
	}
	s.width, s.height, s.dpr = max(width, 1), max(height, 1), dpr
	s.cam.SetViewport(s.width, s.height)
	s.render.Resize(
		int(gomath.Floor(float64(s.width)*dpr)),
		int(gomath.Floor(float64(s.height)*dpr)),
	)
	s.overlay.Resize(s.width, s.height, dpr)
}

// Size returns the viewport in CSS pixels and the device pixel ratio.
func (s *Session) Size() (width, height int, dpr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height, s.dpr
}

// Close releases the installed model. Further loads fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++

	var err error
	if s.resources != nil {
		err = s.resources.Release()
		s.resources = nil
	}
	s.root = nil
	s.selected = nil
	s.log.Debug("session closed")
	return err
}
