// Package formats parses 3D model files (glTF/GLB, OBJ+MTL, STL) into a
// scene graph. Sub-resources are fetched through the load's resource map.
package formats

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/internal/assets"
	"github.com/Faultbox/modelboard/internal/engine/texture"
	"github.com/Faultbox/modelboard/pkg/resource"
	"github.com/Faultbox/modelboard/pkg/scene"
)

// ErrUnsupportedFormat is shared with the resolver so callers can match
// either layer with one sentinel.
var ErrUnsupportedFormat = resource.ErrUnsupportedFormat

// Cause separates fetch failures from malformed content.
type Cause int

const (
	CauseContent   Cause = iota // bytes arrived but could not be parsed
	CauseTransport              // bytes could not be fetched
)

// String returns a human-readable cause name.
func (c Cause) String() string {
	switch c {
	case CauseTransport:
		return "transport"
	case CauseContent:
		return "content"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// FormatError is returned by every failed load.
type FormatError struct {
	Format resource.Format
	Cause  Cause
	Ref    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s error (%s): %v", e.Format, e.Cause, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Format, e.Cause, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a fetch failure.
func IsTransport(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe) && fe.Cause == CauseTransport
}

// Parser builds a scene graph from the main entry bytes.
type Parser interface {
	Parse(ctx context.Context, data []byte, env *Env) (*scene.Node, error)
}

// Env gives parsers access to sub-resources and a warning sink.
type Env struct {
	Format resource.Format
	Map    *resource.Map
	Log    *zap.Logger

	warnings []string
	textures *assets.Cache[image.Image]
}

// Warn records a non-fatal problem.
func (e *Env) Warn(msg string, fields ...zap.Field) {
	e.warnings = append(e.warnings, msg)
	e.Log.Warn(msg, fields...)
}

// Fetch reads a sub-resource. Failures are transport errors.
func (e *Env) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, err := e.Map.ReadAll(ctx, ref)
	if err != nil {
		return nil, &FormatError{Format: e.Format, Cause: CauseTransport, Ref: ref, Err: err}
	}
	return data, nil
}

// Texture fetches and decodes an image sub-resource. Each reference is
// decoded once per load.
func (e *Env) Texture(ctx context.Context, ref string) (image.Image, error) {
	return e.textureCache().GetOrLoad(ref, func() (image.Image, error) {
		data, err := e.Fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		img, err := texture.Decode(ref, data)
		if err != nil {
			return nil, &FormatError{Format: e.Format, Cause: CauseContent, Ref: ref, Err: err}
		}
		return img, nil
	})
}

func (e *Env) textureCache() *assets.Cache[image.Image] {
	if e.textures == nil {
		e.textures = assets.NewCache[image.Image]()
	}
	return e.textures
}

func (e *Env) contentError(err error) error {
	return &FormatError{Format: e.Format, Cause: CauseContent, Err: err}
}

// Result is a parsed model.
type Result struct {
	Root     *scene.Node
	Format   resource.Format
	Bytes    int64
	Warnings []string
}

// Registry maps formats to parsers.
type Registry struct {
	parsers map[resource.Format]Parser
	log     *zap.Logger
}

// NewRegistry returns a registry with the glTF, GLB, OBJ and STL parsers.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{parsers: make(map[resource.Format]Parser), log: log}
	r.Register(resource.FormatGLTF, GLTFParser{})
	r.Register(resource.FormatGLB, GLTFParser{})
	r.Register(resource.FormatOBJ, OBJParser{})
	r.Register(resource.FormatSTL, STLParser{})
	return r
}

// Register installs or replaces the parser for a format.
func (r *Registry) Register(f resource.Format, p Parser) {
	r.parsers[f] = p
}

// Load reads the main entry of m with progress reporting and parses it.
func (r *Registry) Load(ctx context.Context, m *resource.Map, progress ProgressFunc) (*Result, error) {
	f := m.Format()
	p, ok := r.parsers[f]
	if !ok {
		return nil, &FormatError{Format: f, Cause: CauseContent, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)}
	}

	data, err := readWithProgress(ctx, m.MainSource(), progress)
	if err != nil {
		return nil, &FormatError{Format: f, Cause: CauseTransport, Ref: m.Main(), Err: err}
	}

	env := &Env{Format: f, Map: m, Log: r.log.With(zap.String("format", string(f)), zap.String("main", m.Main()))}
	root, err := p.Parse(ctx, data, env)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, env.contentError(err)
	}
	if root.Name == "" {
		root.Name = m.MainName()
	}

	progress.report(Progress{Loaded: int64(len(data)), Total: int64(len(data)), Percent: 100})
	return &Result{Root: root, Format: f, Bytes: int64(len(data)), Warnings: env.warnings}, nil
}

func readWithProgress(ctx context.Context, src resource.Source, progress ProgressFunc) ([]byte, error) {
	rc, size, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	pr := &progressReader{r: rc, total: size, fn: progress, lastPercent: -1}
	return io.ReadAll(pr)
}
