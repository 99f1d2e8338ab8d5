package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/modelboard/pkg/archive"
)

// Options configures a Resolver.
type Options struct {
	// DeliveryURL is the local-file endpoint of the delivery service, e.g.
	// "http://localhost:8080/api/local". Empty reads local files in-process.
	DeliveryURL string
	// ProxyURL is the proxy endpoint of the delivery service. Empty fetches
	// remote URLs directly.
	ProxyURL string
	// Client performs HTTP fetches. Defaults to http.DefaultClient.
	Client *http.Client
	// Blobs holds ephemeral handles. A new store is created when nil.
	Blobs *BlobStore
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Resolver turns locators into resource maps.
type Resolver struct {
	deliveryURL string
	proxyURL    string
	client      *http.Client
	blobs       *BlobStore
	log         *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		deliveryURL: opts.DeliveryURL,
		proxyURL:    opts.ProxyURL,
		client:      opts.Client,
		blobs:       opts.Blobs,
		log:         opts.Logger,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.blobs == nil {
		r.blobs = NewBlobStore()
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Blobs returns the resolver's handle store.
func (r *Resolver) Blobs() *BlobStore {
	return r.blobs
}

// Resolve builds the resource map for loc. Every failure is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, loc Locator) (*Map, error) {
	var (
		m   *Map
		err error
		op  string
	)
	switch l := loc.(type) {
	case FileSet:
		op = "file set"
		m, err = r.resolveFiles(ctx, l.Files)
	case FileBlob:
		op = "blob"
		m, err = r.resolveFiles(ctx, []FileBlob{l})
	case DataURI:
		op = "data uri"
		m, err = r.resolveDataURI(ctx, l)
	case LocalPath:
		op = "local path"
		if !isAbsolutePath(l.Path) {
			err = fmt.Errorf("%w: relative path", ErrDisallowedScheme)
			break
		}
		m, err = r.resolveSingle(ctx, originLocal, l.Path)
	case RemoteURL:
		op = "url"
		m, err = r.resolveURL(ctx, l.URL)
	default:
		op = "locator"
		err = ErrNoLoadableAsset
	}
	if err != nil {
		return nil, &ResolutionError{Op: op, Locator: loc.String(), Err: err}
	}

	r.log.Debug("resolved",
		zap.String("locator", loc.String()),
		zap.String("main", m.Main()),
		zap.String("format", string(m.Format())),
		zap.Int("entries", m.Len()))
	return m, nil
}

func (r *Resolver) resolveURL(ctx context.Context, raw string) (*Map, error) {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	switch {
	case s == "":
		return nil, ErrNoLoadableAsset
	case strings.HasPrefix(lower, "data:"):
		return r.resolveDataURI(ctx, DataURI{URI: s})
	case strings.HasPrefix(lower, BlobScheme):
		b, ok := r.blobs.Get(s)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBlob, s)
		}
		return r.resolveFiles(ctx, []FileBlob{{Name: b.Name, Data: b.Data}})
	case isAbsolutePath(s):
		return r.resolveSingle(ctx, originLocal, s)
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDisallowedScheme, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: missing host", ErrDisallowedScheme)
		}
		return r.resolveSingle(ctx, originRemote, u.String())
	case "file":
		p := u.Path
		if len(p) > 2 && p[0] == '/' && isWindowsDrivePath(p[1:]) {
			p = p[1:]
		}
		if p == "" {
			return nil, fmt.Errorf("%w: empty file url", ErrDisallowedScheme)
		}
		return r.resolveSingle(ctx, originLocal, p)
	case "":
		return nil, fmt.Errorf("%w: bare relative path %q", ErrDisallowedScheme, s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrDisallowedScheme, u.Scheme)
	}
}

// resolveSingle maps a single addressable model. Archives are fetched and
// expanded in memory.
func (r *Resolver) resolveSingle(ctx context.Context, kind originKind, loc string) (*Map, error) {
	var src Source
	var name string
	if kind == originRemote {
		src = r.remoteSource(loc)
		u, _ := url.Parse(loc)
		name = path.Base(u.Path)
	} else {
		src = r.localSource(loc)
		name = path.Base(strings.ReplaceAll(loc, "\\", "/"))
	}

	if archive.IsArchive(name, nil) {
		data, err := ReadAll(ctx, src)
		if err != nil {
			return nil, err
		}
		return r.resolveFiles(ctx, []FileBlob{{Name: name, Data: data}})
	}

	f := FormatFromPath(name)
	if !f.Recognized() {
		return nil, fmt.Errorf("%w: %s", ErrNoLoadableAsset, name)
	}
	if !f.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}

	m := newMap(r)
	m.originKind, m.originBase = kind, loc
	m.add(name, src)
	if err := m.pickMain(); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Resolver) resolveDataURI(ctx context.Context, d DataURI) (*Map, error) {
	mt, data, err := DecodeDataURI(d.URI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLoadableAsset, err)
	}
	name := d.Name
	if name == "" {
		if f := formatFromMediaType(mt); f != FormatUnknown {
			name = "model." + string(f)
		} else if archive.IsArchive("", data) {
			name = "bundle.zip"
		} else {
			name = "model"
		}
	}
	return r.resolveFiles(ctx, []FileBlob{{Name: name, Data: data}})
}

type namedData struct {
	name string
	data []byte
}

// resolveFiles registers every file (expanding archives in place) with a
// fresh blob handle. Ingestion runs concurrently; registration keeps input order.
func (r *Resolver) resolveFiles(ctx context.Context, files []FileBlob) (*Map, error) {
	if len(files) == 0 {
		return nil, ErrNoLoadableAsset
	}

	expanded := make([][]namedData, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !archive.IsArchive(f.Name, f.Data) {
				expanded[i] = []namedData{{name: f.Name, data: f.Data}}
				return nil
			}
			a, err := archive.Open(f.Data)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			dir := path.Dir(strings.ReplaceAll(f.Name, "\\", "/"))
			return a.Walk(func(name string, data []byte) error {
				if dir != "." && dir != "/" {
					name = path.Join(dir, name)
				}
				expanded[i] = append(expanded[i], namedData{name: name, data: data})
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := newMap(r)
	m.originKind = originMemory
	for _, group := range expanded {
		for _, nd := range group {
			handle := r.blobs.Register(nd.name, nd.data)
			if !m.add(nd.name, memorySource{handle: handle, store: r.blobs}) {
				_ = r.blobs.Revoke(handle)
				continue
			}
			m.handles = append(m.handles, handle)
		}
	}
	if err := m.pickMain(); err != nil {
		_ = m.Release()
		return nil, err
	}
	return m, nil
}

// remoteSource addresses an http(s) URL, through the proxy when configured.
func (r *Resolver) remoteSource(u string) Source {
	if r.proxyURL != "" {
		return httpSource{url: withQuery(r.proxyURL, "url", u), client: r.client}
	}
	return httpSource{url: u, client: r.client}
}

// localSource addresses an absolute path, through the delivery service when configured.
func (r *Resolver) localSource(p string) Source {
	if r.deliveryURL != "" {
		return httpSource{url: withQuery(r.deliveryURL, "path", p), client: r.client}
	}
	return fileSource{path: p}
}

func withQuery(base, key, value string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + key + "=" + url.QueryEscape(value)
}

func isAbsolutePath(s string) bool {
	return strings.HasPrefix(s, "/") || isWindowsDrivePath(s)
}

func isWindowsDrivePath(s string) bool {
	if len(s) < 3 || s[1] != ':' || (s[2] != '\\' && s[2] != '/') {
		return false
	}
	c := s[0] | 0x20
	return c >= 'a' && c <= 'z'
}
