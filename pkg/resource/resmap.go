package resource

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/modelboard/pkg/encoding"
)

type originKind int

const (
	originMemory originKind = iota
	originRemote
	originLocal
)

type entry struct {
	key  string
	name string
	src  Source
}

// Map is the resolved resource space of one load: normalized relative
// paths to fetchable sources, in registration order, with one main entry.
type Map struct {
	entries []entry
	index   map[string]int
	main    int
	format  Format

	originKind originKind
	originBase string

	resolver *Resolver
	handles  []string

	mu       sync.Mutex
	released bool
}

func newMap(r *Resolver) *Map {
	return &Map{resolver: r, index: make(map[string]int), main: -1}
}

// add registers src under the normalized name. The first registration of a
// key wins.
func (m *Map) add(name string, src Source) bool {
	key := encoding.NormalizePath(name)
	if key == "" {
		return false
	}
	if _, dup := m.index[key]; dup {
		return false
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, name: name, src: src})
	return true
}

// pickMain selects the first supported model entry.
func (m *Map) pickMain() error {
	sawUnsupported := false
	for i, e := range m.entries {
		f := FormatFromPath(e.key)
		if f.Supported() {
			m.main, m.format = i, f
			return nil
		}
		if f.Recognized() {
			sawUnsupported = true
		}
	}
	if sawUnsupported {
		return ErrUnsupportedFormat
	}
	return ErrNoLoadableAsset
}

// Main returns the main entry key.
func (m *Map) Main() string {
	return m.entries[m.main].key
}

// MainName returns the main entry name as supplied, before normalization.
func (m *Map) MainName() string {
	return m.entries[m.main].name
}

// MainSource returns the main entry source.
func (m *Map) MainSource() Source {
	return m.entries[m.main].src
}

// Format returns the format inferred from the main entry.
func (m *Map) Format() Format {
	return m.format
}

// Keys returns the normalized keys in registration order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Lookup rewrites a sub-resource reference to a map entry. Matching order:
// exact key, key relative to the main entry's directory, then the first key
// (in registration order) ending with the reference.
func (m *Map) Lookup(ref string) (Source, bool) {
	key := encoding.NormalizePath(ref)
	if key == "" {
		return nil, false
	}
	if i, ok := m.index[key]; ok {
		return m.entries[i].src, true
	}
	if m.main >= 0 {
		if dir := path.Dir(m.entries[m.main].key); dir != "." {
			if i, ok := m.index[path.Join(dir, key)]; ok {
				return m.entries[i].src, true
			}
		}
	}
	suffix := encoding.StripParentSegments(key)
	if suffix == "" {
		return nil, false
	}
	var matches []string
	found := -1
	for i, e := range m.entries {
		if e.key == suffix || strings.HasSuffix(e.key, "/"+suffix) {
			if found < 0 {
				found = i
			}
			matches = append(matches, e.key)
		}
	}
	if found < 0 {
		return nil, false
	}
	if len(matches) > 1 && m.resolver != nil {
		m.resolver.log.Debug("ambiguous reference, using first match",
			zap.String("ref", ref), zap.Strings("candidates", matches))
	}
	return m.entries[found].src, true
}

// Source returns a source for ref: a map entry when one matches, an inline
// or absolute address as given, otherwise the reference passed through
// unmodified to the main entry's origin.
func (m *Map) Source(ref string) (Source, error) {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "data:"):
		_, data, err := DecodeDataURI(ref)
		if err != nil {
			return nil, err
		}
		return bytesSource{location: "data:", data: data}, nil
	case strings.HasPrefix(lower, BlobScheme):
		if _, ok := m.resolver.blobs.Get(ref); ok {
			return memorySource{handle: ref, store: m.resolver.blobs}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlob, ref)
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return m.resolver.remoteSource(ref), nil
	}

	if src, ok := m.Lookup(ref); ok {
		return src, nil
	}
	return m.passthrough(ref)
}

func (m *Map) passthrough(ref string) (Source, error) {
	switch m.originKind {
	case originRemote:
		base, err := url.Parse(m.originBase)
		if err != nil {
			return nil, err
		}
		rel, err := url.Parse(strings.ReplaceAll(ref, "\\", "/"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return m.resolver.remoteSource(base.ResolveReference(rel).String()), nil
	case originLocal:
		base := strings.ReplaceAll(m.originBase, "\\", "/")
		return m.resolver.localSource(path.Join(path.Dir(base), strings.ReplaceAll(ref, "\\", "/"))), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Open fetches ref through Source.
func (m *Map) Open(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	src, err := m.Source(ref)
	if err != nil {
		return nil, 0, err
	}
	return src.Open(ctx)
}

// ReadAll fetches ref fully.
func (m *Map) ReadAll(ctx context.Context, ref string) ([]byte, error) {
	src, err := m.Source(ref)
	if err != nil {
		return nil, err
	}
	return ReadAll(ctx, src)
}

// Release revokes every blob handle issued for this map. Calling it again
// is a no-op.
func (m *Map) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.released = true

	var err error
	for _, h := range m.handles {
		err = multierr.Append(err, m.resolver.blobs.Revoke(h))
	}
	m.handles = nil
	return err
}
