// Package delivery serves model files to the viewer: local files with byte
// range support, and a cross-origin proxy for remote assets.
package delivery

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRange is returned when a Range header does not parse.
	ErrMalformedRange = errors.New("malformed range header")
	// ErrRangeNotSatisfiable is returned when a range falls outside the file.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span of a resource of Total bytes.
type ByteRange struct {
	Start int64
	End   int64
	Total int64
}

// ChunkSize returns the number of bytes in the span.
func (r ByteRange) ChunkSize() int64 {
	return r.End - r.Start + 1
}

// ContentRange returns the Content-Range header value.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// ParseRange parses "bytes=start-end" against a resource of total bytes.
// End is optional and clamped to total-1. Only the first range of a
// multi-range header is served.
func ParseRange(header string, total int64) (ByteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return ByteRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, header)
	}

	start, err := parseOffset(startStr)
	if err != nil {
		return ByteRange{}, fmt.Errorf("%w: start %q", ErrMalformedRange, startStr)
	}
	end := total - 1
	if endStr != "" {
		if end, err = parseOffset(endStr); err != nil {
			return ByteRange{}, fmt.Errorf("%w: end %q", ErrMalformedRange, endStr)
		}
	}

	if start > end || start >= total {
		return ByteRange{}, fmt.Errorf("%w: %d-%d of %d", ErrRangeNotSatisfiable, start, end, total)
	}
	end = min(end, total-1)
	return ByteRange{Start: start, End: end, Total: total}, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

var contentTypes = map[string]string{
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".obj":  "text/plain; charset=utf-8",
	".stl":  "model/stl",
	".fbx":  "application/octet-stream",
}

// DefaultContentType is used for unrecognized extensions.
const DefaultContentType = "application/octet-stream"

// ContentTypeFor maps a file name to its content type.
func ContentTypeFor(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return DefaultContentType
}
