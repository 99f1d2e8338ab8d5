package encoding

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath converts a resource reference into a lookup key: percent
// escapes decoded, query and fragment dropped, Unicode NFC, forward slashes,
// lower case, dot segments resolved, no leading "/" or "./".
// Leading ".." segments that cannot be resolved are kept.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if dec, err := url.PathUnescape(p); err == nil {
		p = dec
	}
	p = norm.NFC.String(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.ToLower(p)
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	p = strings.TrimLeft(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// StripParentSegments removes leading "../" segments from a normalized path.
func StripParentSegments(p string) string {
	for strings.HasPrefix(p, "../") {
		p = p[3:]
	}
	if p == ".." {
		return ""
	}
	return p
}
