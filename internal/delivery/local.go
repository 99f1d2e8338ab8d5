package delivery

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// LocalHandler serves files from the local filesystem by absolute path.
type LocalHandler struct {
	roots       []string
	allowOrigin string
	log         *zap.Logger
}

// NewLocalHandler creates a local file handler. When roots is non-empty only
// files inside one of the roots are served.
func NewLocalHandler(roots []string, allowOrigin string, log *zap.Logger) *LocalHandler {
	h := &LocalHandler{allowOrigin: allowOrigin, log: log}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			h.roots = append(h.roots, filepath.Clean(abs))
		}
	}
	return h
}

// ServeHTTP handles GET ?path=P with optional Range.
func (h *LocalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		http.Error(w, "Missing 'path' query parameter", http.StatusBadRequest)
		return
	}
	target, err := localPath(raw)
	if err != nil {
		http.Error(w, "Invalid path encoding", http.StatusBadRequest)
		return
	}
	if !h.allowed(target) {
		http.Error(w, "Path outside served roots", http.StatusForbidden)
		return
	}

	f, err := os.Open(target)
	if err != nil {
		h.fail(w, target, err)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		h.fail(w, target, err)
		return
	}
	if !st.Mode().IsRegular() {
		http.Error(w, "Not a file", http.StatusBadRequest)
		return
	}

	total := st.Size()
	header := w.Header()
	header.Set("Content-Type", ContentTypeFor(target))
	header.Set("Access-Control-Allow-Origin", h.allowOrigin)

	if rh := r.Header.Get("Range"); rh != "" {
		br, err := ParseRange(rh, total)
		if err != nil {
			// 416 carries no body, only the resource length.
			header.Del("Content-Type")
			header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
			header.Set("Content-Length", "0")
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			h.log.Debug("range rejected", zap.String("path", target), zap.String("range", rh), zap.Error(err))
			return
		}
		header.Set("Content-Range", br.ContentRange())
		header.Set("Accept-Ranges", "bytes")
		header.Set("Content-Length", strconv.FormatInt(br.ChunkSize(), 10))
		w.WriteHeader(http.StatusPartialContent)
		if _, err := io.Copy(w, io.NewSectionReader(f, br.Start, br.ChunkSize())); err != nil {
			h.log.Debug("range copy interrupted", zap.String("path", target), zap.Error(err))
		}
		return
	}

	header.Set("Content-Length", strconv.FormatInt(total, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		h.log.Debug("copy interrupted", zap.String("path", target), zap.Error(err))
	}
}

func (h *LocalHandler) fail(w http.ResponseWriter, target string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	h.log.Error("local file read failed", zap.String("path", target), zap.Error(err))
	http.Error(w, fmt.Sprintf("Failed to read local file: %v", err), http.StatusInternalServerError)
}

func (h *LocalHandler) allowed(target string) bool {
	if len(h.roots) == 0 {
		return true
	}
	for _, root := range h.roots {
		rel, err := filepath.Rel(root, target)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// localPath decodes the query value once more, the way clients that
// pre-encode paths expect, then unifies separators and cleans the result.
func localPath(raw string) (string, error) {
	// Second decode of an already decoded query value. A literal '%' in a
	// file name must arrive as %2525; a bare one fails here with 400.
	p, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	if filepath.Separator == '/' {
		p = strings.ReplaceAll(p, `\`, "/")
	}
	return filepath.Clean(filepath.FromSlash(p)), nil
}
