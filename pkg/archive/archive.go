// Package archive reads zip bundles of model files entirely in memory.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/Faultbox/modelboard/pkg/encoding"
)

// MaxEntrySize bounds the uncompressed size of a single entry.
const MaxEntrySize = 1 << 30

var zipMagic = []byte("PK\x03\x04")

var (
	// ErrNotArchive is returned when the data is not a readable zip.
	ErrNotArchive = errors.New("not a zip archive")
	// ErrEntryNotFound is returned by Read for unknown names.
	ErrEntryNotFound = errors.New("archive entry not found")
	// ErrEntryTooLarge is returned for entries above MaxEntrySize.
	ErrEntryTooLarge = errors.New("archive entry too large")
)

// Archive is an opened zip bundle.
type Archive struct {
	files []*zip.File
	names []string
	index map[string]int
}

// IsArchive reports whether name or the leading bytes identify a zip.
func IsArchive(name string, head []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".zip") {
		return true
	}
	return bytes.HasPrefix(head, zipMagic)
}

// Open parses the zip central directory. Entry names are decoded to UTF-8.
func Open(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}

	a := &Archive{index: make(map[string]int)}
	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name := encoding.DecodeEntryName(f.Name, !f.NonUTF8)
		name = strings.ReplaceAll(name, "\\", "/")
		if _, dup := a.index[name]; dup {
			continue
		}
		a.index[name] = len(a.files)
		a.files = append(a.files, f)
		a.names = append(a.names, name)
	}
	return a, nil
}

// List returns entry names in archive order.
func (a *Archive) List() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Contains checks if an entry exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.index[name]
	return ok
}

// Read decompresses one entry.
func (a *Archive) Read(name string) ([]byte, error) {
	i, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return readFile(a.files[i], name)
}

// Walk decompresses every entry in archive order.
func (a *Archive) Walk(fn func(name string, data []byte) error) error {
	for i, f := range a.files {
		data, err := readFile(f, a.names[i])
		if err != nil {
			return err
		}
		if err := fn(a.names[i], data); err != nil {
			return err
		}
	}
	return nil
}

func readFile(f *zip.File, name string) ([]byte, error) {
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrEntryTooLarge, name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, name)
	}
	return data, nil
}
