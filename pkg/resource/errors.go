package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLoadableAsset is returned when the input holds no recognized model file.
	ErrNoLoadableAsset = errors.New("no loadable model asset")
	// ErrUnsupportedFormat is returned for recognized formats without a parser.
	ErrUnsupportedFormat = errors.New("unsupported model format")
	// ErrDisallowedScheme is returned for ftp, unknown schemes and bare relative paths.
	ErrDisallowedScheme = errors.New("disallowed locator scheme")
	// ErrUnknownBlob is returned for blob handles that were never issued or were revoked.
	ErrUnknownBlob = errors.New("unknown blob handle")
	// ErrNotFound is returned when a reference cannot be fetched from the map's origin.
	ErrNotFound = errors.New("resource not found")
)

// ResolutionError reports a failure to turn a locator into a resource map.
type ResolutionError struct {
	Op      string
	Locator string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s %q: %v", e.Op, e.Locator, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// FetchError reports a non-success HTTP status while fetching a source.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}
