// Package resource turns heterogeneous asset inputs (URLs, local paths,
// uploaded blobs, data URIs, file bundles and zip archives) into a single
// addressable resource map.
package resource

import "fmt"

// Locator identifies a model input. It is a closed set of variants.
type Locator interface {
	fmt.Stringer
	isLocator()
}

// RemoteURL is a user-supplied address: http(s), file:, blob:, data: or an
// absolute filesystem path.
type RemoteURL struct {
	URL string
}

// LocalPath is an absolute path on the machine running the delivery service.
type LocalPath struct {
	Path string
}

// FileBlob is a single in-memory file, typically an upload.
type FileBlob struct {
	Name string
	Data []byte
}

// DataURI is an RFC 2397 data URI. Name supplies the extension when the
// media type alone is not enough.
type DataURI struct {
	URI  string
	Name string
}

// FileSet is a bundle of files keyed by their relative paths.
type FileSet struct {
	Files []FileBlob
}

func (RemoteURL) isLocator() {}
func (LocalPath) isLocator() {}
func (FileBlob) isLocator()  {}
func (DataURI) isLocator()   {}
func (FileSet) isLocator()   {}

func (l RemoteURL) String() string { return l.URL }
func (l LocalPath) String() string { return l.Path }
func (l FileBlob) String() string  { return fmt.Sprintf("blob %s (%d bytes)", l.Name, len(l.Data)) }
func (l DataURI) String() string {
	if l.Name != "" {
		return "data uri " + l.Name
	}
	return "data uri"
}
func (l FileSet) String() string { return fmt.Sprintf("file set (%d files)", len(l.Files)) }
