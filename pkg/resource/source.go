package resource

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Source is a fetchable byte source.
type Source interface {
	// Location is the address the bytes are fetched from.
	Location() string
	// Open starts reading. size is -1 when unknown.
	Open(ctx context.Context) (rc io.ReadCloser, size int64, err error)
}

// ReadAll opens src and reads it fully.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	rc, _, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type memorySource struct {
	handle string
	store  *BlobStore
}

func (s memorySource) Location() string { return s.handle }

func (s memorySource) Open(context.Context) (io.ReadCloser, int64, error) {
	b, ok := s.store.Get(s.handle)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownBlob, s.handle)
	}
	return io.NopCloser(bytes.NewReader(b.Data)), int64(len(b.Data)), nil
}

type bytesSource struct {
	location string
	data     []byte
}

func (s bytesSource) Location() string { return s.location }

func (s bytesSource) Open(context.Context) (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(s.data)), int64(len(s.data)), nil
}

type fileSource struct {
	path string
}

func (s fileSource) Location() string { return s.path }

func (s fileSource) Open(context.Context) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%s: not a regular file", s.path)
	}
	return f, st.Size(), nil
}

type httpSource struct {
	url    string
	client *http.Client
}

func (s httpSource) Location() string { return s.url }

func (s httpSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, 0, fmt.Errorf("%w: %w", ErrNotFound, &FetchError{URL: s.url, Status: resp.StatusCode})
		}
		return nil, 0, &FetchError{URL: s.url, Status: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

// DecodeDataURI splits an RFC 2397 data URI into media type and payload.
func DecodeDataURI(uri string) (mediaType string, data []byte, err error) {
	if !strings.HasPrefix(strings.ToLower(uri), "data:") {
		return "", nil, fmt.Errorf("not a data uri")
	}
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return "", nil, fmt.Errorf("data uri: missing ','")
	}
	meta, payload := uri[len("data:"):comma], uri[comma+1:]

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		isBase64 = true
		meta = meta[:len(meta)-len(";base64")]
	}
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		meta = meta[:i]
	}
	mediaType = meta

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some producers strip padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, fmt.Errorf("data uri: %w", err)
		}
		return mediaType, data, nil
	}
	dec, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data uri: %w", err)
	}
	return mediaType, []byte(dec), nil
}
