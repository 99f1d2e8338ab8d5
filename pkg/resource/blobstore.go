package resource

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// BlobScheme prefixes ephemeral in-memory handles.
const BlobScheme = "blob:"

// Blob is a named in-memory file behind a handle.
type Blob struct {
	Name string
	Data []byte
}

// BlobStore issues addressable handles for in-memory data. Handles stay
// valid until revoked.
type BlobStore struct {
	data map[string]Blob
	mu   sync.RWMutex

	// Stats
	issued  int
	revoked int
}

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string]Blob)}
}

// Register stores a named blob and returns a fresh handle.
func (s *BlobStore) Register(name string, data []byte) string {
	handle := BlobScheme + uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[handle] = Blob{Name: name, Data: data}
	s.issued++
	return handle
}

// Get retrieves the blob behind a handle.
func (s *BlobStore) Get(handle string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[handle]
	return b, ok
}

// Revoke invalidates a handle.
func (s *BlobStore) Revoke(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBlob, handle)
	}
	delete(s.data, handle)
	s.revoked++
	return nil
}

// Len returns the number of live handles.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Stats returns how many handles were issued and revoked.
func (s *BlobStore) Stats() (issued, revoked int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issued, s.revoked
}
