package docsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// memblobScheme prefixes URLs produced by MemoryStore.
const memblobScheme = "memblob://"

// MemoryStore keeps blobs in process memory, addressed as memblob://<id>.
// Releasing a handle frees the bytes. Intended for synthesized previews of
// inline text, where the content already lives in memory anyway.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob

	maxBytes int64
}

type memBlob struct {
	data        []byte
	contentType string
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxBlobSize caps the size of a single stored blob.
// Zero or negative means no cap.
func WithMaxBlobSize(n int64) MemoryOption {
	return func(s *MemoryStore) { s.maxBytes = n }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{blobs: make(map[string]memBlob)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores the content and returns a releasable memblob handle.
func (s *MemoryStore) Put(ctx context.Context, name, contentType string, r io.Reader) (*Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if name == "" {
		return nil, ErrEmptyName
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	if s.maxBytes > 0 {
		n, err := io.Copy(&buf, io.LimitReader(r, s.maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
		if n > s.maxBytes {
			return nil, ErrBlobTooLarge
		}
	} else {
		if _, err := io.Copy(&buf, r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.blobs[id] = memBlob{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()

	return &Handle{
		url:         memblobScheme + id,
		contentType: contentType,
		release:     func() { s.delete(id) },
	}, nil
}

// Open resolves a memblob URL back to its content.
// Returns false if the URL is foreign or the blob was released.
func (s *MemoryStore) Open(url string) (io.Reader, string, bool) {
	if len(url) <= len(memblobScheme) || url[:len(memblobScheme)] != memblobScheme {
		return nil, "", false
	}
	id := url[len(memblobScheme):]

	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(blob.data), blob.contentType, true
}

// Len reports how many blobs are currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *MemoryStore) delete(id string) {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
}
