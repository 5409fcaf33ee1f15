package docsource

import (
	"context"
	"io"
)

// Store materializes document content and hands back a resolvable source URL
// wrapped in a Handle. Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the content and returns a handle whose URL resolves to it.
	// Ownership of the handle passes to the caller: Release must be called
	// once the consumer of the URL is done with it.
	Put(ctx context.Context, name, contentType string, r io.Reader) (*Handle, error)
}

// Handle is a scoped reference to stored content. Create-on-demand,
// release-on-close: callers release it when the viewer using the URL is
// dismissed so memory-backed blobs do not leak across open/close cycles.
type Handle struct {
	url         string
	contentType string
	release     func()
}

// URL returns the resolvable source URL for the content.
func (h *Handle) URL() string { return h.url }

// ContentType returns the MIME type the content was stored with.
func (h *Handle) ContentType() string { return h.contentType }

// Release frees whatever backs the handle. Safe to call multiple times.
func (h *Handle) Release() {
	if h.release != nil {
		h.release()
		h.release = nil
	}
}
