package docsource_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emtchat/emtkit/pkg/docsource"
)

func TestMemoryStore_PutOpenRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()

		h, err := store.Put(ctx, "notes.txt", "text/plain", strings.NewReader("hello"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(h.URL(), "memblob://"))
		assert.Equal(t, "text/plain", h.ContentType())

		r, ct, ok := store.Open(h.URL())
		require.True(t, ok)
		assert.Equal(t, "text/plain", ct)

		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("release frees the blob", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()

		h, err := store.Put(ctx, "a.csv", "text/csv", strings.NewReader("a,b"))
		require.NoError(t, err)
		require.Equal(t, 1, store.Len())

		h.Release()
		assert.Equal(t, 0, store.Len())

		_, _, ok := store.Open(h.URL())
		assert.False(t, ok)

		// Double release must be harmless.
		h.Release()
	})

	t.Run("repeated open close cycles do not accumulate", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()

		for range 25 {
			h, err := store.Put(ctx, "page.md", "text/plain", strings.NewReader("# hi"))
			require.NoError(t, err)
			h.Release()
		}
		assert.Equal(t, 0, store.Len())
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()

		_, err := store.Put(ctx, "", "text/plain", strings.NewReader("x"))
		assert.ErrorIs(t, err, docsource.ErrEmptyName)
	})

	t.Run("size cap is enforced", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore(docsource.WithMaxBlobSize(4))

		_, err := store.Put(ctx, "big.txt", "text/plain", strings.NewReader("12345"))
		assert.ErrorIs(t, err, docsource.ErrBlobTooLarge)

		h, err := store.Put(ctx, "small.txt", "text/plain", strings.NewReader("1234"))
		require.NoError(t, err)
		h.Release()
	})

	t.Run("foreign URLs do not resolve", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()
		_, _, ok := store.Open("https://example.com/doc.pdf")
		assert.False(t, ok)
	})
}
