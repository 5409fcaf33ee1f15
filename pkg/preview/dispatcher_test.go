package preview_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emtchat/emtkit/pkg/docsource"
	"github.com/emtchat/emtkit/pkg/preview"
)

func TestDispatcher_Decide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := preview.NewDispatcher(docsource.NewMemoryStore())

	cases := []struct {
		name   string
		target preview.Target
		want   preview.Kind
	}{
		{"pdf with source", preview.Target{Type: "pdf", SourceURL: "blob://x"}, preview.ViewerPDF},
		{"pdf with only text", preview.Target{Type: "pdf", Text: "hello"}, preview.ViewerText},
		{"pdf with nothing", preview.Target{Type: "pdf"}, preview.NoticeOriginalRequired},
		{"docx with source", preview.Target{Type: "docx", SourceURL: "blob://d"}, preview.ViewerWord},
		{"doc with source", preview.Target{Type: "doc", SourceURL: "blob://d"}, preview.ViewerWord},
		{"docx with only text", preview.Target{Type: "docx", Text: "report body"}, preview.ViewerText},
		{"docx with nothing", preview.Target{Type: "docx"}, preview.NoticeOriginalRequired},
		{"xlsx with source", preview.Target{Type: "xlsx", SourceURL: "blob://z"}, preview.ViewerSpreadsheet},
		{"xls with source", preview.Target{Type: "xls", SourceURL: "blob://z"}, preview.ViewerSpreadsheet},
		{"csv with source and text prefers text", preview.Target{Type: "csv", SourceURL: "blob://y", Text: "a,b\n1,2"}, preview.ViewerText},
		{"csv with source only", preview.Target{Type: "csv", SourceURL: "blob://y"}, preview.ViewerSpreadsheet},
		{"xlsx with only text", preview.Target{Type: "xlsx", Text: "1\t2"}, preview.ViewerText},
		{"xlsx with nothing", preview.Target{Type: "xlsx"}, preview.NoticeOriginalRequired},
		{"txt with text", preview.Target{Type: "txt", Text: "notes"}, preview.ViewerText},
		{"markdown with text", preview.Target{Type: "markdown", Text: "# h1"}, preview.ViewerText},
		{"md with source only", preview.Target{Type: "md", SourceURL: "blob://m"}, preview.ViewerText},
		{"txt with nothing", preview.Target{Type: "txt"}, preview.NoticeOriginalRequired},
		{"unknown type with text", preview.Target{Type: "log", Text: "boot ok"}, preview.ViewerText},
		{"zip with source", preview.Target{Type: "zip", SourceURL: "blob://w"}, preview.NoticeUnsupported},
		{"zip with nothing", preview.Target{Type: "zip"}, preview.NoticeUnsupported},
		{"uppercase type is normalized", preview.Target{Type: "PDF", SourceURL: "blob://x"}, preview.ViewerPDF},
		{"type derived from name", preview.Target{Name: "scan.pdf", SourceURL: "blob://x"}, preview.ViewerPDF},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dec := d.Decide(ctx, tc.target)
			assert.Equal(t, tc.want, dec.Kind)
			dec.Close()
		})
	}
}

func TestDispatcher_TextFallbackContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := preview.NewDispatcher(nil)

	dec := d.Decide(ctx, preview.Target{Type: "pdf", Text: "hello"})
	require.Equal(t, preview.ViewerText, dec.Kind)
	assert.Equal(t, "hello", dec.Text)
	assert.Empty(t, dec.SourceURL)
}

func TestDispatcher_DownloadAffordance(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	d := preview.NewDispatcher(nil)

	withURL := d.Decide(ctx, preview.Target{Type: "zip", SourceURL: "blob://w"})
	assert.True(t, withURL.CanDownload)
	assert.Equal(t, "blob://w", withURL.SourceURL)

	withoutURL := d.Decide(ctx, preview.Target{Type: "zip"})
	assert.False(t, withoutURL.CanDownload)
}

func TestDispatcher_Synthesis(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("csv text gets a csv-typed source", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()
		d := preview.NewDispatcher(store)

		dec := d.Decide(ctx, preview.Target{Name: "rates.csv", Type: "csv", Text: "a,b\n1,2"})
		require.Equal(t, preview.ViewerText, dec.Kind)
		assert.Equal(t, "text/csv", dec.ContentType)
		require.NotNil(t, dec.Handle)
		require.NotEmpty(t, dec.SourceURL)

		r, ct, ok := store.Open(dec.SourceURL)
		require.True(t, ok)
		assert.Equal(t, "text/csv", ct)
		data, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, "a,b\n1,2", string(data))

		// Dismissing the viewer releases the synthesized blob.
		dec.Close()
		assert.Equal(t, 0, store.Len())
	})

	t.Run("plain text gets text/plain", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()
		d := preview.NewDispatcher(store)

		dec := d.Decide(ctx, preview.Target{Name: "notes.txt", Type: "txt", Text: "remember"})
		require.Equal(t, preview.ViewerText, dec.Kind)
		assert.Equal(t, "text/plain", dec.ContentType)
		require.NotNil(t, dec.Handle)
		dec.Close()
	})

	t.Run("catch-all text is always plain", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()
		d := preview.NewDispatcher(store)

		dec := d.Decide(ctx, preview.Target{Name: "boot.log", Type: "log", Text: "boot ok"})
		require.Equal(t, preview.ViewerText, dec.Kind)
		assert.Equal(t, "text/plain", dec.ContentType)
		require.NotNil(t, dec.Handle)

		_, ct, ok := store.Open(dec.SourceURL)
		require.True(t, ok)
		assert.Equal(t, "text/plain", ct)
		dec.Close()
	})

	t.Run("existing URL suppresses synthesis", func(t *testing.T) {
		t.Parallel()
		store := docsource.NewMemoryStore()
		d := preview.NewDispatcher(store)

		dec := d.Decide(ctx, preview.Target{Type: "md", SourceURL: "blob://m", Text: "# h"})
		assert.Equal(t, "blob://m", dec.SourceURL)
		assert.Nil(t, dec.Handle)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("synthesis failure degrades to inline text", func(t *testing.T) {
		t.Parallel()
		d := preview.NewDispatcher(failingStore{})

		dec := d.Decide(ctx, preview.Target{Type: "txt", Text: "still readable"})
		require.Equal(t, preview.ViewerText, dec.Kind)
		assert.Equal(t, "still readable", dec.Text)
		assert.Empty(t, dec.SourceURL)
		assert.Nil(t, dec.Handle)
	})
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, string, io.Reader) (*docsource.Handle, error) {
	return nil, errors.New("store unavailable")
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pdf", preview.ViewerPDF.String())
	assert.Equal(t, "unsupported", preview.NoticeUnsupported.String())
	assert.True(t, preview.NoticeOriginalRequired.IsNotice())
	assert.False(t, preview.ViewerText.IsNotice())
}
