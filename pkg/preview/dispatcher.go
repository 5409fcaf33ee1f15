package preview

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/emtchat/emtkit/pkg/docsource"
)

// Target describes one file the user asked to preview: its name, normalized
// type token, and whichever content sources are available. At least one of
// SourceURL and Text should be present for a previewable type; when neither
// is, dispatch degrades to a notice rather than failing.
type Target struct {
	Name      string
	Type      string // extension token; lowercased before matching
	SourceURL string // resolvable reference to the original binary, if any
	Text      string // inline extracted text, if any
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger used when source synthesis fails.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// Dispatcher selects exactly one rendering strategy per target. It never
// parses file contents and never returns an error: missing inputs map to
// notice decisions, and a failed text synthesis falls back to inline text.
type Dispatcher struct {
	store docsource.Store
	log   *slog.Logger
}

// NewDispatcher creates a dispatcher. The store backs synthesized sources for
// text previews; it may be nil, in which case text decisions carry inline
// content only.
func NewDispatcher(store docsource.Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decide routes a target to its viewer. First match wins, in order: pdf,
// word, spreadsheet, text-like, then a catch-all for anything with inline
// text, and finally the unsupported notice.
func (d *Dispatcher) Decide(ctx context.Context, t Target) Decision {
	switch typ := normalizeType(t); typ {
	case "pdf":
		return d.viewerOrFallback(t, ViewerPDF)

	case "doc", "docx":
		return d.viewerOrFallback(t, ViewerWord)

	case "xlsx", "xls", "csv":
		// Small tabular text renders cleaner as text than through the
		// spreadsheet viewer, so inline csv content wins over the original.
		if typ == "csv" && t.Text != "" {
			return d.textDecision(ctx, t, "text/csv")
		}
		if t.SourceURL != "" {
			return Decision{Kind: ViewerSpreadsheet, SourceURL: t.SourceURL}
		}
		if t.Text != "" {
			return d.textDecision(ctx, t, "text/plain")
		}
		return Decision{Kind: NoticeOriginalRequired}

	case "txt", "md", "markdown":
		if t.Text != "" {
			return d.textDecision(ctx, t, "text/plain")
		}
		if t.SourceURL != "" {
			return Decision{Kind: ViewerText, SourceURL: t.SourceURL, ContentType: "text/plain"}
		}
		return Decision{Kind: NoticeOriginalRequired}

	default:
		// Catch-all: anything that arrived with inline text is previewable
		// as text regardless of its nominal type. csv never reaches here,
		// so the synthesized source is always plain text.
		if t.Text != "" {
			return d.textDecision(ctx, t, "text/plain")
		}
		return Decision{
			Kind:        NoticeUnsupported,
			SourceURL:   t.SourceURL,
			CanDownload: t.SourceURL != "",
		}
	}
}

// viewerOrFallback implements the three-way pattern shared by pdf and word
// routing: original file, else inline text, else the original-required notice.
func (d *Dispatcher) viewerOrFallback(t Target, kind Kind) Decision {
	if t.SourceURL != "" {
		return Decision{Kind: kind, SourceURL: t.SourceURL}
	}
	if t.Text != "" {
		return Decision{Kind: ViewerText, Text: t.Text, ContentType: "text/plain"}
	}
	return Decision{Kind: NoticeOriginalRequired}
}

// textDecision builds a text viewer decision, synthesizing a source URL from
// the inline content when the target arrived without one. The synthesized
// handle rides along on the decision; the mounting caller owns its release.
func (d *Dispatcher) textDecision(ctx context.Context, t Target, contentType string) Decision {
	dec := Decision{
		Kind:        ViewerText,
		SourceURL:   t.SourceURL,
		Text:        t.Text,
		ContentType: contentType,
	}

	if dec.SourceURL != "" || d.store == nil {
		return dec
	}

	h, err := d.store.Put(ctx, synthName(t), contentType, strings.NewReader(t.Text))
	if err != nil {
		// Inline text still renders; the viewer just has no streamable source.
		d.log.WarnContext(ctx, "failed to synthesize preview source", "name", t.Name, "error", err)
		return dec
	}

	dec.SourceURL = h.URL()
	dec.Handle = h
	return dec
}

func normalizeType(t Target) string {
	typ := strings.ToLower(strings.TrimSpace(t.Type))
	typ = strings.TrimPrefix(typ, ".")
	if typ == "" && t.Name != "" {
		typ = strings.TrimPrefix(strings.ToLower(path.Ext(t.Name)), ".")
	}
	return typ
}

func synthName(t Target) string {
	if t.Name != "" {
		return t.Name
	}
	return "preview.txt"
}
