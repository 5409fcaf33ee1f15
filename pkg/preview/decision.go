package preview

import "github.com/emtchat/emtkit/pkg/docsource"

// Kind identifies the rendering strategy selected for a target.
// The set is closed: dispatch switches over it exhaustively, so adding a
// viewer without handling it everywhere is visible at review time.
type Kind int

const (
	// ViewerPDF streams the original file into the PDF viewer.
	ViewerPDF Kind = iota
	// ViewerWord streams the original file into the Word document viewer.
	ViewerWord
	// ViewerSpreadsheet streams the original file into the spreadsheet viewer.
	ViewerSpreadsheet
	// ViewerText renders plain text or markdown, from inline content or a URL.
	ViewerText
	// NoticeOriginalRequired tells the user the original file is needed
	// for this format and nothing renderable is available.
	NoticeOriginalRequired
	// NoticeUnsupported tells the user the format has no preview,
	// offering a direct download when a source URL exists.
	NoticeUnsupported
)

func (k Kind) String() string {
	switch k {
	case ViewerPDF:
		return "pdf"
	case ViewerWord:
		return "word"
	case ViewerSpreadsheet:
		return "spreadsheet"
	case ViewerText:
		return "text"
	case NoticeOriginalRequired:
		return "original-required"
	case NoticeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// IsNotice reports whether the decision is a fallback notice rather than a
// mounted viewer.
func (k Kind) IsNotice() bool {
	return k == NoticeOriginalRequired || k == NoticeUnsupported
}

// Decision is the outcome of dispatching one target. Exactly one is produced
// for any input; there is no error channel. Every decision, viewer or notice,
// carries a dismiss affordance in the consuming UI.
type Decision struct {
	Kind Kind

	// SourceURL is the URL the viewer streams the content from.
	// May be synthesized for text targets that arrived as inline content.
	SourceURL string

	// Text is the inline content for ViewerText decisions.
	Text string

	// ContentType is the MIME type the source content is tagged with.
	ContentType string

	// CanDownload is set on NoticeUnsupported when a source URL exists and a
	// direct download can be offered.
	CanDownload bool

	// Handle is non-nil when SourceURL was synthesized from inline text.
	// Ownership passes to the caller: release it when the viewer closes.
	Handle *docsource.Handle
}

// Close releases a synthesized source, if any. It is the hook viewers wire to
// their dismiss action; calling it more than once is harmless.
func (d *Decision) Close() {
	if d.Handle != nil {
		d.Handle.Release()
	}
}
