// Package preview routes documents to viewers. Given a file's name, type
// token and available content sources, the dispatcher deterministically picks
// exactly one rendering strategy: a specialized viewer (pdf, word,
// spreadsheet, text) or a designed fallback notice. There is no error path by
// design; every input combination maps to a defined visual outcome.
//
// Text previews synthesized from inline content acquire a scoped source
// handle through a docsource.Store. The dispatcher does not track these:
// ownership passes with the Decision to whoever mounts the viewer, and
// Decision.Close releases the handle when the viewer is dismissed.
package preview
