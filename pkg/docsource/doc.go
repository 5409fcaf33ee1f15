// Package docsource provides source-material stores for document previews.
//
// A Store turns raw content into a resolvable source URL wrapped in a Handle.
// The handle is a scoped resource: whoever mounts a viewer on the URL owns
// the handle and releases it when the viewer closes. MemoryStore backs URLs
// with process memory (used for previews synthesized from inline text);
// S3Store uploads to S3 and mints presigned GET URLs with a bounded TTL.
package docsource
