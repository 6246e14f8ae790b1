// Package cache stores parsed listfiles on disk.
//
// Parsing a large listfile is the slowest step of "cfort render" when the
// same listfile is rendered repeatedly in several formats. The cache keeps
// the parse result in msgpack form, keyed by a digest of everything that
// influences parsing: the listfile bytes, the ignored codes, the legacy
// flag and the payload schema version.
//
// Only parse output is cached. Run information and source resolution are
// recomputed on every use because they depend on the invocation.
package cache
