// Package source loads the analyzed Fortran sources so that diagnostics can
// be shown next to the code they refer to.
//
// Files are decoded to UTF-8 (byte order marks are honoured, legacy files
// fall back to Windows-1252), line endings are normalised and the text is
// split into lines. Files that cannot be read stay in the set with their
// error recorded, so that diagnostics pointing at them degrade to
// message-only output instead of failing the run.
package source
