// Package files turns command-line targets into the list of Fortran source
// files handed to FORCHECK.
//
// Targets may be files or directories. Directories are searched recursively
// for files whose extension is in the configured list. Targets can also be
// read from an input file holding one entry per line.
package files
