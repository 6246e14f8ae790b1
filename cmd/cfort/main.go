// Package main provides the entry point for the cfort CLI.
//
// cfort runs the FORCHECK Fortran analyser on a set of source files and
// turns the listfile it writes into a navigable HTML report with syntax
// highlighted source excerpts. JSON, Markdown and plain text renditions are
// available as well, and every run is recorded so that consecutive runs can
// be compared.
//
// Usage:
//
//	cfort [flags] files/dirs...
//	cfort [flags] -I FILE
//	cfort render --listfile FILE [files/dirs...]
//	cfort history
//
// See --help for all available options.
package main

// main is the entry point for cfort.
func main() {
	Execute()
}
