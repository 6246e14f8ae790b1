// Package model defines the core data structures used throughout checkfort.
//
// This package contains the following main types:
//   - Diagnostic: A single issue reported by FORCHECK
//   - Report: The parsed, navigable collection of diagnostics
//   - RunInfo: Metadata about the FORCHECK invocation that produced a report
//   - Severity: The FORCHECK message category (informative, warning, overflow, error)
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The parser, report writers, cache and history database all
// need these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// to msgpack for the parse cache.
package model
