// Package report renders a parsed FORCHECK listfile.
//
// Four writers share the Writer interface:
//   - HTMLWriter: a directory with an index page, one page per message code
//     and one page per source file with highlighted excerpts
//   - MarkdownWriter: a single document for merge requests and wikis
//   - JSONWriter: the report as data, for other tools
//   - SimpleWriter: console text, optionally coloured
//
// Writers only read the model. A diagnostic whose file or line is not
// available is rendered with its message only, in every format.
//
// Every format preserves the diagnostic count. ReadJSON and
// CountHTMLDiagnostics read it back for round-trip checks.
package report
