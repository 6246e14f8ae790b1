package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/net/html"
)

// ErrNoDiagnosticsMeta is returned when an HTML page lacks the diagnostics
// count written by HTMLWriter.
var ErrNoDiagnosticsMeta = errors.New("diagnostics count not found in HTML report")

// CountHTMLDiagnostics reads the diagnostics count from an index page
// written by HTMLWriter.
func CountHTMLDiagnostics(r io.Reader) (int, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("failed to read HTML report: %w", err)
			}
			return 0, ErrNoDiagnosticsMeta

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "body" {
				return 0, ErrNoDiagnosticsMeta
			}
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, a := range tok.Attr {
				switch a.Key {
				case "name":
					name = a.Val
				case "content":
					content = a.Val
				}
			}
			if name != DiagnosticsMeta {
				continue
			}
			n, err := strconv.Atoi(content)
			if err != nil {
				return 0, fmt.Errorf("invalid diagnostics count %q: %w", content, err)
			}
			return n, nil
		}
	}
}

// CountHTMLReportDiagnostics opens the index page of the report in dir and
// returns its diagnostics count.
func CountHTMLReportDiagnostics(dir string) (int, error) {
	f, err := os.Open(filepath.Join(dir, IndexPage)) //nolint:gosec // report directory chosen by the user
	if err != nil {
		return 0, fmt.Errorf("failed to open HTML report: %w", err)
	}
	defer f.Close()
	return CountHTMLDiagnostics(f)
}
