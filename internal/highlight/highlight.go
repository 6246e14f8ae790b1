package highlight

import (
	"bytes"
	"html"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "friendly"

// ContainerClass is the CSS class of the element that wraps highlighted
// code. The style sheet returned by CSS is scoped to it.
const ContainerClass = "chroma"

// fixedFormExtensions are the extensions FORCHECK treats as fixed-form
// source unless free form is forced.
var fixedFormExtensions = map[string]bool{
	".f": true,
	".F": true,
	".h": true,
}

// Highlighter turns source lines into highlighted HTML fragments.
type Highlighter struct {
	style    *chroma.Style
	freeForm bool
}

// New creates a Highlighter. An unknown style name falls back to the
// default style; use KnownStyle to detect that beforehand.
// freeForm forces the free-form lexer for every file.
func New(styleName string, freeForm bool) *Highlighter {
	if !KnownStyle(styleName) {
		styleName = DefaultStyle
	}
	return &Highlighter{
		style:    styles.Get(styleName),
		freeForm: freeForm,
	}
}

// KnownStyle reports whether chroma has a style with the given name.
func KnownStyle(name string) bool {
	if name == "" {
		return false
	}
	for _, n := range styles.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// StyleName returns the name of the style in use.
func (h *Highlighter) StyleName() string {
	return h.style.Name
}

// CSS returns the style sheet for the highlighted fragments.
func (h *Highlighter) CSS() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, h.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LexerFor picks the Fortran lexer for path.
func LexerFor(path string, freeForm bool) chroma.Lexer {
	var lexer chroma.Lexer
	if !freeForm && fixedFormExtensions[filepath.Ext(path)] {
		lexer = lexers.Get("fortranfixed")
	}
	if lexer == nil {
		lexer = lexers.Get("fortran")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// Lines highlights lines and returns one HTML fragment per input line.
// When tokenising fails the lines are returned escaped but unhighlighted.
func (h *Highlighter) Lines(path string, lines []string) []template.HTML {
	out := Plain(lines)
	if len(lines) == 0 {
		return out
	}

	lexer := LexerFor(path, h.freeForm)
	it, err := lexer.Tokenise(nil, strings.Join(lines, "\n")+"\n")
	if err != nil {
		return out
	}

	for i, tokens := range chroma.SplitTokensIntoLines(it.Tokens()) {
		if i >= len(out) {
			break
		}
		out[i] = renderLine(tokens)
	}
	return out
}

// Plain escapes lines without highlighting them.
func Plain(lines []string) []template.HTML {
	out := make([]template.HTML, len(lines))
	for i, l := range lines {
		out[i] = template.HTML(html.EscapeString(l)) //nolint:gosec // escaped above
	}
	return out
}

func renderLine(tokens []chroma.Token) template.HTML {
	var b strings.Builder
	for _, tok := range tokens {
		value := strings.TrimRight(tok.Value, "\n")
		if value == "" {
			continue
		}
		escaped := html.EscapeString(value)
		class := tokenClass(tok.Type)
		if class == "" {
			b.WriteString(escaped)
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(escaped)
		b.WriteString(`</span>`)
	}
	return template.HTML(b.String()) //nolint:gosec // token values are escaped
}

// tokenClass returns the chroma CSS class for t, falling back to its
// sub-category and category the way the chroma HTML formatter does.
func tokenClass(t chroma.TokenType) string {
	for _, candidate := range []chroma.TokenType{t, t.SubCategory(), t.Category()} {
		if class, ok := chroma.StandardTypes[candidate]; ok && class != "" {
			return class
		}
	}
	return ""
}
