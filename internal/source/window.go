package source

// Window returns the 1-based inclusive range of lines around line, with
// context lines on each side, clamped to [1, total]. ok is false when line
// is not inside the file.
func Window(line, context, total int) (start, end int, ok bool) {
	if line < 1 || line > total {
		return 0, 0, false
	}
	if context < 0 {
		context = 0
	}
	start = max(1, line-context)
	end = min(total, line+context)
	return start, end, true
}

// Snippet is an excerpt of a source file centred on one line.
type Snippet struct {
	// Path is the source file.
	Path string

	// Start is the 1-based number of the first line in Lines.
	Start int

	// Focus is the 1-based number of the line the excerpt is about.
	Focus int

	// Lines are the excerpt lines.
	Lines []string
}

// End returns the 1-based number of the last line in the snippet.
func (s Snippet) End() int {
	return s.Start + len(s.Lines) - 1
}

// Numbered pairs each excerpt line with its line number.
func (s Snippet) Numbered() []NumberedLine {
	out := make([]NumberedLine, len(s.Lines))
	for i, text := range s.Lines {
		n := s.Start + i
		out[i] = NumberedLine{Number: n, Text: text, Focus: n == s.Focus}
	}
	return out
}

// NumberedLine is one line of a Snippet.
type NumberedLine struct {
	Number int
	Text   string
	Focus  bool
}

// Snippet extracts the lines around line. ok is false when the file was
// not readable or line is outside it.
func (f *File) Snippet(line, context int) (Snippet, bool) {
	if f == nil || f.Err != nil {
		return Snippet{}, false
	}
	start, end, ok := Window(line, context, len(f.Lines))
	if !ok {
		return Snippet{}, false
	}
	return Snippet{
		Path:  f.Path,
		Start: start,
		Focus: line,
		Lines: f.Lines[start-1 : end],
	}, true
}
