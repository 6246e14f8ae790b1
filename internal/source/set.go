package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/checkfort/internal/model"
)

// File is one loaded source file.
type File struct {
	// Path is the path the file was loaded from.
	Path string

	// Lines holds the decoded text, one entry per line, without line endings.
	Lines []string

	// Encoding is the encoding detected by Decode.
	Encoding string

	// Err is set when the file could not be read. Lines is empty then.
	Err error
}

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int {
	return len(f.Lines)
}

// Line returns the 1-based line n, or "" when n is out of range.
func (f *File) Line(n int) string {
	if n < 1 || n > len(f.Lines) {
		return ""
	}
	return f.Lines[n-1]
}

// Load reads and decodes a single file. Read errors are stored in File.Err.
func Load(path string) *File {
	f := &File{Path: path}
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the collected target list
	if err != nil {
		f.Err = err
		return f
	}
	text, enc := Decode(data)
	f.Lines = SplitLines(text)
	f.Encoding = enc
	return f
}

// Set is the collection of analyzed source files.
// It implements model.SourceLookup.
type Set struct {
	files  []*File
	byPath map[string]*File
}

// NewSet builds a Set from already loaded files.
func NewSet(files ...*File) *Set {
	s := &Set{
		files:  files,
		byPath: make(map[string]*File, len(files)),
	}
	for _, f := range files {
		s.byPath[filepath.Clean(f.Path)] = f
	}
	return s
}

// LoadAll loads paths concurrently with at most limit readers.
// A limit <= 0 uses GOMAXPROCS. The files keep the order of paths.
// Unreadable files are kept with Err set; only context cancellation
// makes LoadAll fail.
func LoadAll(ctx context.Context, paths []string, limit int) (*Set, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	files := make([]*File, len(paths))
	if len(paths) == 0 {
		return NewSet(), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(limit, len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			files[i] = Load(path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	return NewSet(files...), nil
}

// Files returns the files in load order.
func (s *Set) Files() []*File {
	return s.files
}

// Len returns the number of files in the set.
func (s *Set) Len() int {
	return len(s.files)
}

// Lookup returns the file loaded for path.
func (s *Set) Lookup(path string) (*File, bool) {
	if s == nil {
		return nil, false
	}
	f, ok := s.byPath[filepath.Clean(path)]
	return f, ok
}

// LineCount implements model.SourceLookup.
func (s *Set) LineCount(path string) (int, error) {
	f, ok := s.Lookup(path)
	if !ok {
		return 0, fmt.Errorf("%s: %w", path, model.ErrSourceNotAnalyzed)
	}
	if f.Err != nil {
		return 0, f.Err
	}
	return f.LineCount(), nil
}
