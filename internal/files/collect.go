package files

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath is returned for targets that do not exist.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoExtensions is returned when the extension list is empty.
	ErrNoExtensions = errors.New("invalid extensions list: at least one extension is required")
)

// DefaultExtensions are the file extensions searched for in directories.
// Matching is case-sensitive: FORCHECK treats upper-case extensions as
// sources that need preprocessing.
var DefaultExtensions = []string{
	"h", "f", "F",
	"f90", "F90", "f95", "F95",
	"f03", "F03", "f08", "F08",
}

// ParseExtensions splits a comma-separated extension list.
// Leading dots and blanks are removed and empty entries are dropped.
func ParseExtensions(csv string) []string {
	var exts []string
	for _, e := range strings.Split(csv, ",") {
		e = strings.TrimPrefix(strings.TrimSpace(e), ".")
		if e != "" {
			exts = append(exts, e)
		}
	}
	return exts
}

// Collector gathers source files from files and directories.
type Collector struct {
	extensions map[string]struct{}
	logger     *slog.Logger
	cwd        string

	files []string
	seen  map[string]struct{}
}

// Collect expands entries into a list of source files.
//
// Files are kept as given. Directories are walked and files whose extension
// is in extensions are added. Broken symbolic links are skipped with a
// warning; any other missing path fails with ErrInvalidPath. The returned
// paths are relative to the working directory when possible, without
// duplicates, in input order.
func Collect(entries, extensions []string, logger *slog.Logger) ([]string, error) {
	if len(extensions) == 0 {
		return nil, ErrNoExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	c := &Collector{
		extensions: make(map[string]struct{}, len(extensions)),
		logger:     logger,
		cwd:        cwd,
		seen:       make(map[string]struct{}),
	}
	for _, e := range extensions {
		c.extensions[e] = struct{}{}
	}

	for _, entry := range entries {
		if err := c.add(entry); err != nil {
			return nil, err
		}
	}
	return c.files, nil
}

func (c *Collector) add(entry string) error {
	info, err := os.Stat(entry)
	if err == nil && info.IsDir() {
		return c.searchDir(entry)
	}
	return c.checkAndAdd(entry)
}

func (c *Collector) searchDir(dir string) error {
	c.logger.Info("searching for files", "dir", dir)

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !c.matches(d.Name()) {
			return nil
		}
		return c.checkAndAdd(path)
	})
}

func (c *Collector) matches(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	_, ok := c.extensions[ext]
	return ok
}

func (c *Collector) checkAndAdd(path string) error {
	if _, err := os.Stat(path); err != nil {
		if fi, lerr := os.Lstat(path); lerr == nil && fi.Mode()&fs.ModeSymlink != 0 {
			c.logger.Warn("ignoring broken symlink", "path", path)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	rel := c.relative(path)
	if _, dup := c.seen[rel]; dup {
		return nil
	}
	c.seen[rel] = struct{}{}
	c.files = append(c.files, rel)
	return nil
}

func (c *Collector) relative(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel, err := filepath.Rel(c.cwd, abs)
	if err != nil {
		return abs
	}
	return rel
}
