package files

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadInputFile reads a list of targets, one per line.
// Text after '#' or '!' is a comment; blank lines are skipped.
func ReadInputFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, fmt.Errorf("input file not readable: %w", err)
	}
	defer f.Close()

	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexAny(line, "#!"); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return entries, nil
}
