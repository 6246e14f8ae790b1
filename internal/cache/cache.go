package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nao1215/checkfort/internal/model"
)

// SchemaVersion must be incremented whenever Payload or the parser output
// changes in a way that makes older entries wrong.
const SchemaVersion uint16 = 1

// entryDir is the subdirectory holding the entries.
const entryDir = "listfiles"

// Key identifies a cache entry.
type Key [sha256.Size]byte

// String returns the hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// NewKey derives the key for parsing listfile with the given settings.
// The order of ignore does not matter.
func NewKey(listfile []byte, ignore []int, legacy bool) Key {
	codes := slices.Clone(ignore)
	slices.Sort(codes)
	codes = slices.Compact(codes)

	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[:2], SchemaVersion)
	h.Write(buf[:2])
	if legacy {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	binary.BigEndian.PutUint64(buf[:], uint64(len(codes))) //nolint:gosec // length is never negative
	h.Write(buf[:])
	for _, c := range codes {
		binary.BigEndian.PutUint64(buf[:], uint64(int64(c))) //nolint:gosec // two's complement is fine for hashing
		h.Write(buf[:])
	}
	h.Write(listfile)

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Payload is the stored form of a parsed listfile.
type Payload struct {
	// Schema is SchemaVersion at the time of writing.
	Schema uint16 `msgpack:"schema"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `msgpack:"created_at"`

	Diagnostics       []model.Diagnostic      `msgpack:"diagnostics"`
	Warnings          []model.ParseWarning    `msgpack:"warnings"`
	Sums              map[string]int          `msgpack:"sums"`
	SummaryMismatches []model.SummaryMismatch `msgpack:"summary_mismatches"`
	IgnoredCodes      []int                   `msgpack:"ignored_codes"`
}

// NewPayload captures the parse output of report. Resolution fields are
// cleared so that a cached report is resolved afresh.
func NewPayload(report *model.Report) *Payload {
	diags := slices.Clone(report.Diagnostics)
	for i := range diags {
		diags[i].Resolution = model.ResolutionPending
		diags[i].UnresolvedReason = ""
	}
	return &Payload{
		Schema:            SchemaVersion,
		CreatedAt:         time.Now(),
		Diagnostics:       diags,
		Warnings:          report.Warnings,
		Sums:              report.Sums,
		SummaryMismatches: report.SummaryMismatches,
		IgnoredCodes:      report.IgnoredCodes,
	}
}

// Report rebuilds a report from the payload with a fresh run ID.
func (p *Payload) Report() *model.Report {
	r := model.NewReport()
	for _, d := range p.Diagnostics {
		r.Add(d)
	}
	r.Warnings = p.Warnings
	if p.Sums != nil {
		r.Sums = p.Sums
	}
	r.SummaryMismatches = p.SummaryMismatches
	r.IgnoredCodes = p.IgnoredCodes
	return r
}

// DiskCache stores payloads under a directory.
// It is safe for concurrent use by multiple goroutines.
type DiskCache struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger
}

// Open prepares a cache rooted at dir, creating it if needed.
func Open(dir string, logger *slog.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(dir, entryDir), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskCache{dir: dir, logger: logger}, nil
}

// Dir returns the cache root directory.
func (c *DiskCache) Dir() string {
	return c.dir
}

func (c *DiskCache) pathFor(key Key) string {
	return filepath.Join(c.dir, entryDir, key.String()+".mp")
}

// Put writes payload under key. The entry is written to a temporary file
// and renamed into place, so readers never see a partial entry.
// A nil cache discards the payload.
func (c *DiskCache) Put(key Key, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(target), "tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	tmp := f.Name()

	committed := false
	defer func() {
		if committed {
			return
		}
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			c.logger.Warn("failed to remove temporary cache file", "path", tmp, "error", rmErr)
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	committed = true
	return nil
}

// Get reads the payload stored under key. found is false when there is no
// entry or the entry was written with a different schema; stale entries
// are removed.
func (c *DiskCache) Get(key Key) (*Payload, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	payload, err := c.read(key)
	c.mu.RUnlock()

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if payload.Schema != SchemaVersion {
		c.logger.Debug("dropping stale cache entry", "key", key.String(), "schema", payload.Schema)
		c.remove(key)
		return nil, false, nil
	}
	return payload, true, nil
}

func (c *DiskCache) read(key Key) (*Payload, error) {
	f, err := os.Open(c.pathFor(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return &payload, nil
}

func (c *DiskCache) remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove cache entry", "key", key.String(), "error", err)
	}
}

// DropAll removes every entry. The directory is renamed first so that a
// concurrent writer never mixes old and new entries.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := filepath.Join(c.dir, entryDir)
	old := entries + ".old-" + time.Now().Format("20060102150405.000000000")
	if err := os.Rename(entries, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	if err := os.MkdirAll(entries, 0o750); err != nil {
		return fmt.Errorf("failed to recreate cache directory: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("failed to drop cache: %w", err)
	}
	return nil
}
