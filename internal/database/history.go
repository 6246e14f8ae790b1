package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/checkfort/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "history.db"

// timeLayout stores timestamps with a fixed-width fraction so that they
// sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// HistoryDB provides SQLite-based storage for run history.
// It manages connection pooling and provides methods for storing and
// querying runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- One row per rendered report
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		project TEXT NOT NULL,
		started_at TEXT NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0,
		exit_code INTEGER NOT NULL DEFAULT 0,
		forcheck_version TEXT,
		listfile TEXT,
		total INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		overflows INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		infos INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Occurrences per event code, used to compare runs
	CREATE TABLE IF NOT EXISTS run_codes (
		run INTEGER NOT NULL REFERENCES runs(id),
		number INTEGER NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		count INTEGER NOT NULL,
		PRIMARY KEY (run, number, severity)
	);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary contains summary information about a stored run.
// This is used for displaying history without loading the full report.
type RunSummary struct {
	// ID is the database row ID.
	ID int64 `json:"id"`

	// RunID is the report's run ID.
	RunID string `json:"run_id"`

	// Project is the directory the run belongs to.
	Project string `json:"project"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Executed is false for runs rendered from an existing listfile.
	Executed bool `json:"executed"`

	// ExitCode is the FORCHECK exit status.
	ExitCode int `json:"exit_code"`

	// Version is the FORCHECK version.
	Version string `json:"version,omitempty"`

	// Listfile is the parsed listfile.
	Listfile string `json:"listfile,omitempty"`

	// Counts holds the number of diagnostics per severity.
	Counts model.SeverityCounts `json:"counts"`
}

// Total returns the number of diagnostics of the run.
func (s RunSummary) Total() int {
	return s.Counts.Total()
}

// SaveRun stores report under project and returns its row ID.
// Saving a run ID twice fails.
func (hdb *HistoryDB) SaveRun(ctx context.Context, project string, report *model.Report) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	run := report.Run
	counts := report.CountBySeverity()
	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, project, started_at, executed, exit_code, forcheck_version, listfile,
		total, errors, overflows, warnings, infos, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		project,
		run.StartedAt.UTC().Format(timeLayout),
		run.Executed,
		run.ExitCode,
		run.Version,
		run.Listfile,
		counts.Total(),
		counts.Error,
		counts.Overflow,
		counts.Warning,
		counts.Info,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_codes (run, number, severity, message, count) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare code insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range report.Events() {
		if _, err := stmt.ExecContext(ctx, id, e.Code.Number, e.Code.Severity.Letter(), e.Message, e.Count); err != nil {
			return 0, fmt.Errorf("failed to save code %s: %w", e.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const summaryColumns = `id, run_id, project, started_at, executed, exit_code,
	COALESCE(forcheck_version, ''), COALESCE(listfile, ''), errors, overflows, warnings, infos`

// ListRuns returns all runs of project, newest first.
func (hdb *HistoryDB) ListRuns(ctx context.Context, project string) ([]RunSummary, error) {
	return hdb.querySummaries(ctx, `
	SELECT `+summaryColumns+`
	FROM runs
	WHERE project = ?
	ORDER BY started_at DESC, id DESC
	`, project)
}

// LatestRuns returns the n most recent runs of project, newest first.
func (hdb *HistoryDB) LatestRuns(ctx context.Context, project string, n int) ([]RunSummary, error) {
	if n <= 0 {
		return nil, nil
	}
	return hdb.querySummaries(ctx, `
	SELECT `+summaryColumns+`
	FROM runs
	WHERE project = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, project, n)
}

// ListProjects returns the projects that have stored runs.
func (hdb *HistoryDB) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT project FROM runs ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (hdb *HistoryDB) querySummaries(ctx context.Context, query string, args ...any) ([]RunSummary, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var startedAt string
		if err := rows.Scan(&s.ID, &s.RunID, &s.Project, &startedAt, &s.Executed, &s.ExitCode,
			&s.Version, &s.Listfile, &s.Counts.Error, &s.Counts.Overflow, &s.Counts.Warning, &s.Counts.Info); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetRun returns the report stored under runID.
// It returns ErrRunNotFound when there is no such run.
func (hdb *HistoryDB) GetRun(ctx context.Context, runID string) (*model.Report, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// CodeCounts returns the per-code occurrence counts of the run with
// the given run ID.
func (hdb *HistoryDB) CodeCounts(ctx context.Context, runID string) (map[model.EventCode]int, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT c.number, c.severity, c.count
	FROM run_codes c JOIN runs r ON r.id = c.run
	WHERE r.run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get code counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EventCode]int)
	for rows.Next() {
		var number, count int
		var letter string
		if err := rows.Scan(&number, &letter, &count); err != nil {
			return nil, fmt.Errorf("failed to scan code count: %w", err)
		}
		sev, err := model.ParseSeverity(letter)
		if err != nil {
			return nil, fmt.Errorf("invalid severity in history: %w", err)
		}
		counts[model.EventCode{Number: number, Severity: sev}] = count
	}
	return counts, rows.Err()
}

// DeleteRun removes a run and its code counts.
func (hdb *HistoryDB) DeleteRun(ctx context.Context, runID string) error {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_codes WHERE run IN (SELECT id FROM runs WHERE run_id = ?)`, runID); err != nil {
		return fmt.Errorf("failed to delete code counts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
