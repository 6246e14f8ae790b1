// Package database stores the history of checkfort runs in SQLite.
//
// Every run adds one row with its severity counts, the occurrence count of
// each FORCHECK message code and the JSON report. The per-code counts are
// what CompareRuns works on; the stored report lets "cfort history --show"
// print an old run in any text format.
//
// The database is a single history.db file opened through modernc.org/sqlite
// in WAL mode, so cfort stays a pure Go binary.
//
// Runs are grouped by project, the absolute directory cfort was run in, so
// that the history of unrelated source trees never mixes.
package database
