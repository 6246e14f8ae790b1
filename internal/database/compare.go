package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/nao1215/checkfort/internal/model"
)

// CodeChange describes how the occurrences of one event code differ
// between two runs.
type CodeChange struct {
	// Code is the FORCHECK event code.
	Code model.EventCode `json:"code"`

	// Before is the count in the older run.
	Before int `json:"before"`

	// After is the count in the newer run.
	After int `json:"after"`
}

// Delta returns After - Before.
func (c CodeChange) Delta() int {
	return c.After - c.Before
}

// Comparison is the difference between two runs.
type Comparison struct {
	// Previous and Current identify the compared runs.
	Previous RunSummary `json:"previous"`
	Current  RunSummary `json:"current"`

	// New lists codes that only occur in the current run.
	New []CodeChange `json:"new"`

	// Resolved lists codes that only occur in the previous run.
	Resolved []CodeChange `json:"resolved"`

	// Changed lists codes whose count differs between the runs.
	Changed []CodeChange `json:"changed"`
}

// HasChanges reports whether the runs differ in any code count.
func (c *Comparison) HasChanges() bool {
	return len(c.New)+len(c.Resolved)+len(c.Changed) > 0
}

// Compare computes the code differences between prev and cur.
// Each list is ordered by code number, then severity from most severe.
func Compare(prev, cur map[model.EventCode]int) *Comparison {
	cmp := &Comparison{}
	for code, after := range cur {
		before, ok := prev[code]
		switch {
		case !ok:
			cmp.New = append(cmp.New, CodeChange{Code: code, After: after})
		case before != after:
			cmp.Changed = append(cmp.Changed, CodeChange{Code: code, Before: before, After: after})
		}
	}
	for code, before := range prev {
		if _, ok := cur[code]; !ok {
			cmp.Resolved = append(cmp.Resolved, CodeChange{Code: code, Before: before})
		}
	}

	sortChanges(cmp.New)
	sortChanges(cmp.Resolved)
	sortChanges(cmp.Changed)
	return cmp
}

func sortChanges(changes []CodeChange) {
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i].Code, changes[j].Code
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.Severity > b.Severity
	})
}

// CompareRuns compares two stored runs of the same database.
func (hdb *HistoryDB) CompareRuns(ctx context.Context, prev, cur RunSummary) (*Comparison, error) {
	before, err := hdb.CodeCounts(ctx, prev.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", prev.RunID, err)
	}
	after, err := hdb.CodeCounts(ctx, cur.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", cur.RunID, err)
	}

	cmp := Compare(before, after)
	cmp.Previous = prev
	cmp.Current = cur
	return cmp, nil
}

// GetRunSummary returns the summary of the run with the given run ID.
func (hdb *HistoryDB) GetRunSummary(ctx context.Context, runID string) (RunSummary, error) {
	runs, err := hdb.querySummaries(ctx, `
	SELECT `+summaryColumns+`
	FROM runs
	WHERE run_id = ?
	`, runID)
	if err != nil {
		return RunSummary{}, err
	}
	if len(runs) == 0 {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runs[0], nil
}
