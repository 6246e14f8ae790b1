package pipeline

import (
	"time"

	"github.com/nao1215/checkfort/internal/forcheck"
	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/source"
)

// State is passed from step to step.
// Every step reads what its predecessors produced and adds its own result.
type State struct {
	// Project identifies the analysed code base in the history database,
	// usually the absolute working directory.
	Project string

	// Files are the source files given to FORCHECK. For a rendered listfile
	// they may be empty, in which case the files named by the diagnostics
	// are loaded.
	Files []string

	// Listfile is the listfile FORCHECK writes, or the one being rendered.
	Listfile string

	// Run is filled by the run_forcheck step and copied into the report.
	Run model.RunInfo

	// Exit is the FORCHECK exit status.
	Exit forcheck.ExitStatus

	// Report is the parsed listfile.
	Report *model.Report

	// FromCache reports whether Report came from the parse cache.
	FromCache bool

	// Sources are the loaded source files.
	Sources *source.Set

	// Written is the number of bytes the report writers wrote.
	Written int

	// HistoryID is the database row of the saved run, or 0.
	HistoryID int64

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string

	// StepTimes holds the duration of every completed step.
	StepTimes map[string]time.Duration

	// Err is the first step error.
	Err error

	// ErrorMessage is Err as text.
	ErrorMessage string

	// Cancelled is set when the context ended before a step started.
	Cancelled bool
}

// NewState creates the state for analysing files into listfile.
func NewState(project, listfile string, files []string) *State {
	return &State{
		Project:  project,
		Files:    files,
		Listfile: listfile,
	}
}

func (s *State) recordError(err error) {
	if s.Err != nil {
		return
	}
	s.Err = err
	s.ErrorMessage = err.Error()
}

func (s *State) recordTime(step string, d time.Duration) {
	if s.StepTimes == nil {
		s.StepTimes = make(map[string]time.Duration)
	}
	s.StepTimes[step] += d
}
