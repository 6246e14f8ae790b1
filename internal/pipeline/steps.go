package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/checkfort/internal/cache"
	"github.com/nao1215/checkfort/internal/database"
	"github.com/nao1215/checkfort/internal/forcheck"
	"github.com/nao1215/checkfort/internal/model"
	"github.com/nao1215/checkfort/internal/parser"
	"github.com/nao1215/checkfort/internal/report"
	"github.com/nao1215/checkfort/internal/source"
)

// DebugListfile is where ParseStep copies a listfile whose message
// summary disagrees with the parsed diagnostics, so that it can be attached
// to a bug report.
const DebugListfile = "forcheck_listfile.debug"

// RunStep runs FORCHECK on the state's files.
//
// Design decision: The exit status is stored in the state instead of being
// returned as an error. FORCHECK reports findings through its exit status,
// and a run with errors in the analysed code is a successful run for us.
type RunStep struct {
	install *forcheck.Installation
	options forcheck.Options
	timeout time.Duration
	logFile string
	logger  *slog.Logger

	onProgress func(file string)
	onWarning  func(forcheck.RuntimeWarning)
	now        func() time.Time
}

// RunStepOption configures a RunStep.
type RunStepOption func(*RunStep)

// WithRunTimeout bounds the FORCHECK run. Zero means no limit.
func WithRunTimeout(d time.Duration) RunStepOption {
	return func(s *RunStep) {
		s.timeout = d
	}
}

// WithRunLogFile sets the file receiving the FORCHECK console output.
func WithRunLogFile(path string) RunStepOption {
	return func(s *RunStep) {
		s.logFile = path
	}
}

// WithRunLogger sets a custom logger for the run step.
func WithRunLogger(logger *slog.Logger) RunStepOption {
	return func(s *RunStep) {
		s.logger = logger
	}
}

// WithRunProgress sets the callback receiving each file FORCHECK starts on.
func WithRunProgress(fn func(file string)) RunStepOption {
	return func(s *RunStep) {
		s.onProgress = fn
	}
}

// WithRunWarnings sets the callback receiving FORCHECK runtime warnings.
func WithRunWarnings(fn func(forcheck.RuntimeWarning)) RunStepOption {
	return func(s *RunStep) {
		s.onWarning = fn
	}
}

// NewRunStep creates a step running the given installation.
func NewRunStep(install *forcheck.Installation, options forcheck.Options, opts ...RunStepOption) *RunStep {
	s := &RunStep{
		install: install,
		options: options,
		logFile: forcheck.DefaultLogFile,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RunStep) Name() string {
	return "run_forcheck"
}

// Do executes FORCHECK and records the run in the state.
func (s *RunStep) Do(ctx context.Context, state *State) error {
	if len(state.Files) == 0 {
		return ErrNoFiles
	}

	cmd, err := s.install.Command(state.Listfile, state.Files, s.options)
	if err != nil {
		return err
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	exit, err := forcheck.Run(runCtx, cmd, forcheck.RunOptions{
		LogFile:    s.logFile,
		Logger:     s.logger,
		OnProgress: s.onProgress,
		OnWarning:  s.onWarning,
	})
	if err != nil {
		return err
	}

	state.Exit = exit
	state.Run = model.RunInfo{
		Executed:    true,
		Command:     cmd.String(),
		ExitCode:    exit.Code,
		ExitMessage: exit.Message,
		ExitKnown:   exit.Known,
		StartedAt:   started,
		Duration:    s.now().Sub(started),
		Environment: cmd.Env,
		Listfile:    state.Listfile,
		Files:       state.Files,
	}
	if !s.install.Version.IsZero() {
		state.Run.Version = s.install.Version.String()
	}

	s.logger.Info("forcheck finished", "exit_code", exit.Code, "message", exit.Message)
	if !exit.Known {
		s.logger.Warn("forcheck exited with an undocumented status", "exit_code", exit.Code, "log", s.logFile)
	}
	return nil
}

// ParseStep parses the listfile into a report.
// Parse results are cached by listfile content, so rendering the same
// listfile again with other report options skips the parser.
type ParseStep struct {
	ignore []int
	legacy bool
	cache  *cache.DiskCache

	// keep disables removing a listfile written by RunStep.
	keep bool

	// debugCopy is where questionable listfiles are copied; empty disables.
	debugCopy string

	logger *slog.Logger
}

// ParseStepOption configures a ParseStep.
type ParseStepOption func(*ParseStep)

// WithIgnoreCodes drops diagnostics with the given message numbers.
func WithIgnoreCodes(codes []int) ParseStepOption {
	return func(s *ParseStep) {
		s.ignore = codes
	}
}

// WithLegacyListfile parses listfiles of FORCHECK releases before 14.2.
func WithLegacyListfile(legacy bool) ParseStepOption {
	return func(s *ParseStep) {
		s.legacy = legacy
	}
}

// WithCache enables the parse cache. A nil cache disables it.
func WithCache(c *cache.DiskCache) ParseStepOption {
	return func(s *ParseStep) {
		s.cache = c
	}
}

// WithKeepListfile keeps the listfile written by FORCHECK.
func WithKeepListfile(keep bool) ParseStepOption {
	return func(s *ParseStep) {
		s.keep = keep
	}
}

// WithDebugCopy copies listfiles with summary mismatches to path.
func WithDebugCopy(path string) ParseStepOption {
	return func(s *ParseStep) {
		s.debugCopy = path
	}
}

// WithParseLogger sets a custom logger for the parse step.
func WithParseLogger(logger *slog.Logger) ParseStepOption {
	return func(s *ParseStep) {
		s.logger = logger
	}
}

// NewParseStep creates a listfile parsing step.
func NewParseStep(opts ...ParseStepOption) *ParseStep {
	s := &ParseStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return "parse_listfile"
}

// Do reads and parses the listfile.
func (s *ParseStep) Do(_ context.Context, state *State) error {
	data, err := os.ReadFile(state.Listfile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && state.Run.Executed {
			return fmt.Errorf("%w: %s", ErrNoListfile, state.Listfile)
		}
		return fmt.Errorf("failed to read listfile: %w", err)
	}

	key := cache.NewKey(data, s.ignore, s.legacy)
	rep, hit := s.cached(key)
	if !hit {
		rep, err = parser.New(
			parser.WithIgnoreCodes(s.ignore),
			parser.WithLegacyMode(s.legacy),
			parser.WithLogger(s.logger),
		).Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", state.Listfile, err)
		}
		if err := s.cache.Put(key, cache.NewPayload(rep)); err != nil {
			s.logger.Warn("failed to cache parse result", "error", err)
		}
	}
	state.FromCache = hit

	s.mergeRun(rep, state)
	state.Report = rep

	for _, w := range rep.Warnings {
		s.logger.Warn("unparsed listfile line", "line", w.Line, "reason", w.Reason)
	}
	if len(rep.SummaryMismatches) > 0 {
		s.logger.Warn("parsed diagnostics disagree with the forcheck summary", "codes", len(rep.SummaryMismatches))
		if s.debugCopy != "" {
			if err := os.WriteFile(s.debugCopy, data, 0o600); err != nil {
				s.logger.Warn("failed to save listfile copy", "path", s.debugCopy, "error", err)
			} else {
				s.logger.Debug("saved listfile copy", "path", s.debugCopy)
			}
		}
	}

	if state.Run.Executed && !s.keep {
		if err := os.Remove(state.Listfile); err != nil {
			s.logger.Warn("failed to remove listfile", "path", state.Listfile, "error", err)
		}
	}
	return nil
}

func (s *ParseStep) cached(key cache.Key) (*model.Report, bool) {
	payload, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.Warn("ignoring unreadable cache entry", "key", key.String(), "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	s.logger.Debug("using cached parse result", "key", key.String())
	return payload.Report(), true
}

// mergeRun keeps the parser's run ID and copies what RunStep recorded.
func (s *ParseStep) mergeRun(rep *model.Report, state *State) {
	run := state.Run
	run.RunID = rep.Run.RunID
	if run.StartedAt.IsZero() {
		run.StartedAt = rep.Run.StartedAt
	}
	run.Listfile = state.Listfile
	if len(run.Files) == 0 {
		run.Files = state.Files
	}
	rep.Run = run
}

// SourceStep loads the analysed source files and resolves every
// diagnostic against them.
type SourceStep struct {
	limit  int
	logger *slog.Logger
}

// NewSourceStep creates a step reading at most limit files at once.
// A limit <= 0 uses GOMAXPROCS.
func NewSourceStep(limit int, logger *slog.Logger) *SourceStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceStep{limit: limit, logger: logger}
}

// Name returns the step name.
func (s *SourceStep) Name() string {
	return "load_sources"
}

// Do loads the sources into the state and resolves the report.
func (s *SourceStep) Do(ctx context.Context, state *State) error {
	if state.Report == nil {
		return ErrNoReport
	}

	paths := state.Files
	if len(paths) == 0 {
		paths = diagnosticFiles(state.Report)
	}

	set, err := source.LoadAll(ctx, paths, s.limit)
	if err != nil {
		return err
	}
	for _, f := range set.Files() {
		if f.Err != nil {
			s.logger.Warn("failed to read source", "file", f.Path, "error", f.Err)
		}
	}

	state.Sources = set
	state.Report.Resolve(set)
	if n := len(state.Report.Unresolved()); n > 0 {
		s.logger.Info("diagnostics without source location", "count", n)
	}
	return nil
}

// diagnosticFiles returns the distinct files named by diagnostics in
// listfile order.
func diagnosticFiles(rep *model.Report) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, d := range rep.Diagnostics {
		if d.File == "" {
			continue
		}
		if _, ok := seen[d.File]; ok {
			continue
		}
		seen[d.File] = struct{}{}
		paths = append(paths, d.File)
	}
	return paths
}

// WriterFactory builds the report writers once the sources are loaded.
type WriterFactory func(sources report.Sources) ([]report.Writer, error)

// RenderStep writes the reports.
type RenderStep struct {
	factory WriterFactory
}

// NewRenderStep creates a step writing the reports built by factory.
func NewRenderStep(factory WriterFactory) *RenderStep {
	return &RenderStep{factory: factory}
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render_reports"
}

// Do renders the report with every writer in order.
func (s *RenderStep) Do(_ context.Context, state *State) error {
	if state.Report == nil {
		return ErrNoReport
	}

	var sources report.Sources
	if state.Sources != nil {
		sources = state.Sources
	}
	writers, err := s.factory(sources)
	if err != nil {
		return err
	}

	n, err := report.NewMultiWriter(writers...).Write(state.Report)
	state.Written = n
	return err
}

// HistoryStep records the run in the history database.
type HistoryStep struct {
	db     *database.HistoryDB
	logger *slog.Logger
}

// NewHistoryStep creates a step saving runs to db. A nil db makes the
// step a no-op.
func NewHistoryStep(db *database.HistoryDB, logger *slog.Logger) *HistoryStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStep{db: db, logger: logger}
}

// Name returns the step name.
func (s *HistoryStep) Name() string {
	return "save_history"
}

// Do saves the report.
func (s *HistoryStep) Do(ctx context.Context, state *State) error {
	if s.db == nil {
		return nil
	}
	if state.Report == nil {
		return ErrNoReport
	}

	id, err := s.db.SaveRun(ctx, state.Project, state.Report)
	if err != nil {
		return fmt.Errorf("failed to save run history: %w", err)
	}
	state.HistoryID = id
	s.logger.Debug("saved run", "run_id", state.Report.Run.RunID, "project", state.Project)
	return nil
}
