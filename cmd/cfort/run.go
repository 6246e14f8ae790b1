package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nao1215/checkfort/internal/cache"
	"github.com/nao1215/checkfort/internal/config"
	"github.com/nao1215/checkfort/internal/database"
	"github.com/nao1215/checkfort/internal/highlight"
	"github.com/nao1215/checkfort/internal/log"
	"github.com/nao1215/checkfort/internal/pipeline"
	"github.com/nao1215/checkfort/internal/report"
)

// header is the first line printed by every run.
func header() string {
	return fmt.Sprintf("CheckFort (Version %s)", getVersion())
}

// console prints progress messages for the user. Logs go to stderr through
// slog; console output is what a user running cfort by hand reads.
type console struct {
	w     io.Writer
	quiet bool

	// stdout is the command's standard output, which w differs from when
	// the JSON or Markdown report is printed there.
	stdout io.Writer
}

// newConsole prints to stdout, or to stderr when stdout carries the JSON or
// Markdown report.
func newConsole(cmd *cobra.Command, cfg *config.Config) *console {
	w := cmd.OutOrStdout()
	if reportOnStdout(cfg) {
		w = cmd.ErrOrStderr()
	}
	return &console{w: w, quiet: cfg.Quiet, stdout: cmd.OutOrStdout()}
}

// Printf prints unless quiet mode is on.
func (c *console) Printf(format string, a ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.w, format, a...)
}

// setupLogger creates the structured logger for cfort's log output.
// Licence material is masked before anything reaches stderr.
func setupLogger(cfg *config.Config) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, log.Level(cfg.Quiet, cfg.Verbose, cfg.Debug))
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// Cancelling it kills a running forchk.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// extensionGlobs formats extensions as "*.f *.f90 ...".
func extensionGlobs(exts []string) string {
	globs := make([]string, len(exts))
	for i, e := range exts {
		globs[i] = "*." + e
	}
	return strings.Join(globs, " ")
}

// reportOnStdout reports whether the JSON or Markdown report goes to stdout.
func reportOnStdout(cfg *config.Config) bool {
	return (cfg.JSONReport || cfg.MarkdownReport) && cfg.ReportFile == ""
}

// colorEnabled decides whether the console report is coloured: never when
// disabled by flag or NO_COLOR, otherwise only on a terminal.
func colorEnabled(cfg *config.Config, w io.Writer) bool {
	if cfg.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

// projectDir identifies the analysed code base in the history database.
func projectDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if abs, err := filepath.Abs(cwd); err == nil {
		return abs
	}
	return cwd
}

// openCache opens the parse cache. Failing to open it only costs speed, so
// errors are logged and a nil cache is returned.
func openCache(cfg *config.Config, logger *slog.Logger) *cache.DiskCache {
	if cfg.CacheDir == "" {
		return nil
	}
	c, err := cache.Open(cfg.CacheDir, logger)
	if err != nil {
		logger.Warn("parse cache disabled", "dir", cfg.CacheDir, "error", err)
		return nil
	}
	if cfg.ClearCache {
		if err := c.DropAll(); err != nil {
			logger.Warn("failed to clear the parse cache", "dir", c.Dir(), "error", err)
		} else {
			logger.Info("parse cache cleared", "dir", c.Dir())
		}
	}
	return c
}

// openHistory opens the history database, or returns nil when history is
// disabled or the database cannot be opened.
func openHistory(cfg *config.Config, logger *slog.Logger) *database.HistoryDB {
	if cfg.DBDir == "" {
		return nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("run history disabled", "dir", cfg.DBDir, "error", err)
		return nil
	}
	logger.Debug("database opened", "dir", cfg.DBDir)
	return db
}

// openReportFile creates the file receiving the JSON or Markdown report.
// It returns nil when that report goes to stdout or is not requested.
func openReportFile(cfg *config.Config) (*os.File, error) {
	if cfg.ReportFile == "" || !(cfg.JSONReport || cfg.MarkdownReport) {
		return nil, nil
	}

	// Create directories if they don't exist
	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Listfiles name licence paths and source locations; keep the report
	// readable by the owner only.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// newWriterFactory returns the writers of one run: the HTML report always,
// the JSON or Markdown report when requested, and the console report unless
// quiet or the other report already occupies stdout.
func newWriterFactory(cfg *config.Config, logger *slog.Logger, out *console, extra io.Writer) pipeline.WriterFactory {
	return func(sources report.Sources) ([]report.Writer, error) {
		common := []report.Option{
			report.WithSources(sources),
			report.WithContextLines(cfg.ContextLines),
			report.WithVersion(getVersion()),
		}
		with := func(opts ...report.Option) []report.Option {
			return append(append([]report.Option(nil), common...), opts...)
		}

		if !highlight.KnownStyle(cfg.Style) {
			logger.Warn("unknown highlighting style, using the default", "style", cfg.Style, "default", highlight.DefaultStyle)
		}
		writers := []report.Writer{
			report.NewHTMLWriter(cfg.OutputDir,
				with(report.WithHighlighter(highlight.New(cfg.Style, cfg.EffectiveFreeForm())))...),
		}

		if extra == nil {
			extra = out.stdout
		}
		switch {
		case cfg.JSONReport:
			writers = append(writers, report.NewJSONWriter(extra, with(report.WithPrettyPrint())...))
		case cfg.MarkdownReport:
			writers = append(writers, report.NewMarkdownWriter(extra, common...))
		}

		if !cfg.Quiet && !reportOnStdout(cfg) {
			writers = append(writers, report.NewSimpleWriter(out.w,
				with(report.WithColor(colorEnabled(cfg, out.w)), report.WithVerbose(cfg.Verbose))...))
		}
		return writers, nil
	}
}

// renderListfile runs the steps after FORCHECK: parse the listfile, load
// the sources, write the reports and record the run. A nil runStep renders
// an existing listfile.
func renderListfile(ctx context.Context, cfg *config.Config, out *console, logger *slog.Logger, runStep pipeline.Step, targets []string) (*pipeline.State, error) {
	reportFile, err := openReportFile(cfg)
	if err != nil {
		return nil, err
	}
	var extra io.Writer
	if reportFile != nil {
		defer reportFile.Close()
		extra = reportFile
	}

	parseOpts := []pipeline.ParseStepOption{
		pipeline.WithIgnoreCodes(cfg.IgnoreCodes),
		pipeline.WithLegacyListfile(cfg.Legacy),
		pipeline.WithCache(openCache(cfg, logger)),
		pipeline.WithKeepListfile(cfg.KeepListfile),
		pipeline.WithParseLogger(logger),
	}
	if cfg.Debug {
		parseOpts = append(parseOpts, pipeline.WithDebugCopy(pipeline.DebugListfile))
	}

	p := pipeline.New(pipeline.WithLogger(logger))
	if runStep != nil {
		p.AddStep(runStep)
	}
	p.AddSteps(
		pipeline.NewParseStep(parseOpts...),
		pipeline.NewSourceStep(cfg.Concurrency, logger),
		pipeline.NewRenderStep(newWriterFactory(cfg, logger, out, extra)),
	)

	logger.Debug("starting run", "steps", p.StepNames())
	state := pipeline.NewState(projectDir(), cfg.Listfile, targets)
	if err := p.Execute(ctx, state); err != nil {
		return state, err
	}
	if state.FromCache {
		logger.Info("listfile parsed before, used the cached result")
	}
	for _, name := range state.PerformedSteps {
		logger.Info("step timing", "step", name, "duration", state.StepTimes[name].Round(time.Millisecond))
	}

	// The report exists at this point; failing to record the run must not
	// fail the command.
	if db := openHistory(cfg, logger); db != nil {
		defer db.Close()
		record := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
		record.AddStep(pipeline.NewHistoryStep(db, logger))
		if err := record.Execute(ctx, state); err != nil {
			logger.Warn("run not recorded", "error", err)
		}
	}

	if reportFile != nil {
		out.Printf("Report written to %s\n", cfg.ReportFile)
	}
	return state, nil
}
