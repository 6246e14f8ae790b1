package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/checkfort/internal/config"
	"github.com/nao1215/checkfort/internal/files"
	"github.com/nao1215/checkfort/internal/forcheck"
	"github.com/nao1215/checkfort/internal/pipeline"
)

// errNoInputFiles is returned when the targets contain no source files.
var errNoInputFiles = errors.New("no relevant input files found")

// exitStatusError carries the FORCHECK exit status out of the command when
// --propagate-exit is given. Execute exits with the status without printing
// anything, the report has already said everything.
type exitStatusError struct {
	code int
}

func (e *exitStatusError) Error() string {
	return fmt.Sprintf("forcheck exited with status %d", e.code)
}

// NewRootCmd creates the root command for cfort.
// The root command itself runs FORCHECK; the subcommands work on existing
// listfiles and the run history.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cfort [flags] files/dirs...",
		Short: "Run FORCHECK and render its results as a browsable report",
		Long: `cfort runs the FORCHECK static analyser on Fortran sources and turns the
listfile it writes into an HTML report with syntax highlighted source excerpts.

Directories are searched recursively for files with one of the configured
extensions. FORCHECK is located with the FCKDIR and FCKPWD environment
variables.

Examples:
  # Analyse every Fortran file below src/
  cfort src/

  # Check against Fortran 2003 with the Intel compiler emulation
  cfort -s 2003 -c intel src/

  # Read the targets from a file and ignore two messages
  cfort -I targets.txt -i 344,675

  # Show the FORCHECK command without running it
  cfort -p src/

  # Also write a JSON report for CI
  cfort --json --report-file report.json src/`,
		Version:       getVersion(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	addLogFlags(cmd)
	addSourceFlags(cmd)
	addReportFlags(cmd)
	addStoreFlags(cmd)

	// FORCHECK flags
	cmd.Flags().BoolP("pretend", "p", false,
		"Print the FORCHECK command instead of running it (implies --quiet)")
	cmd.Flags().StringP("fortran-standard", "s", config.DefaultStandard,
		"Fortran standard to validate against (77, 90, 95, 2003, 2008)")
	cmd.Flags().StringP("compiler-emulation", "c", config.DefaultEmulation,
		"Compiler to emulate")
	cmd.Flags().StringP("extra-options", "o", "",
		"Extra options passed to FORCHECK; options changing the listfile layout may break parsing")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Maximum duration of the FORCHECK run")
	cmd.Flags().String("log-file", config.DefaultLogFile,
		"File receiving the FORCHECK console output")
	cmd.Flags().Bool("keep-listfile", false,
		"Keep the listfile written by FORCHECK")
	cmd.Flags().Bool("propagate-exit", false,
		"Exit with the FORCHECK exit status")

	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	var exitErr *exitStatusError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// runRootCmd executes the root command.
func runRootCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runAnalysis(ctx, cmd, cfg, logger)
}

// runAnalysis locates FORCHECK, runs it on the targets and renders the
// listfile.
func runAnalysis(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	out := newConsole(cmd, cfg)
	out.Printf("%s\n", header())

	if cfg.FreeForm && !cfg.EffectiveFreeForm() {
		logger.Warn("Fortran 77 does not support free form, ignoring --free-form")
	}

	targets, err := collectTargets(cfg, out, logger)
	if err != nil {
		return err
	}

	install, err := forcheck.Locate(forcheck.OSEnv)
	if err != nil {
		return fmt.Errorf("forcheck installation: %w", err)
	}
	version, err := install.ProbeVersion(ctx)
	if err != nil {
		return err
	}
	logger.Info("found forcheck", "version", version.String(), "executable", install.Executable)

	extra, err := forcheck.ParseExtraOptions(cfg.ExtraOptions)
	if err != nil {
		return err
	}
	opts := forcheck.Options{
		Standard:     cfg.Standard,
		Emulation:    cfg.Emulation,
		FreeForm:     cfg.EffectiveFreeForm(),
		ExtraOptions: extra,
	}

	if cfg.Pretend {
		command, err := install.Command(cfg.Listfile, targets, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), command.String())
		return nil
	}

	runStep := pipeline.NewRunStep(install, opts,
		pipeline.WithRunTimeout(cfg.Timeout),
		pipeline.WithRunLogFile(cfg.LogFile),
		pipeline.WithRunLogger(logger),
		pipeline.WithRunProgress(func(file string) {
			if cfg.Verbose {
				out.Printf("  analysing %s\n", file)
			}
		}),
		pipeline.WithRunWarnings(func(w forcheck.RuntimeWarning) {
			out.Printf("  FORCHECK warning: %s\n", w.Message)
			if w.Location != "" {
				out.Printf("    %s\n", w.Location)
			}
			if w.Culprit != "" {
				out.Printf("    %s\n", w.Culprit)
			}
		}),
	)

	out.Printf("Running FORCHECK %s on %d files...\n", version, len(targets))
	state, err := renderListfile(ctx, cfg, out, logger, runStep, targets)
	if err != nil {
		return err
	}

	out.Printf("\nAll done. View '%s' for results.\n", filepath.Join(cfg.OutputDir, "index.html"))
	if cfg.PropagateExit && state.Exit.Code != 0 {
		return &exitStatusError{code: state.Exit.Code}
	}
	return nil
}

// collectTargets expands the positional targets and the input file into
// the list of source files.
func collectTargets(cfg *config.Config, out *console, logger *slog.Logger) ([]string, error) {
	entries := append([]string(nil), cfg.Targets...)
	if cfg.InputFile != "" {
		more, err := files.ReadInputFile(cfg.InputFile)
		if err != nil {
			return nil, fmt.Errorf("input file not readable: %w", err)
		}
		entries = append(entries, more...)
	}
	if len(entries) == 0 {
		return nil, config.ErrNoTarget
	}

	for _, e := range entries {
		if info, err := os.Stat(e); err == nil && info.IsDir() {
			out.Printf("Searching directories for files with the extensions: %s\n", extensionGlobs(cfg.Extensions))
			break
		}
	}

	targets, err := files.Collect(entries, cfg.Extensions, logger)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errNoInputFiles
	}
	logger.Info("collected source files", "count", len(targets))
	return targets, nil
}
