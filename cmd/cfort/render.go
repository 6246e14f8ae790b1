package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewRenderCmd creates the render command.
// It renders a listfile written by an earlier FORCHECK run, for example on a
// machine without a FORCHECK licence.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render --listfile FILE [files/dirs...]",
		Short: "Render an existing FORCHECK listfile",
		Long: `Render parses a listfile written by FORCHECK and generates the reports
without running FORCHECK.

The analysed files are the files and directories given as arguments. Without
arguments, the files named in the listfile are loaded; diagnostics in files
that cannot be read are shown without source excerpts.

Examples:
  # Render a listfile kept with --keep-listfile
  cfort render --listfile checkfort.lst

  # Render a listfile of FORCHECK 14.1 or older
  cfort render --legacy --listfile old.lst src/

  # Print a Markdown report
  cfort render --listfile checkfort.lst --markdown`,
		Args: cobra.ArbitraryArgs,
		RunE: runRenderCmd,
	}

	addLogFlags(cmd)
	addSourceFlags(cmd)
	addReportFlags(cmd)
	addStoreFlags(cmd)

	cmd.Flags().StringP("listfile", "l", "",
		"Listfile to render")
	cmd.Flags().Bool("legacy", false,
		"Parse a listfile of FORCHECK 14.1 or older")

	return cmd
}

// runRenderCmd executes the render command.
func runRenderCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	// The default listfile name belongs to the root command, render needs
	// it spelled out.
	if !cmd.Flags().Changed("listfile") {
		cfg.Listfile = ""
	}
	if err := cfg.ValidateRender(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	out := newConsole(cmd, cfg)
	out.Printf("%s\n", header())

	var targets []string
	if len(cfg.Targets) > 0 || cfg.InputFile != "" {
		targets, err = collectTargets(cfg, out, logger)
		if err != nil {
			return err
		}
	}

	logger.Info("rendering listfile", "listfile", cfg.Listfile, "files", len(targets))
	if _, err := renderListfile(ctx, cfg, out, logger, nil, targets); err != nil {
		return err
	}

	out.Printf("\nAll done. View '%s' for results.\n", filepath.Join(cfg.OutputDir, "index.html"))
	return nil
}
