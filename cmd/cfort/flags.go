package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/checkfort/internal/config"
	"github.com/nao1215/checkfort/internal/files"
)

// addLogFlags registers the verbosity flags.
func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("quiet", "q", false, "Suppress program output")
	cmd.Flags().BoolP("verbose", "v", false, "Print progress information")
	cmd.Flags().BoolP("debug", "d", false, "Print debug information")
}

// addSourceFlags registers the flags selecting and reading source files.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file-extensions", "e", strings.Join(files.DefaultExtensions, ","),
		"Extensions to search for when traversing directories")
	cmd.Flags().StringP("input-file", "I", "",
		"File listing files and directories to use as input, one per line")
	cmd.Flags().BoolP("free-form", "f", false,
		"Use free source form for all files (default: decide by file extension)")
	cmd.Flags().IntSliceP("ignore-err-codes", "i", nil,
		"Comma-separated list of FORCHECK message numbers to ignore, e.g. 234,153,9")
}

// addReportFlags registers the flags controlling the generated reports.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-dir", "O", config.DefaultOutputDir,
		"Output directory of the HTML report")
	cmd.Flags().Int("context", config.DefaultContextLines,
		"Number of source lines shown around each diagnostic")
	cmd.Flags().String("style", config.DefaultStyle,
		"Syntax highlighting style of the HTML report")
	cmd.Flags().BoolP("json", "j", false,
		"Also write a JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Also write a Markdown report (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Write the JSON or Markdown report to this file instead of stdout")
	cmd.Flags().Bool("no-color", false,
		"Disable coloured console output")
}

// addStoreFlags registers the flags of the history database and parse cache.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current, config or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")
	cmd.Flags().Bool("no-cache", false,
		"Do not cache parsed listfiles")
	cmd.Flags().Bool("clear-cache", false,
		"Drop all cached parse results before the run")
}

// buildConfig creates a Config from the configuration file and the flags of
// cmd. Values from the file are defaults; only flags given on the command
// line override them.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	if f := cmd.Flags().Lookup("config"); f != nil {
		cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently use the defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := file.Apply(cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	cfg.Targets = args
	return cfg, nil
}

// applyFlags copies the flags set on the command line into cfg.
// Flags the command does not define are skipped, so one function serves
// every command.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	bools := map[string]*bool{
		"quiet":          &cfg.Quiet,
		"verbose":        &cfg.Verbose,
		"debug":          &cfg.Debug,
		"pretend":        &cfg.Pretend,
		"free-form":      &cfg.FreeForm,
		"keep-listfile":  &cfg.KeepListfile,
		"legacy":         &cfg.Legacy,
		"json":           &cfg.JSONReport,
		"markdown":       &cfg.MarkdownReport,
		"no-color":       &cfg.NoColor,
		"propagate-exit": &cfg.PropagateExit,
		"clear-cache":    &cfg.ClearCache,
	}
	for name, dst := range bools {
		if !changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	strs := map[string]*string{
		"input-file":         &cfg.InputFile,
		"fortran-standard":   &cfg.Standard,
		"compiler-emulation": &cfg.Emulation,
		"extra-options":      &cfg.ExtraOptions,
		"output-dir":         &cfg.OutputDir,
		"listfile":           &cfg.Listfile,
		"log-file":           &cfg.LogFile,
		"style":              &cfg.Style,
		"report-file":        &cfg.ReportFile,
	}
	for name, dst := range strs {
		if !changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if changed("context") {
		n, err := flags.GetInt("context")
		if err != nil {
			return err
		}
		cfg.ContextLines = n
	}

	if changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = d
	}

	if changed("file-extensions") {
		csv, err := flags.GetString("file-extensions")
		if err != nil {
			return err
		}
		cfg.Extensions = files.ParseExtensions(csv)
	}

	if changed("ignore-err-codes") {
		codes, err := flags.GetIntSlice("ignore-err-codes")
		if err != nil {
			return err
		}
		cfg.IgnoreCodes = dedupCodes(codes)
	}

	// The switches below can only turn the stores off.
	if changed("no-history") {
		off, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		if off {
			cfg.DBDir = ""
		}
	}
	if changed("no-cache") {
		off, err := flags.GetBool("no-cache")
		if err != nil {
			return err
		}
		if off {
			cfg.CacheDir = ""
		}
	}

	if cfg.Pretend {
		cfg.Quiet = true
	}
	return nil
}

// dedupCodes removes repeated message numbers, keeping the first occurrence.
func dedupCodes(codes []int) []int {
	seen := make(map[int]struct{}, len(codes))
	out := make([]int, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
