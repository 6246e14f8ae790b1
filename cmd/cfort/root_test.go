package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/checkfort/internal/config"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Name() != "cfort" {
			t.Errorf("expected name 'cfort', got %q", cmd.Name())
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has the original option set", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			shorthand string
			defValue  string
		}{
			{"quiet", "q", "false"},
			{"verbose", "v", "false"},
			{"debug", "d", "false"},
			{"pretend", "p", "false"},
			{"free-form", "f", "false"},
			{"file-extensions", "e", "h,f,F,f90,F90,f95,F95,f03,F03,f08,F08"},
			{"fortran-standard", "s", config.DefaultStandard},
			{"compiler-emulation", "c", config.DefaultEmulation},
			{"ignore-err-codes", "i", "[]"},
			{"extra-options", "o", ""},
			{"output-dir", "O", config.DefaultOutputDir},
			{"input-file", "I", ""},
		}
		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
			}
		}
	})

	t.Run("has additional flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"config", "timeout", "context", "style", "json", "markdown",
			"report-file", "log-file", "keep-listfile", "no-history",
			"no-cache", "clear-cache", "propagate-exit", "no-color",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected %s flag", name)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := []string{"history", "init", "render", "version"}
		var got []string
		for _, sub := range cmd.Commands() {
			got = append(got, sub.Name())
		}
		for _, name := range want {
			if !slices.Contains(got, name) {
				t.Errorf("expected %s subcommand, got %v", name, got)
			}
		}
	})

	t.Run("accepts any number of targets", func(t *testing.T) {
		t.Parallel()
		if cmd.Args == nil {
			t.Fatal("expected Args validator")
		}
		if err := cmd.Args(cmd, []string{"a.f", "b.f90", "src"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// writeConfigFile writes a configuration file into a temporary directory.
func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// parseConfig parses args with cmd and builds the configuration.
func parseConfig(t *testing.T, cmd *cobra.Command, args ...string) (*config.Config, error) {
	t.Helper()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return buildConfig(cmd, cmd.Flags().Args())
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", empty, "src", "main.f")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Standard != config.DefaultStandard || cfg.Emulation != config.DefaultEmulation {
			t.Errorf("Standard = %q, Emulation = %q", cfg.Standard, cfg.Emulation)
		}
		if cfg.OutputDir != config.DefaultOutputDir {
			t.Errorf("OutputDir = %q", cfg.OutputDir)
		}
		if !slices.Equal(cfg.Targets, []string{"src", "main.f"}) {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if cfg.ConfigFilePath != empty {
			t.Errorf("ConfigFilePath = %q", cfg.ConfigFilePath)
		}
	})

	t.Run("flags override the config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, ".checkfort.yaml", "standard: \"2003\"\noutput_dir: from_file\ncontext: 5\n")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", path, "-s", "90", "--context", "1")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Standard != "90" {
			t.Errorf("Standard = %q, want flag value 90", cfg.Standard)
		}
		if cfg.OutputDir != "from_file" {
			t.Errorf("OutputDir = %q, want file value", cfg.OutputDir)
		}
		if cfg.ContextLines != 1 {
			t.Errorf("ContextLines = %d, want 1", cfg.ContextLines)
		}
	})

	t.Run("TOML config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, ".checkfort.toml", "emulation = \"intel\"\ntimeout = \"45m\"\n")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", path)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Emulation != "intel" || cfg.Timeout != 45*time.Minute {
			t.Errorf("Emulation = %q, Timeout = %v", cfg.Emulation, cfg.Timeout)
		}
	})

	t.Run("list flags", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", empty,
			"-i", "344,675,344", "-e", "f90, .F", "--timeout", "5m", "-o", "-allc -rigor")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if !slices.Equal(cfg.IgnoreCodes, []int{344, 675}) {
			t.Errorf("IgnoreCodes = %v", cfg.IgnoreCodes)
		}
		if !slices.Equal(cfg.Extensions, []string{"f90", "F"}) {
			t.Errorf("Extensions = %v", cfg.Extensions)
		}
		if cfg.Timeout != 5*time.Minute {
			t.Errorf("Timeout = %v", cfg.Timeout)
		}
		if cfg.ExtraOptions != "-allc -rigor" {
			t.Errorf("ExtraOptions = %q", cfg.ExtraOptions)
		}
	})

	t.Run("pretend implies quiet", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", empty, "-p")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if !cfg.Pretend || !cfg.Quiet {
			t.Errorf("Pretend = %v, Quiet = %v", cfg.Pretend, cfg.Quiet)
		}
	})

	t.Run("disables the stores", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRootCmd(), "--config", empty, "--no-history", "--no-cache")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.DBDir != "" || cfg.CacheDir != "" {
			t.Errorf("DBDir = %q, CacheDir = %q", cfg.DBDir, cfg.CacheDir)
		}
		if cfg.ClearCache {
			t.Error("ClearCache set without --clear-cache")
		}
	})

	t.Run("clears the cache", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRenderCmd(), "--config", empty, "--clear-cache")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if !cfg.ClearCache || cfg.CacheDir == "" {
			t.Errorf("ClearCache = %v, CacheDir = %q", cfg.ClearCache, cfg.CacheDir)
		}
	})

	t.Run("render command flags", func(t *testing.T) {
		t.Parallel()
		empty := writeConfigFile(t, ".checkfort.yaml", "")

		cfg, err := parseConfig(t, NewRenderCmd(), "--config", empty, "--listfile", "run.lst", "--legacy")
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.Listfile != "run.lst" || !cfg.Legacy {
			t.Errorf("Listfile = %q, Legacy = %v", cfg.Listfile, cfg.Legacy)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "missing.yaml")

		_, err := parseConfig(t, NewRootCmd(), "--config", missing)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("rejects unknown config keys", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, ".checkfort.yaml", "standards: \"95\"\n")

		if _, err := parseConfig(t, NewRootCmd(), "--config", path); err == nil {
			t.Error("expected error for unknown key")
		}
	})

	t.Run("rejects an invalid timeout in the config file", func(t *testing.T) {
		t.Parallel()
		path := writeConfigFile(t, ".checkfort.yaml", "timeout: soon\n")

		if _, err := parseConfig(t, NewRootCmd(), "--config", path); err == nil {
			t.Error("expected error for invalid timeout")
		}
	})
}

func TestRunRootCmdValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no targets", nil, config.ErrNoTarget},
		{"unsupported standard", []string{"-s", "66", "a.f"}, config.ErrUnsupportedStandard},
		{"negative context", []string{"--context=-1", "a.f"}, config.ErrInvalidContext},
		{"two report formats", []string{"--json", "--markdown", "a.f"}, config.ErrConflictingReportFormats},
		{"invalid ignore code", []string{"-i", "0", "a.f"}, config.ErrInvalidIgnoreCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			empty := writeConfigFile(t, ".checkfort.yaml", "")

			cmd := NewRootCmd()
			cmd.SetArgs(append([]string{"--config", empty}, tt.args...))
			err := cmd.Execute()
			if !errors.Is(err, tt.want) {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDedupCodes(t *testing.T) {
	t.Parallel()

	got := dedupCodes([]int{9, 234, 9, 153, 234})
	if !slices.Equal(got, []int{9, 234, 153}) {
		t.Errorf("dedupCodes() = %v", got)
	}
	if got := dedupCodes(nil); len(got) != 0 {
		t.Errorf("dedupCodes(nil) = %v", got)
	}
}

func TestExitStatusError(t *testing.T) {
	t.Parallel()

	var err error = &exitStatusError{code: 8}
	if err.Error() != "forcheck exited with status 8" {
		t.Errorf("Error() = %q", err.Error())
	}
	var exitErr *exitStatusError
	if !errors.As(err, &exitErr) || exitErr.code != 8 {
		t.Errorf("errors.As() failed for %v", err)
	}
}
