package config

import (
	"fmt"
	"slices"
	"time"
)

// File represents the structure of the .checkfort.yaml (or .checkfort.toml)
// configuration file.
//
// Every field is optional. Pointer fields distinguish "not set" from the
// zero value so that a file can switch a boolean option off again or set
// the context to zero lines.
type File struct {
	// Standard is the Fortran standard: 77, 90, 95, 2003 or 2008.
	Standard *string `yaml:"standard,omitempty" toml:"standard,omitempty"`

	// Emulation is the compiler FORCHECK emulates.
	Emulation *string `yaml:"emulation,omitempty" toml:"emulation,omitempty"`

	// FreeForm forces free source form.
	FreeForm *bool `yaml:"free_form,omitempty" toml:"free_form,omitempty"`

	// Extensions replaces the default list of searched file extensions.
	Extensions []string `yaml:"extensions,omitempty" toml:"extensions,omitempty"`

	// IgnoreCodes are FORCHECK message numbers dropped from the report.
	IgnoreCodes []int `yaml:"ignore_codes,omitempty" toml:"ignore_codes,omitempty"`

	// ExtraOptions are passed to FORCHECK after shell splitting.
	ExtraOptions *string `yaml:"extra_options,omitempty" toml:"extra_options,omitempty"`

	// OutputDir receives the HTML report.
	OutputDir *string `yaml:"output_dir,omitempty" toml:"output_dir,omitempty"`

	// LogFile receives the FORCHECK console output.
	LogFile *string `yaml:"log_file,omitempty" toml:"log_file,omitempty"`

	// KeepListfile keeps the listfile after a successful run.
	KeepListfile *bool `yaml:"keep_listfile,omitempty" toml:"keep_listfile,omitempty"`

	// Timeout is a Go duration string such as "45m".
	Timeout *string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	// Context is the number of source lines shown around each diagnostic.
	Context *int `yaml:"context,omitempty" toml:"context,omitempty"`

	// Style is the syntax highlighting style of the HTML report.
	Style *string `yaml:"style,omitempty" toml:"style,omitempty"`

	// NoHistory disables the run history database.
	NoHistory *bool `yaml:"no_history,omitempty" toml:"no_history,omitempty"`

	// NoCache disables the parse cache.
	NoCache *bool `yaml:"no_cache,omitempty" toml:"no_cache,omitempty"`

	// PropagateExit makes cfort exit with the FORCHECK exit status.
	PropagateExit *bool `yaml:"propagate_exit,omitempty" toml:"propagate_exit,omitempty"`

	// NoColor disables coloured console output.
	NoColor *bool `yaml:"no_color,omitempty" toml:"no_color,omitempty"`

	// Concurrency limits how many source files are read at once.
	Concurrency *int `yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`

	// DBDir overrides the history database directory.
	DBDir *string `yaml:"db_dir,omitempty" toml:"db_dir,omitempty"`

	// CacheDir overrides the parse cache directory.
	CacheDir *string `yaml:"cache_dir,omitempty" toml:"cache_dir,omitempty"`
}

// Apply copies every value set in the file into cfg.
// It is called before command line flags are applied, so explicit flags
// always win over the file.
func (f *File) Apply(cfg *Config) error {
	setString(&cfg.Standard, f.Standard)
	setString(&cfg.Emulation, f.Emulation)
	setBool(&cfg.FreeForm, f.FreeForm)
	if len(f.Extensions) > 0 {
		cfg.Extensions = slices.Clone(f.Extensions)
	}
	if len(f.IgnoreCodes) > 0 {
		cfg.IgnoreCodes = slices.Clone(f.IgnoreCodes)
	}
	setString(&cfg.ExtraOptions, f.ExtraOptions)
	setString(&cfg.OutputDir, f.OutputDir)
	setString(&cfg.LogFile, f.LogFile)
	setBool(&cfg.KeepListfile, f.KeepListfile)
	if f.Timeout != nil {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", *f.Timeout, err)
		}
		cfg.Timeout = d
	}
	if f.Context != nil {
		cfg.ContextLines = *f.Context
	}
	setString(&cfg.Style, f.Style)
	setString(&cfg.DBDir, f.DBDir)
	setString(&cfg.CacheDir, f.CacheDir)
	if f.NoHistory != nil && *f.NoHistory {
		cfg.DBDir = ""
	}
	if f.NoCache != nil && *f.NoCache {
		cfg.CacheDir = ""
	}
	setBool(&cfg.PropagateExit, f.PropagateExit)
	setBool(&cfg.NoColor, f.NoColor)
	if f.Concurrency != nil {
		cfg.Concurrency = *f.Concurrency
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
