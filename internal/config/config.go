package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/checkfort/internal/files"
	"github.com/nao1215/checkfort/internal/forcheck"
	"github.com/nao1215/checkfort/internal/highlight"
	"github.com/nao1215/checkfort/internal/report"
)

// Default configuration values.
// These follow the behaviour FORCHECK users of the Python checkfort tool
// are used to, so that existing scripts keep working.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "checkfort"

	// DefaultStandard is the Fortran standard sources are checked against.
	// Fortran 95 is what most legacy code bases compile with today.
	DefaultStandard = forcheck.DefaultStandard

	// DefaultEmulation is the compiler FORCHECK emulates. gfortran is the
	// compiler found on almost every system that has FORCHECK installed.
	DefaultEmulation = forcheck.DefaultEmulation

	// DefaultOutputDir receives the HTML report.
	DefaultOutputDir = "cfort_html"

	// DefaultLogFile receives the FORCHECK console output.
	DefaultLogFile = forcheck.DefaultLogFile

	// DefaultListfile is the name of the listfile written by FORCHECK inside
	// the output directory's parent. It is removed after parsing unless
	// KeepListfile is set.
	DefaultListfile = "checkfort.lst"

	// DefaultTimeout bounds a single FORCHECK run. Whole-program analysis of
	// large code bases takes minutes, so the limit is generous; it only
	// exists to stop runs that hang on a licence server.
	DefaultTimeout = 30 * time.Minute

	// DefaultContextLines is the number of source lines shown around each
	// diagnostic.
	DefaultContextLines = report.DefaultContextLines

	// DefaultStyle is the syntax highlighting style of the HTML report.
	DefaultStyle = highlight.DefaultStyle
)

// Config holds all configuration options for checkfort.
// This struct is designed to be populated from the config file and CLI flags
// and passed through the application via dependency injection rather than
// global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable, and nesting would add
// complexity without significant benefit.
type Config struct {
	// Targets are the files and directories to analyse. Directories are
	// searched recursively for files with one of Extensions.
	Targets []string

	// InputFile names a file listing more targets, one per line.
	// "#" and "!" start comments.
	InputFile string

	// Extensions are the file extensions searched for in directories,
	// without the leading dot. Matching is case-sensitive.
	Extensions []string

	// Standard is the Fortran standard: 77, 90, 95, 2003 or 2008.
	Standard string

	// Emulation is the compiler FORCHECK emulates, the base name of a
	// *.cnf file of the installation.
	Emulation string

	// FreeForm forces free source form for all files.
	// It is ignored for Fortran 77, which has no free form.
	FreeForm bool

	// IgnoreCodes are FORCHECK message numbers dropped from the report.
	IgnoreCodes []int

	// ExtraOptions are passed to FORCHECK as-is after shell splitting.
	ExtraOptions string

	// OutputDir receives the HTML report.
	OutputDir string

	// Listfile is the listfile FORCHECK writes. For the render command it
	// names an existing listfile to parse instead.
	Listfile string

	// KeepListfile keeps the listfile after a successful run.
	KeepListfile bool

	// LogFile receives the FORCHECK console output.
	LogFile string

	// Timeout bounds a single FORCHECK run.
	Timeout time.Duration

	// ContextLines is the number of source lines shown around each diagnostic.
	ContextLines int

	// Style is the chroma style used for syntax highlighting.
	Style string

	// Legacy parses listfiles written by FORCHECK releases before 14.2.
	Legacy bool

	// Quiet only logs errors.
	Quiet bool

	// Verbose logs progress information.
	Verbose bool

	// Debug logs everything and keeps a copy of questionable listfiles.
	Debug bool

	// Pretend prints the FORCHECK command instead of running it.
	Pretend bool

	// JSONReport writes a JSON report in addition to the HTML report.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport writes a Markdown report in addition to the HTML report.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the JSON or Markdown report.
	// When empty, the report is written to stdout.
	ReportFile string

	// NoColor disables coloured console output.
	NoColor bool

	// PropagateExit makes cfort exit with the FORCHECK exit status.
	PropagateExit bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// DBDir is the directory holding the history database.
	// When empty, runs are not recorded.
	// Defaults to XDG data directory (~/.local/share/checkfort on Linux).
	DBDir string

	// CacheDir is the directory holding parsed listfiles.
	// When empty, parse results are not cached.
	// Defaults to XDG cache directory (~/.cache/checkfort on Linux).
	CacheDir string

	// ClearCache drops every cached parse result before the run.
	ClearCache bool

	// Concurrency limits how many source files are read at once.
	// Zero uses GOMAXPROCS.
	Concurrency int
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, standard).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Extensions:   slices.Clone(files.DefaultExtensions),
		Standard:     DefaultStandard,
		Emulation:    DefaultEmulation,
		OutputDir:    DefaultOutputDir,
		Listfile:     DefaultListfile,
		LogFile:      DefaultLogFile,
		Timeout:      DefaultTimeout,
		ContextLines: DefaultContextLines,
		Style:        DefaultStyle,
		DBDir:        XDGDataDir(),
		CacheDir:     XDGCacheDir(),
	}
}

// XDGDataDir returns the XDG data directory for checkfort.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/checkfort
// On macOS: ~/Library/Application Support/checkfort
// On Windows: %LOCALAPPDATA%\checkfort
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for checkfort.
// On Linux: ~/.config/checkfort
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for checkfort.
// On Linux: ~/.cache/checkfort
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid for running FORCHECK.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before FORCHECK is started.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 && c.InputFile == "" {
		return ErrNoTarget
	}
	if _, err := forcheck.ParseStandard(c.Standard); err != nil {
		return ErrUnsupportedStandard
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return c.validateCommon()
}

// ValidateRender checks the configuration for rendering an existing
// listfile, which needs no targets and no FORCHECK settings.
func (c *Config) ValidateRender() error {
	if c.Listfile == "" {
		return ErrNoListfile
	}
	return c.validateCommon()
}

func (c *Config) validateCommon() error {
	if len(c.Extensions) == 0 {
		return ErrNoExtensions
	}
	if c.ContextLines < 0 {
		return ErrInvalidContext
	}
	for _, code := range c.IgnoreCodes {
		if code <= 0 {
			return ErrInvalidIgnoreCode
		}
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Concurrency < 0 {
		return ErrInvalidConcurrency
	}
	return nil
}

// EffectiveFreeForm reports whether free form is in effect.
// Fortran 77 has no free source form, so FreeForm is ignored for it.
func (c *Config) EffectiveFreeForm() bool {
	return c.FreeForm && c.Standard != "77"
}
