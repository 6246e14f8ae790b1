package forcheck

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Environment variable names used by FORCHECK.
const (
	EnvDir      = "FCKDIR"
	EnvPassword = "FCKPWD"
	EnvConfig   = "FCKCNF"
)

// MinVersion is the oldest supported FORCHECK release. Older releases use a
// different listfile layout and order files incorrectly.
var MinVersion = Version{Major: 14, Minor: 2}

var reVersion = regexp.MustCompile(`^V(\d+)\.(\d+)\.(\d+)`)

// Env looks up an environment variable. os.LookupEnv satisfies it.
type Env func(key string) (string, bool)

// OSEnv reads the process environment.
var OSEnv Env = os.LookupEnv

// MapEnv returns an Env backed by m.
func MapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Version is a FORCHECK release number.
type Version struct {
	Major int
	Minor int
	Patch int
}

// String returns the dotted form, e.g. "14.3.12".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast compares major and minor numbers only.
func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	return v.Minor >= o.Minor
}

// IsZero reports whether the version is unknown.
func (v Version) IsZero() bool {
	return v == Version{}
}

// ParseVersion extracts the version from the first line of the forchk banner.
// The version is the last whitespace-separated field, e.g. "V14.3.12".
func ParseVersion(banner string) (Version, error) {
	first, _, _ := strings.Cut(banner, "\n")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return Version{}, ErrUnexpectedOutput
	}

	m := reVersion.FindStringSubmatch(fields[len(fields)-1])
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrUnexpectedOutput, strings.TrimSpace(first))
	}

	var v Version
	var err error
	if v.Major, err = strconv.Atoi(m[1]); err != nil {
		return Version{}, fmt.Errorf("%w: %w", ErrUnexpectedOutput, err)
	}
	if v.Minor, err = strconv.Atoi(m[2]); err != nil {
		return Version{}, fmt.Errorf("%w: %w", ErrUnexpectedOutput, err)
	}
	if v.Patch, err = strconv.Atoi(m[3]); err != nil {
		return Version{}, fmt.Errorf("%w: %w", ErrUnexpectedOutput, err)
	}
	return v, nil
}

// Installation describes a located FORCHECK installation.
type Installation struct {
	// Dir is the value of FCKDIR.
	Dir string

	// Password is the value of FCKPWD, the path of the licence file.
	Password string

	// Executable is the resolved path of the forchk binary.
	Executable string

	// ConfigDir holds the compiler emulation *.cnf files.
	ConfigDir string

	// Emulators are the available emulations, the *.cnf base names, sorted.
	Emulators []string

	// Version is set by ProbeVersion.
	Version Version
}

// Locate finds the FORCHECK installation described by env.
//
// forchk is searched in $FCKDIR/bin and $FCKDIR; the *.cnf directory is
// the one of $FCKDIR/share/forcheck and $FCKDIR that contains g95.cnf.
func Locate(env Env) (*Installation, error) {
	if env == nil {
		env = OSEnv
	}

	password, ok := env(EnvPassword)
	if !ok {
		return nil, ErrFCKPWDNotSet
	}
	dir, ok := env(EnvDir)
	if !ok || dir == "" {
		return nil, ErrFCKDIRNotSet
	}

	inst := &Installation{Dir: dir, Password: password}

	exe, err := firstFile(
		filepath.Join(dir, "bin", "forchk"),
		filepath.Join(dir, "forchk"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", ErrBinaryNotFound, dir)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if abs, err := filepath.Abs(exe); err == nil {
		exe = abs
	}
	inst.Executable = exe

	cnf, err := firstFile(
		filepath.Join(dir, "share", "forcheck", "g95.cnf"),
		filepath.Join(dir, "g95.cnf"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", ErrConfigNotFound, dir)
	}
	inst.ConfigDir = filepath.Dir(cnf)

	matches, err := filepath.Glob(filepath.Join(inst.ConfigDir, "*.cnf"))
	if err != nil {
		return nil, fmt.Errorf("listing compiler emulations: %w", err)
	}
	for _, m := range matches {
		inst.Emulators = append(inst.Emulators, strings.TrimSuffix(filepath.Base(m), ".cnf"))
	}
	sort.Strings(inst.Emulators)

	return inst, nil
}

func firstFile(candidates ...string) (string, error) {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, nil
		}
	}
	return "", os.ErrNotExist
}

// ProbeVersion runs "forchk -batch" and parses the version banner.
// It records the version in i.Version. Releases older than MinVersion are
// rejected with ErrUnsupportedVersion.
func (i *Installation) ProbeVersion(ctx context.Context) (Version, error) {
	cmd := exec.CommandContext(ctx, i.Executable, "-batch") //nolint:gosec // executable located under FCKDIR
	cmd.Env = os.Environ()
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	// forchk exits non-zero without input files; only a failure to start
	// counts as an error here.
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Version{}, fmt.Errorf("%w %s: %w", ErrNotRunnable, i.Executable, err)
		}
	}

	sc := bufio.NewScanner(&stdout)
	banner := ""
	if sc.Scan() {
		banner = sc.Text()
	}

	v, err := ParseVersion(banner)
	if err != nil {
		return Version{}, fmt.Errorf("%s: %w", i.Executable, err)
	}
	i.Version = v

	if !v.AtLeast(MinVersion) {
		return v, fmt.Errorf("%w: %s (version >=%d.%d expected)",
			ErrUnsupportedVersion, v, MinVersion.Major, MinVersion.Minor)
	}
	return v, nil
}

// CheckEmulation verifies that a *.cnf file exists for emulation.
func (i *Installation) CheckEmulation(emulation string) error {
	for _, e := range i.Emulators {
		if e == emulation {
			return nil
		}
	}
	return fmt.Errorf("%w %q. Possible options: %s",
		ErrUnsupportedEmulation, emulation, strings.Join(i.Emulators, ", "))
}

// ConfigFile returns the FCKCNF value for emulation.
func (i *Installation) ConfigFile(emulation string) string {
	return filepath.Join(i.ConfigDir, emulation+".cnf")
}

// Environment returns the FORCHECK variables for a run with emulation.
func (i *Installation) Environment(emulation string) map[string]string {
	return map[string]string{
		EnvDir:      i.Dir,
		EnvPassword: i.Password,
		EnvConfig:   i.ConfigFile(emulation),
	}
}
