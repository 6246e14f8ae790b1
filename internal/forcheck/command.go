package forcheck

import (
	"fmt"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
)

// DefaultArgs are passed to every forchk run:
// no listing of include files, very long pages to reduce page breaks,
// the widest possible lines and batch mode.
var DefaultArgs = []string{
	"-nshinc",
	"-plen", "999",
	"-pwid", "255",
	"-batch",
}

// SupportedStandards lists the Fortran standards in ascending order.
var SupportedStandards = []string{"77", "90", "95", "2003", "2008"}

var standardFlags = map[string]string{
	"77":   "-f77",
	"90":   "-f90",
	"95":   "-f95",
	"2003": "-f03",
	"2008": "-f08",
}

// DefaultStandard and DefaultEmulation are used when nothing is configured.
const (
	DefaultStandard  = "95"
	DefaultEmulation = "gfortran"
)

// ParseStandard returns the forchk flag for a standard, e.g. "-f95" for "95".
func ParseStandard(standard string) (string, error) {
	flag, ok := standardFlags[standard]
	if !ok {
		return "", fmt.Errorf("%w (%s). Options: %s",
			ErrUnsupportedStandard, standard, strings.Join(SupportedStandards, ", "))
	}
	return flag, nil
}

// ParseExtraOptions splits a user-supplied option string with shell rules.
func ParseExtraOptions(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, fmt.Errorf("invalid extra options %q: %w", s, err)
	}
	return args, nil
}

// Options control how forchk analyses the sources.
type Options struct {
	// Standard is the Fortran standard to validate against.
	Standard string

	// Emulation is the compiler to emulate, a *.cnf base name.
	Emulation string

	// FreeForm forces free source form for all files.
	FreeForm bool

	// ExtraOptions are appended after the standard options.
	ExtraOptions []string
}

// Arguments returns the forchk options without the listfile and files.
func (o Options) Arguments() ([]string, error) {
	standard := o.Standard
	if standard == "" {
		standard = DefaultStandard
	}
	flag, err := ParseStandard(standard)
	if err != nil {
		return nil, err
	}

	args := append([]string(nil), DefaultArgs...)
	args = append(args, flag)
	if o.FreeForm {
		args = append(args, "-ff")
	}
	args = append(args, o.ExtraOptions...)
	return args, nil
}

// Command is a ready-to-run forchk invocation.
type Command struct {
	// Path is the forchk executable.
	Path string

	// Args are the arguments after the executable.
	Args []string

	// Listfile is where forchk writes its report.
	Listfile string

	// Env holds the FORCHECK variables added to the child environment.
	Env map[string]string
}

// Command builds the forchk command line
//
//	forchk -l LISTFILE <default args> <standard> [-ff] <extra> FILES...
//
// and the environment selecting the compiler emulation.
func (i *Installation) Command(listfile string, files []string, opts Options) (*Command, error) {
	emulation := opts.Emulation
	if emulation == "" {
		emulation = DefaultEmulation
	}
	if err := i.CheckEmulation(emulation); err != nil {
		return nil, err
	}

	args, err := opts.Arguments()
	if err != nil {
		return nil, err
	}

	full := make([]string, 0, 2+len(args)+len(files))
	full = append(full, "-l", listfile)
	full = append(full, args...)
	full = append(full, files...)

	return &Command{
		Path:     i.Executable,
		Args:     full,
		Listfile: listfile,
		Env:      i.Environment(emulation),
	}, nil
}

// Argv returns the executable followed by its arguments.
func (c *Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// String returns the command line quoted for a POSIX shell.
func (c *Command) String() string {
	return shellquote.Join(c.Argv()...)
}

// Environ returns the child process environment: the current environment
// with the FORCHECK variables set.
func (c *Command) Environ() []string {
	env := os.Environ()
	for k, v := range c.Env {
		env = append(env, k+"="+v)
	}
	return env
}
