package forcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeInstall creates a FORCHECK installation whose forchk is a shell script.
// Tests using it do not run in parallel: writing an executable while another
// test forks can make exec fail with ETXTBSY.
func fakeInstall(t *testing.T, script string) (dir string, env Env) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake forchk requires a POSIX shell")
	}

	dir = t.TempDir()
	bin := filepath.Join(dir, "bin")
	cnf := filepath.Join(dir, "share", "forcheck")
	for _, d := range []string{bin, cnf} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(bin, "forchk"), []byte("#!/bin/sh\n"+script), 0o700); err != nil { //nolint:gosec // test executable
		t.Fatal(err)
	}
	for _, name := range []string{"g95", "gfortran", "ifort"} {
		if err := os.WriteFile(filepath.Join(cnf, name+".cnf"), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	env = MapEnv(map[string]string{
		EnvDir:      dir,
		EnvPassword: filepath.Join(dir, "licence"),
	})
	return dir, env
}

const bannerScript = `if [ "$1" = "-batch" ]; then
  echo "FORCHECK for Linux  V14.3.12"
  exit 4
fi
`

// TestLocate tests discovery of the binary and the emulation files.
func TestLocate(t *testing.T) {
	dir, env := fakeInstall(t, bannerScript)

	inst, err := Locate(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(inst.Executable) != "forchk" {
		t.Errorf("unexpected executable: %s", inst.Executable)
	}
	if inst.ConfigDir != filepath.Join(dir, "share", "forcheck") {
		t.Errorf("unexpected config dir: %s", inst.ConfigDir)
	}
	if !reflect.DeepEqual(inst.Emulators, []string{"g95", "gfortran", "ifort"}) {
		t.Errorf("unexpected emulators: %v", inst.Emulators)
	}
	if err := inst.CheckEmulation("nag"); !errors.Is(err, ErrUnsupportedEmulation) {
		t.Errorf("expected ErrUnsupportedEmulation, got %v", err)
	}
	if got := inst.ConfigFile("ifort"); got != filepath.Join(dir, "share", "forcheck", "ifort.cnf") {
		t.Errorf("unexpected config file: %s", got)
	}
}

// TestLocateErrors tests misconfigured installations.
func TestLocateErrors(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	binOnly := t.TempDir()
	if err := os.WriteFile(filepath.Join(binOnly, "forchk"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{name: "no FCKPWD", env: map[string]string{EnvDir: empty}, want: ErrFCKPWDNotSet},
		{name: "no FCKDIR", env: map[string]string{EnvPassword: "x"}, want: ErrFCKDIRNotSet},
		{name: "no binary", env: map[string]string{EnvDir: empty, EnvPassword: "x"}, want: ErrBinaryNotFound},
		{name: "no cnf files", env: map[string]string{EnvDir: binOnly, EnvPassword: "x"}, want: ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Locate(MapEnv(tt.env))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestParseVersion tests version banner parsing.
func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		banner  string
		want    Version
		wantErr bool
	}{
		{banner: "FORCHECK for Linux  V14.3.12\nmore", want: Version{14, 3, 12}},
		{banner: "FORCHECK V14.2.0", want: Version{14, 2, 0}},
		{banner: "", wantErr: true},
		{banner: "FORCHECK unknown", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseVersion(tt.banner)
		if tt.wantErr {
			if !errors.Is(err, ErrUnexpectedOutput) {
				t.Errorf("ParseVersion(%q): expected ErrUnexpectedOutput, got %v", tt.banner, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, %v; want %v", tt.banner, got, err, tt.want)
		}
	}

	if (Version{14, 1, 9}).AtLeast(MinVersion) {
		t.Error("14.1 must be older than the minimum version")
	}
	if !(Version{15, 0, 0}).AtLeast(MinVersion) {
		t.Error("15.0 must be accepted")
	}
}

// TestProbeVersion runs the fake forchk to read its banner.
func TestProbeVersion(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		_, env := fakeInstall(t, bannerScript)
		inst, err := Locate(env)
		if err != nil {
			t.Fatal(err)
		}
		v, err := inst.ProbeVersion(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != (Version{14, 3, 12}) || inst.Version != v {
			t.Errorf("unexpected version: %v", v)
		}
	})

	t.Run("too old", func(t *testing.T) {
		_, env := fakeInstall(t, "echo \"FORCHECK V13.6.1\"\n")
		inst, err := Locate(env)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := inst.ProbeVersion(context.Background()); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("expected ErrUnsupportedVersion, got %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, env := fakeInstall(t, "echo hello\n")
		inst, err := Locate(env)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := inst.ProbeVersion(context.Background()); !errors.Is(err, ErrUnexpectedOutput) {
			t.Errorf("expected ErrUnexpectedOutput, got %v", err)
		}
	})
}

// TestCommand tests construction of the forchk command line.
func TestCommand(t *testing.T) {
	dir, env := fakeInstall(t, bannerScript)
	inst, err := Locate(env)
	if err != nil {
		t.Fatal(err)
	}

	cmd, err := inst.Command("out.lst", []string{"a.f90", "b.f"}, Options{
		Standard:     "2003",
		Emulation:    "ifort",
		FreeForm:     true,
		ExtraOptions: []string{"-allc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"-l", "out.lst",
		"-nshinc", "-plen", "999", "-pwid", "255", "-batch",
		"-f03", "-ff", "-allc",
		"a.f90", "b.f",
	}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("args = %v\nwant %v", cmd.Args, want)
	}
	if cmd.Env[EnvConfig] != filepath.Join(dir, "share", "forcheck", "ifort.cnf") {
		t.Errorf("unexpected FCKCNF: %s", cmd.Env[EnvConfig])
	}
	if !strings.HasSuffix(cmd.String(), "a.f90 b.f") {
		t.Errorf("unexpected command string: %s", cmd.String())
	}

	if _, err := inst.Command("out.lst", nil, Options{Standard: "66"}); !errors.Is(err, ErrUnsupportedStandard) {
		t.Errorf("expected ErrUnsupportedStandard, got %v", err)
	}
	if _, err := inst.Command("out.lst", nil, Options{Emulation: "nag"}); !errors.Is(err, ErrUnsupportedEmulation) {
		t.Errorf("expected ErrUnsupportedEmulation, got %v", err)
	}
}

// TestParseExtraOptions tests shell splitting of extra options.
func TestParseExtraOptions(t *testing.T) {
	t.Parallel()

	got, err := ParseExtraOptions(`-I "include dir" -allc`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"-I", "include dir", "-allc"}) {
		t.Errorf("unexpected split: %q", got)
	}

	if got, err := ParseExtraOptions("   "); err != nil || got != nil {
		t.Errorf("expected nil for blank input, got %q, %v", got, err)
	}
	if _, err := ParseExtraOptions(`"unterminated`); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

const runScript = `echo "-- commandline: forchk"
echo "-- file: a.f90"
echo "(a.f90)"
echo "include 'missing.h'"
echo "FCK-- cannot open include file"
echo "-- file: b.f"
echo "FCKCNF=$FCKCNF"
while [ "$1" != "" ]; do
  if [ "$1" = "-l" ]; then shift; echo "FORCHECK V14.3.12" > "$1"; fi
  shift
done
exit 4
`

// TestRun tests streaming of the console output and the exit status.
func TestRun(t *testing.T) {
	dir, env := fakeInstall(t, runScript)
	inst, err := Locate(env)
	if err != nil {
		t.Fatal(err)
	}

	listfile := filepath.Join(dir, "out.lst")
	cmd, err := inst.Command(listfile, []string{"a.f90", "b.f"}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var progress []string
	var warnings []RuntimeWarning
	logFile := filepath.Join(dir, "forcheck.log")

	status, err := Run(context.Background(), cmd, RunOptions{
		LogFile:    logFile,
		Logger:     quietLogger(),
		OnProgress: func(f string) { progress = append(progress, f) },
		OnWarning:  func(w RuntimeWarning) { warnings = append(warnings, w) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if status.Code != 4 || !status.Known || status.Message != ExitMessages[4] {
		t.Errorf("unexpected status: %+v", status)
	}
	if !reflect.DeepEqual(progress, []string{"a.f90", "b.f"}) {
		t.Errorf("unexpected progress: %v", progress)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 runtime warning, got %d", len(warnings))
	}
	w := warnings[0]
	if w.Message != "cannot open include file" || w.Culprit != "include 'missing.h'" || w.Location != "(a.f90)" {
		t.Errorf("unexpected warning: %+v", w)
	}

	log, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(log), "FCKCNF="+inst.ConfigFile(DefaultEmulation)) {
		t.Errorf("FCKCNF not passed to forchk, log:\n%s", log)
	}
	if _, err := os.Stat(listfile); err != nil {
		t.Errorf("listfile not written: %v", err)
	}
}

// TestRunUnknownExitStatus tests undocumented exit statuses.
func TestRunUnknownExitStatus(t *testing.T) {
	dir, env := fakeInstall(t, "exit 3\n")
	inst, err := Locate(env)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := inst.Command(filepath.Join(dir, "out.lst"), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	status, err := Run(context.Background(), cmd, RunOptions{
		LogFile: filepath.Join(dir, "forcheck.log"),
		Logger:  quietLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Known || status.Code != 3 {
		t.Errorf("unexpected status: %+v", status)
	}
}

// TestRunTimeout tests that a hanging forchk is stopped at the deadline.
func TestRunTimeout(t *testing.T) {
	dir, env := fakeInstall(t, "exec sleep 10\n")
	inst, err := Locate(env)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := inst.Command(filepath.Join(dir, "out.lst"), nil, Options{})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = Run(ctx, cmd, RunOptions{
		LogFile: filepath.Join(dir, "forcheck.log"),
		Logger:  quietLogger(),
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 8*time.Second {
		t.Error("run was not stopped at the deadline")
	}
}
