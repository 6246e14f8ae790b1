// Package forcheck locates a FORCHECK installation, builds the forchk
// command line and runs it.
//
// FORCHECK is configured through environment variables: FCKDIR points at
// the installation directory and FCKPWD at the licence file. The compiler
// emulation is selected by pointing FCKCNF at one of the *.cnf files that
// ship with FORCHECK. This package never interprets the licence; it only
// checks that the variable is set and passes it on to the child process.
//
// Design decision: The analyzer's exit status is returned as an ExitStatus
// value, not as an error. FORCHECK exits non-zero whenever it reports
// anything, so a non-zero status is the normal outcome of a useful run.
package forcheck
