// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// FORCHECK is a licensed product. The licence location is given through the
// FCKPWD environment variable, and cfort logs the environment and command
// line of each run in debug mode. The SecureHandler masks:
//   - attributes whose key names the licence or a credential (fckpwd,
//     licence_file, password, token, ...)
//   - values that carry an FCKPWD assignment, URL user info, bearer tokens
//     or private key blocks
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Level(quiet, verbose, debug))
//	logger.Debug("forcheck environment", "FCKPWD", "/opt/fck/licence")
//	// FCKPWD=***REDACTED***
package log
