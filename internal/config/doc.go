// Package config provides configuration structures and utilities for checkfort.
// It defines the options controlling how FORCHECK is run, how its listfile
// is parsed and which reports are written, and loads the optional
// .checkfort.yaml or .checkfort.toml file whose values act as defaults for
// the command line flags.
package config
