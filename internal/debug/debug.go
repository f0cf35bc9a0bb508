// Package debug provides diagnostic output controlled by the
// ISSUEFLOW_DEBUG environment variable and the --verbose/--quiet flags.
package debug

import (
	"fmt"
	"os"
)

var (
	enabled     = os.Getenv("ISSUEFLOW_DEBUG") != ""
	verboseMode = false
	quietMode   = false
)

// Enabled reports whether debug output is active.
func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output.
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet suppresses non-essential output (errors and warnings only).
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode
}

// Logf writes debug output to stderr when debug mode is active.
func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// Warnf writes a warning to stderr. Warnings are emitted even in quiet mode;
// they indicate degraded behavior (corrupt state, partial agent output) that
// the user should know about.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// PrintNormal prints informational output unless quiet mode is enabled.
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}
