// Package cli holds the flag and logging setup shared by the command-line tools.
package cli

import (
	"os"

	"github.com/coreos/pkg/capnslog"
)

// ConfigureLogging routes package loggers to stderr. Verbose enables debug
// output; otherwise only warnings and errors are shown.
func ConfigureLogging(verbose bool) {
	capnslog.SetFormatter(capnslog.NewStringFormatter(os.Stderr))
	if verbose {
		capnslog.SetGlobalLogLevel(capnslog.DEBUG)
		return
	}
	capnslog.SetGlobalLogLevel(capnslog.WARNING)
}
