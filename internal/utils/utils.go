// Package utils hosts process-wide helpers shared by commands and internal
// packages.
package utils

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. The root command sets its level from the
// --loglevel flag; the dashboard redirects its output while it owns the
// screen.
var Log = logrus.New()

// SetLogLevel adjusts Log's verbosity. Unrecognized names keep the current
// level.
func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	}
}
