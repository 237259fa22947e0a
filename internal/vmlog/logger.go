// Package vmlog centralizes the structured logger used across the vm
// subsystem, the way utils.InicializarLogger did for the original module
// split, but built on logrus rather than log/slog.
package vmlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the package-level logger every vm component logs through. It
// carries a "component" field the way the teacher's loggers carried
// "modulo".
var Log = newDefault()

func newDefault() *logrus.Entry {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
	return base.WithField("component", "vm")
}

// Init reconfigures the package logger's level and component field.
// Call it once at process start, before any vm operation runs.
func Init(level string, component string) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		l = logrus.InfoLevel
	}
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(l)
	Log = base.WithField("component", component)
}

// For sub-components that want their own field pinned in addition to
// "component" (e.g. a per-process pid), mirroring the teacher's pattern
// of passing "pid" as a key on every call site.
func With(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
