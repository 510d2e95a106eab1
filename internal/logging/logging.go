// Package logging provides the Logger interface accepted throughout this
// module's packages, bridging to logrus the same way the Docker Model
// Runner's internal logging package does.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface accepted by every package's WithLogger
// option. It embeds logrus.FieldLogger so callers can pass a *logrus.Logger
// or *logrus.Entry directly.
type Logger interface {
	logrus.FieldLogger
}

// New wraps a *logrus.Logger (or nil, for a sensible default) as a Logger.
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return l
}

// discardLogger is the zero-configuration default: every package in this
// module accepts an optional logger and falls back to this no-op rather
// than forcing callers to wire one up.
type discardLogger struct {
	*logrus.Logger
}

var discard = &discardLogger{Logger: newDiscardLogrus()}

func newDiscardLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Discard returns a Logger that drops everything written to it.
func Discard() Logger {
	return discard
}
