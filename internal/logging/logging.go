// Package logging configures diagnostic logging for the wrapper process.
//
// Diagnostics go to stderr only. Stdout belongs to the wrapped program's
// passthrough stream and must never carry wrapper output.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// NewLogger returns a logger entry tagged with the component name.
func NewLogger(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// SetVerbose enables debug-level diagnostics.
func SetVerbose(verbose bool) {
	if verbose {
		root.SetLevel(logrus.DebugLevel)
	}
}
