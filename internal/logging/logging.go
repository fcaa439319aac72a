// Package logging configures the shared structured logger. Every package
// logs through the same logrus instance so a cleaning run produces one
// coherent, timestamped stream.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. It is usable with default settings before
// Init is called, so early failures are never silent.
var Log = logrus.New()

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	Log.SetLevel(logrus.InfoLevel)
}

// Init applies the configured log level. Unknown levels fall back to info
// rather than failing the run.
func Init(level string) {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		Log.Warnf("unknown log level %q, using info", level)
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)
}

// SetOutput redirects the log stream, primarily for tests.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// WithField returns an entry with a single structured field attached.
func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

// WithFields returns an entry with structured fields attached.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
