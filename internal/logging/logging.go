package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a text logger at the named level. Unknown levels map to info.
func New(level string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if out != nil {
		l.SetOutput(out)
	}
	setLevel(l, level)
	return l
}

func setLevel(l *logrus.Logger, level string) {
	switch level {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}

// Discard is a logger for tests.
func Discard() *logrus.Logger {
	return New("error", io.Discard)
}
