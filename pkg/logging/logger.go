package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger configured for the given environment: JSON
// output in production (for log aggregation), human-readable text
// elsewhere, both carrying the calling site via SourceHook.
func New(level string, production bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.AddHook(NewSourceHook())

	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// ConsoleLogger returns a bare logger at the given level with no hooks,
// used by unit tests that only want to assert on emitted log lines
// without the source annotation noise, mirroring the teacher's
// logging.ConsoleLogger helper used across eventbus tests.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	return logger
}
