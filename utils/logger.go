package utils

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger

	lazyInit sync.Once
)

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// Set output untuk InfoLogger ke stdout
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Set output untuk ErrorLogger ke stderr
	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.WarnLevel)
}

// InitDiscardLogger installs loggers that drop everything. Used by tests.
func InitDiscardLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()
	InfoLogger.SetOutput(io.Discard)
	ErrorLogger.SetOutput(io.Discard)
}

// ensureLoggers runs InitLogger once if nothing installed loggers before the
// first log call.
func ensureLoggers() {
	lazyInit.Do(func() {
		if InfoLogger == nil || ErrorLogger == nil {
			InitLogger()
		}
	})
}

// Info returns an entry on InfoLogger, initialising the loggers on first use.
func Info(fields logrus.Fields) *logrus.Entry {
	ensureLoggers()
	return InfoLogger.WithFields(fields)
}

// Error returns an entry on ErrorLogger, initialising the loggers on first use.
func Error(fields logrus.Fields) *logrus.Entry {
	ensureLoggers()
	return ErrorLogger.WithFields(fields)
}
