package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger wraps the charm log.Logger so components share one configured instance
type Logger struct {
	*log.Logger
}

// New creates the process-wide logger
func New(debug bool) *Logger {
	base := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "vigil",
	})
	if debug {
		base.SetLevel(log.DebugLevel)
	}
	return &Logger{Logger: base}
}

// Component returns a sub-logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.WithPrefix("vigil." + name)}
}

// Nop returns a logger that discards everything, for tests
func Nop() *Logger {
	base := log.New(os.Stderr)
	base.SetLevel(log.FatalLevel + 1)
	return &Logger{Logger: base}
}
