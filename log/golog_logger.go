package log

import (
	"github.com/kataras/golog"
)

// GologLogger adapts a kataras/golog logger to the Logger seam. Unlike
// StdLogger it keeps no level of its own: SetLevel translates to golog's
// level names and golog does the gating, so an application tuning its golog
// instance directly stays in control.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger}
}

// SetLevel translates a Level to the corresponding golog level.
func (l *GologLogger) SetLevel(level Level) {
	l.logger.SetLevel(gologLevelName(level))
}

func gologLevelName(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "disable"
	}
}

// Debug forwards to golog.
func (l *GologLogger) Debug(format string, v ...any) { l.logger.Debugf(format, v...) }

// Info forwards to golog.
func (l *GologLogger) Info(format string, v ...any) { l.logger.Infof(format, v...) }

// Warn forwards to golog.
func (l *GologLogger) Warn(format string, v ...any) { l.logger.Warnf(format, v...) }

// Error forwards to golog.
func (l *GologLogger) Error(format string, v ...any) { l.logger.Errorf(format, v...) }
