package logging

import "github.com/sirupsen/logrus"

// LogrusLogger adapts a logrus logger. Namespace prefixes stay in the
// message text so that text and JSON output carry the same component tag.
type LogrusLogger struct {
	l *logrus.Logger
}

// NewLogrus wraps l.
func NewLogrus(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{l: l}
}

// LogrusLevel maps a Level onto the logrus level of the same name.
func LogrusLevel(level Level) logrus.Level {
	switch level {
	case LevelError:
		return logrus.ErrorLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Errorf implements Logger.
func (g *LogrusLogger) Errorf(format string, args ...any) { g.l.Errorf(format, args...) }

// Warnf implements Logger.
func (g *LogrusLogger) Warnf(format string, args ...any) { g.l.Warnf(format, args...) }

// Infof implements Logger.
func (g *LogrusLogger) Infof(format string, args ...any) { g.l.Infof(format, args...) }

// Debugf implements Logger.
func (g *LogrusLogger) Debugf(format string, args ...any) { g.l.Debugf(format, args...) }

// Fatalf implements Logger. It logs at error level with fatal=true instead of
// calling logrus' Fatalf, which would exit the process.
func (g *LogrusLogger) Fatalf(format string, args ...any) {
	g.l.WithField("fatal", true).Errorf(format, args...)
}
