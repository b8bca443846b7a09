package log

import (
	stdlog "log"
	"strings"

	"github.com/rs/zerolog"
)

// zeroLogger routes the facade onto a zerolog.Logger.
type zeroLogger struct {
	zl    zerolog.Logger
	level Level
}

func (l *zeroLogger) Debug(msg string, fields ...Field) { l.write(DebugLevel, msg, fields) }
func (l *zeroLogger) Info(msg string, fields ...Field)  { l.write(InfoLevel, msg, fields) }
func (l *zeroLogger) Warn(msg string, fields ...Field)  { l.write(WarnLevel, msg, fields) }
func (l *zeroLogger) Error(msg string, fields ...Field) { l.write(ErrorLevel, msg, fields) }

func (l *zeroLogger) write(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	ev := l.zl.WithLevel(level.zerolog())
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

func (l *zeroLogger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zeroLogger{zl: ctx.Logger(), level: l.level}
}

func (l *zeroLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *zeroLogger) SetLevel(level Level) { l.level = level }
func (l *zeroLogger) GetLevel() Level      { return l.level }

// stdWriter adapts Logger to io.Writer for the standard library logger.
type stdWriter struct{ l Logger }

func (w stdWriter) Write(p []byte) (int, error) {
	w.l.Info(strings.TrimRight(string(p), "\n"), Str("source", "stdlog"))
	return len(p), nil
}

// RedirectStdLog sends output of the standard library logger (used by Pebble)
// through l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdWriter{l: l})
}
