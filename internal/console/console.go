package console

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/ottr/internal/logging"
)

// Level is the console method a message was logged with.
type Level string

const (
	LevelLog   Level = "log"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a console method name to a Level. Unknown methods such as
// "table" or "dir" log at LevelLog.
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(s)); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	case "warning":
		return LevelWarn
	case "trace":
		return LevelDebug
	case "assert":
		return LevelError
	}
	return LevelLog
}

// Zap returns the log level used when a message is written to a zap logger.
func (l Level) Zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

// Console receives console calls.
type Console interface {
	Log(level Level, args ...any)
}

// Sink receives a copy of every call made through a Tap.
type Sink interface {
	Emit(level Level, args ...any) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, args ...any) error

// Emit calls f.
func (f SinkFunc) Emit(level Level, args ...any) error { return f(level, args...) }

// Tap forwards every call to a sink and then to the wrapped console. Calls
// made while the sink is running, for example a sink that logs through the
// same console, go to the wrapped console only.
type Tap struct {
	next     Console
	sink     Sink
	emitting atomic.Bool
}

// NewTap wraps next so that sink sees every call first.
func NewTap(next Console, sink Sink) *Tap {
	return &Tap{next: next, sink: sink}
}

// Log implements Console.
func (t *Tap) Log(level Level, args ...any) {
	if t.emitting.CompareAndSwap(false, true) {
		err := t.sink.Emit(level, args...)
		t.emitting.Store(false)
		if err != nil {
			t.next.Log(LevelError, "error posting logs to ottr server", err)
		}
	}
	t.next.Log(level, args...)
}

// Logger is a Console that writes each line of a message to a zap logger.
type Logger struct {
	logger *logging.Logger
	fields []zap.Field
}

// NewLogger returns a Console writing to logger with the given fields.
func NewLogger(logger *logging.Logger, fields ...zap.Field) *Logger {
	return &Logger{logger: logging.OrNop(logger), fields: fields}
}

// Log implements Console.
func (l *Logger) Log(level Level, args ...any) {
	l.logger.EachLine(level.Zap(), Format(args...), l.fields...)
}

// Discard is a Console that drops every call.
var Discard Console = discard{}

type discard struct{}

func (discard) Log(Level, ...any) {}

// Format renders console arguments the way a browser console prints them:
// strings verbatim, nil as "null", everything else with its default format,
// separated by single spaces.
func Format(args ...any) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch v := arg.(type) {
		case nil:
			b.WriteString("null")
		case string:
			b.WriteString(v)
		case error:
			b.WriteString(v.Error())
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

// Func adapts a function to Console.
type Func func(level Level, args ...any)

// Log calls f.
func (f Func) Log(level Level, args ...any) { f(level, args...) }
