// Package logging implements the structured logger used across the
// receiver core. It is deliberately small: one log line per event, a
// handful of typed fields, JSON or plain output. Adapted from the
// teacher's SIP-dialog structured logger down to what the pipeline
// components actually need (component tagging, per-session context,
// error logging with the errs.Error code attached).
package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/arzzra/audiopipe/pkg/errs"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(k, v string) Field            { return Field{k, v} }
func Int(k string, v int) Field           { return Field{k, v} }
func Uint32(k string, v uint32) Field     { return Field{k, v} }
func Duration(k string, v time.Duration) Field { return Field{k, v} }
func Err(err error) Field                 { return Field{"error", err.Error()} }

// Logger is the interface pipeline components take, so tests can swap in
// a no-op implementation.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	LogError(ctx context.Context, err error, msg string, fields ...Field)
	WithComponent(component string) Logger
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
}

type entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorCode string                 `json:"error_code,omitempty"`
}

// StdLogger is the default Logger, writing newline-delimited JSON (or a
// compact plain line) to an io.Writer.
type StdLogger struct {
	mu        sync.RWMutex
	level     Level
	output    io.Writer
	component string
	fields    map[string]interface{}
	json      bool
}

// New returns a StdLogger writing JSON lines to os.Stdout at LevelInfo.
func New() *StdLogger {
	return &StdLogger{level: LevelInfo, output: os.Stdout, json: true}
}

func (l *StdLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *StdLogger) enabled(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *StdLogger) WithComponent(component string) Logger {
	return &StdLogger{level: l.level, output: l.output, component: component, fields: copyFields(l.fields), json: l.json}
}

func (l *StdLogger) WithFields(fields ...Field) Logger {
	nf := copyFields(l.fields)
	for _, f := range fields {
		nf[f.Key] = f.Value
	}
	return &StdLogger{level: l.level, output: l.output, component: l.component, fields: nf, json: l.json}
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) { l.log(LevelDebug, msg, nil, fields...) }
func (l *StdLogger) Info(ctx context.Context, msg string, fields ...Field)  { l.log(LevelInfo, msg, nil, fields...) }
func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...Field)  { l.log(LevelWarn, msg, nil, fields...) }
func (l *StdLogger) Error(ctx context.Context, msg string, fields ...Field) { l.log(LevelError, msg, nil, fields...) }

func (l *StdLogger) LogError(ctx context.Context, err error, msg string, fields ...Field) {
	if err == nil {
		l.Error(ctx, msg, fields...)
		return
	}
	l.log(LevelError, msg, err, fields...)
}

func (l *StdLogger) log(level Level, msg string, cause error, fields ...Field) {
	if !l.enabled(level) {
		return
	}
	e := entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		e.Fields[k] = v
	}
	for _, f := range fields {
		e.Fields[f.Key] = f.Value
	}
	if cause != nil {
		e.Error = cause.Error()
		if ae, ok := cause.(*errs.Error); ok {
			e.ErrorCode = string(ae.Code)
		}
	}
	l.write(&e)
}

func (l *StdLogger) write(e *entry) {
	l.mu.RLock()
	w, asJSON := l.output, l.json
	l.mu.RUnlock()

	if asJSON {
		if data, err := json.Marshal(e); err == nil {
			w.Write(append(data, '\n'))
			return
		}
	}
	var parts []string
	parts = append(parts, e.Timestamp.Format("2006-01-02 15:04:05.000"), "["+e.Level+"]")
	if e.Component != "" {
		parts = append(parts, "["+e.Component+"]")
	}
	parts = append(parts, e.Message)
	if e.Error != "" {
		parts = append(parts, "error="+e.Error)
	}
	w.Write([]byte(strings.Join(parts, " ") + "\n"))
}

func copyFields(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// NoOp is a Logger that discards everything, used by tests and by
// components constructed without an explicit logger.
type NoOp struct{}

func (NoOp) Debug(context.Context, string, ...Field)            {}
func (NoOp) Info(context.Context, string, ...Field)             {}
func (NoOp) Warn(context.Context, string, ...Field)             {}
func (NoOp) Error(context.Context, string, ...Field)            {}
func (NoOp) LogError(context.Context, error, string, ...Field)  {}
func (NoOp) WithComponent(string) Logger                        { return NoOp{} }
func (NoOp) WithFields(...Field) Logger                         { return NoOp{} }
func (NoOp) SetLevel(Level)                                     {}
