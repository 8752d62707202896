// Package logging provides leveled console logging for the widget bridge.
// The traffic package holds the forensic record of wire messages; this
// package provides optional real-time output for monitoring.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes structured one-line entries. The zero value is not usable;
// call New.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	widgetID  string
}

// New creates a Logger writing to stderr at Info level.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a logger scoped to a bridge component
// ("sandbox", "session", "adapter", ...).
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		widgetID:  l.widgetID,
	}
}

// WithWidget returns a logger scoped to a widget session.
func (l *Logger) WithWidget(widgetID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		widgetID:  widgetID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	if w != nil {
		l.output = w
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// Dropped logs a message dropped at the sandbox boundary, carrying the
// raw payload so malformed traffic can be inspected later.
func (l *Logger) Dropped(reason string, raw []byte) {
	l.Debug("message dropped", map[string]interface{}{
		"reason": reason,
		"raw":    truncate(string(raw), 512),
	})
}

// formatFields formats a map of fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// log writes an entry: LEVEL TIMESTAMP [component] (widget) message k=v ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var scope string
	if l.component != "" {
		scope += " [" + l.component + "]"
	}
	if l.widgetID != "" {
		scope += " (" + l.widgetID + ")"
	}

	line := fmt.Sprintf("%-5s %s%s %s%s\n", level, timestamp, scope, msg, fieldStr)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}
