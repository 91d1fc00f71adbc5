// Package logger provides a small leveled logger with per-component and
// per-query context. Pure packages (router, format) do not log; everything
// that touches the network or disk goes through here.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents a logging level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return DEBUG
	case "info", "INFO", "":
		return INFO
	case "warn", "WARN", "warning", "WARNING":
		return WARN
	case "error", "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger is a leveled logger tagged with a component name
type Logger struct {
	level     Level
	component string
	output    io.Writer
	mu        sync.Mutex
}

// New creates a logger for the given component at the given level string
func New(component, level string) *Logger {
	if component == "" {
		component = "pagesage"
	}
	return &Logger{
		level:     ParseLevel(level),
		component: component,
		output:    os.Stderr,
	}
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// WithComponent returns a new logger writing to the same output under a
// different component name
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		level:     l.level,
		component: component,
		output:    l.output,
	}
}

// WithQueryID returns a logger that prefixes every line with the query's
// request id
func (l *Logger) WithQueryID(queryID string) *QueryLogger {
	return &QueryLogger{logger: l, queryID: queryID}
}

func (l *Logger) log(level Level, queryID, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	ts := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	var line string
	if queryID != "" {
		line = fmt.Sprintf("%s %s [%s] [%s] %s\n", ts, level.String(), l.component, queryID, msg)
	} else {
		line = fmt.Sprintf("%s %s [%s] %s\n", ts, level.String(), l.component, msg)
	}
	l.output.Write([]byte(line))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...any) { l.log(DEBUG, "", format, args...) }

// Info logs an info message
func (l *Logger) Info(format string, args ...any) { l.log(INFO, "", format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...any) { l.log(WARN, "", format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...any) { l.log(ERROR, "", format, args...) }

// QueryLogger tags every line with a query request id
type QueryLogger struct {
	logger  *Logger
	queryID string
}

// Debug logs a debug message with query context
func (q *QueryLogger) Debug(format string, args ...any) {
	q.logger.log(DEBUG, q.queryID, format, args...)
}

// Info logs an info message with query context
func (q *QueryLogger) Info(format string, args ...any) {
	q.logger.log(INFO, q.queryID, format, args...)
}

// Warn logs a warning message with query context
func (q *QueryLogger) Warn(format string, args ...any) {
	q.logger.log(WARN, q.queryID, format, args...)
}

// Error logs an error message with query context
func (q *QueryLogger) Error(format string, args ...any) {
	q.logger.log(ERROR, q.queryID, format, args...)
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{level: ERROR + 1, component: "nop", output: io.Discard}
}
