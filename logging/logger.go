// Package logging is a small leveled logger. Each component gets its own
// prefix and colour, e.g. logging.New("SESSION", logging.ColorCyan, os.Stdout).
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Color constants for logging
const (
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorReset   = "\033[0m"
)

// Level orders log messages by severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

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

// ParseLevel maps a level name onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

type Logger struct {
	prefix string
	color  string
	out    *log.Logger
	mu     sync.RWMutex
	level  Level
}

// New returns a logger writing "[PREFIX] [LEVEL] message" lines to w. An
// empty color disables colouring.
func New(prefix, color string, w io.Writer) *Logger {
	return &Logger{
		prefix: prefix,
		color:  color,
		out:    log.New(w, "", log.LstdFlags),
		level:  INFO,
	}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *Logger) Debug(format string, args ...any) {
	l.logf(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.logf(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.logf(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.logf(ERROR, format, args...)
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if l == nil || level < l.Level() {
		return
	}
	tag := fmt.Sprintf("[%s]", l.prefix)
	if l.color != "" {
		tag = l.color + tag + ColorReset
	}
	l.out.Printf("%s [%s] %s", tag, level, fmt.Sprintf(format, args...))
}

var defaultLogger = New("APP", ColorGreen, os.Stdout)

// Default returns the process-wide APP logger.
func Default() *Logger {
	return defaultLogger
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := New("", "", io.Discard)
	l.SetLevel(ERROR + 1)
	return l
}
