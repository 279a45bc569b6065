package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// logLevel orders log severities from debug up.
type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

func (l logLevel) String() string {
	switch l {
	case levelDebug:
		return "debug"
	case levelInfo:
		return "info"
	case levelWarn:
		return "warn"
	case levelError:
		return "error"
	default:
		return "unknown"
	}
}

func parseLogLevel(s string) (logLevel, error) {
	switch s {
	case "debug":
		return levelDebug, nil
	case "info", "":
		return levelInfo, nil
	case "warn", "warning":
		return levelWarn, nil
	case "error":
		return levelError, nil
	default:
		return levelInfo, vperrors.NewValidationError("cli", "log-level", s,
			"use debug, info, warn or error")
	}
}

// consoleLogger writes leveled, optionally colored lines to stderr. The
// pipeline packages stay silent; all human-facing daemon output goes
// through here.
type consoleLogger struct {
	mu    sync.Mutex
	w     io.Writer
	level logLevel
	color bool
}

func newConsoleLogger(level logLevel) *consoleLogger {
	return &consoleLogger{
		w:     os.Stderr,
		level: level,
		color: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}
}

func (l *consoleLogger) Debugf(format string, args ...interface{}) {
	l.logf(levelDebug, format, args...)
}

func (l *consoleLogger) Infof(format string, args ...interface{}) {
	l.logf(levelInfo, format, args...)
}

func (l *consoleLogger) Warnf(format string, args ...interface{}) {
	l.logf(levelWarn, format, args...)
}

func (l *consoleLogger) Errorf(format string, args ...interface{}) {
	l.logf(levelError, format, args...)
}

func (l *consoleLogger) logf(level logLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	tag := "[" + level.String() + "]"
	if l.color {
		switch level {
		case levelDebug:
			tag = colorGray + tag + colorReset
		case levelWarn:
			tag = colorYellow + tag + colorReset
		case levelError:
			tag = colorRed + tag + colorReset
		default:
			tag = colorCyan + tag + colorReset
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s\n", tag, fmt.Sprintf(format, args...))
}
