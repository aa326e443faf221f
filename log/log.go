// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is the small leveled-logging façade consumed by esedb.File.
// It mirrors the shape the teacher repo imports from its own internal log
// package: a Logger interface, a level filter, a stdlib-backed sink, and a
// Helper with Debug/Info/Warn/Error (+ f-suffixed) methods.
package log

import (
	"fmt"
	stdlog "log"
	"os"
)

// Level is a logging severity.
type Level int

// Severity levels, in ascending order.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String implements fmt.Stringer for Level.
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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is implemented by any sink capable of recording a leveled,
// key-value log entry.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger adapts the standard library's *log.Logger to Logger.
type stdLogger struct {
	log *stdlog.Logger
}

// NewStdLogger returns a Logger that writes to w using the standard
// library's log package.
func NewStdLogger(w *os.File) Logger {
	return &stdLogger{log: stdlog.New(w, "", stdlog.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	msg := fmt.Sprint(keyvals...)
	l.log.Printf("[%s] %s", level, msg)
	return nil
}

// FilterOption configures a filter constructed by NewFilter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level a filter passes through.
func FilterLevel(level Level) FilterOption {
	return func(f *filter) { f.level = level }
}

type filter struct {
	next  Logger
	level Level
}

// NewFilter wraps logger so that only entries at or above the configured
// minimum level (LevelInfo by default) are forwarded.
func NewFilter(logger Logger, opts ...FilterOption) Logger {
	f := &filter{next: logger, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.next.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in a Helper.
func NewHelper(logger Logger) *Helper {
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, args...)
}

func (h *Helper) logf(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	_ = h.logger.Log(level, fmt.Sprintf(format, args...))
}

// Debug logs at LevelDebug.
func (h *Helper) Debug(args ...interface{}) { h.log(LevelDebug, args...) }

// Debugf logs a formatted message at LevelDebug.
func (h *Helper) Debugf(format string, args ...interface{}) { h.logf(LevelDebug, format, args...) }

// Info logs at LevelInfo.
func (h *Helper) Info(args ...interface{}) { h.log(LevelInfo, args...) }

// Infof logs a formatted message at LevelInfo.
func (h *Helper) Infof(format string, args ...interface{}) { h.logf(LevelInfo, format, args...) }

// Warn logs at LevelWarn.
func (h *Helper) Warn(args ...interface{}) { h.log(LevelWarn, args...) }

// Warnf logs a formatted message at LevelWarn.
func (h *Helper) Warnf(format string, args ...interface{}) { h.logf(LevelWarn, format, args...) }

// Error logs at LevelError.
func (h *Helper) Error(args ...interface{}) { h.log(LevelError, args...) }

// Errorf logs a formatted message at LevelError.
func (h *Helper) Errorf(format string, args ...interface{}) { h.logf(LevelError, format, args...) }
