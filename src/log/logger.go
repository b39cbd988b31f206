// MIT License
//
// Copyright (c) 2025 agrismart-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// go/src/log/logger.go
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity level of the log message.
type LogLevel int

// Log level constants starting from 0 with iota.
const (
	DEBUG LogLevel = iota // Detailed debug information.
	INFO                  // General informational messages.
	WARN                  // Warnings about potential issues.
	ERROR                 // Error messages.
)

// levelNames associates LogLevel constants with string labels.
var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// currentLevel holds the minimum log level to output.
var currentLevel = INFO

// mu protects the log output to avoid interleaving log messages.
var mu sync.Mutex

// buffer holds the in-memory buffer for log messages.
var buffer = &LogBuffer{}

// loggerOut writes logs both to stdout and the in-memory buffer.
var loggerOut io.Writer = io.MultiWriter(os.Stdout, buffer)

// LogBuffer is a thread-safe bytes.Buffer to store logs in memory.
type LogBuffer struct {
	mu  sync.Mutex   // protects buf
	buf bytes.Buffer // underlying buffer
}

// Write implements io.Writer for LogBuffer.
func (l *LogBuffer) Write(p []byte) (n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

// String returns the current contents of the buffer as a string.
func (l *LogBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

// SetLevel sets the global logging level.
// Messages below this level will be ignored.
func SetLevel(lvl LogLevel) {
	currentLevel = lvl
}

// ParseLevel converts a level name ("debug", "info", ...) to a LogLevel.
// Unrecognized names fall back to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// logf is the internal function that actually formats and writes log messages.
// It respects the current log level, prefixes the message with timestamp and
// level name, and writes to the configured logger output.
func logf(level LogLevel, format string, args ...any) {
	if level < currentLevel {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	prefix := fmt.Sprintf("%s [%s] ", ts, levelNames[level])
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = fmt.Fprint(loggerOut, prefix+msg)
}

// Debugf logs a formatted message at DEBUG level.
func Debugf(format string, args ...any) { logf(DEBUG, format, args...) }

// Infof logs a formatted message at INFO level.
func Infof(format string, args ...any) { logf(INFO, format, args...) }

// Warnf logs a formatted message at WARN level.
func Warnf(format string, args ...any) { logf(WARN, format, args...) }

// Errorf logs a formatted message at ERROR level.
func Errorf(format string, args ...any) { logf(ERROR, format, args...) }

// Fatalf logs a formatted message at ERROR level and then terminates the program.
func Fatalf(format string, args ...any) {
	logf(ERROR, format, args...)
	os.Exit(1)
}

// GetLogs returns the full log content accumulated in the in-memory buffer.
// Useful for retrieving all logs for inspection or testing.
func GetLogs() string {
	return buffer.String()
}
