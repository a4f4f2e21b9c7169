// Package logging provides the process-wide logger. Lines carry a
// human-readable timestamp and, for transfer workers, a thread tag so
// interleaved parallel output can be attributed to its entry.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const stampFormat = "2006-01-02 15:04:05"

// Logger writes timestamped lines to stdout or to a log file.
// It is safe for concurrent use.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	file  *os.File
	debug bool
}

// NewWithWriter returns a Logger writing to w.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	return &Logger{out: w, debug: debug}
}

// New returns a Logger writing to stdout. If path is non-empty the log
// file is opened for appending and used instead. debug enables Debugf
// output.
func New(path string, debug bool) (*Logger, error) {
	l := &Logger{out: os.Stdout, debug: debug}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		l.out = f
	}
	return l, nil
}

func (l *Logger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s\n", time.Now().Format(stampFormat), line)
}

// Printf logs one line.
func (l *Logger) Printf(format string, args ...any) {
	l.write(fmt.Sprintf(format, args...))
}

// Workerf logs one line tagged with the worker number, as [T<n>].
func (l *Logger) Workerf(worker int, format string, args ...any) {
	l.write(fmt.Sprintf("[T%d] ", worker) + fmt.Sprintf(format, args...))
}

// Debugf logs one line only when debug output is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if !l.debug {
		return
	}
	l.write("DEBUG: " + fmt.Sprintf(format, args...))
}

// Close releases the log file, if any. The Logger must not be used
// afterwards.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.out = io.Discard
	return err
}
