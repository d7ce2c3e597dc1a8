package attemptlog

// ============================================================================
// Attempt Log Writer
// Responsibility:
// 1. Append one text line per terminal attempt record (append-only)
// 2. Keep every line whole under concurrent writers
// 3. Optionally fsync after each line
// ============================================================================

import (
	"fmt"
	"os"
	"sync"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// FileInterface is the subset of *os.File the writer needs.
// Tests substitute it to simulate failing disks.
type FileInterface interface {
	Write(p []byte) (n int, err error)
	Sync() error
	Close() error
}

// Writer appends attempt records to a log file.
type Writer struct {
	mu           sync.Mutex
	file         FileInterface
	path         string
	syncOnAppend bool
	closed       bool
	lines        uint64
}

// Option configures a Writer.
type Option func(*Writer)

// WithSync forces an fsync after every appended line.
func WithSync() Option {
	return func(w *Writer) { w.syncOnAppend = true }
}

// Open creates or opens the log at path in append mode.
//
// Existing lines are never rewritten: every run only adds to the file.
//
// Parameters:
//
//	path - log file path
//	opts - writer options
//
// Returns:
//
//	*Writer, error (if the file cannot be opened)
func Open(path string, opts ...Option) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("attemptlog: open %s: %w", path, err)
	}
	return newWriter(file, path, opts...), nil
}

func newWriter(file FileInterface, path string, opts ...Option) *Writer {
	w := &Writer{file: file, path: path}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append writes rec as a single line.
//
// The line is built before the lock is taken and written with one Write
// call, so concurrent appends never interleave within a line.
func (w *Writer) Append(rec types.AttemptRecord) error {
	line := []byte(FormatLine(rec) + "\n")

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("attemptlog: append %s: %w", rec.RequestID, err)
	}
	if w.syncOnAppend {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("%w: %v", ErrSyncFailed, err)
		}
	}
	w.lines++
	return nil
}

// Lines returns the number of lines appended by this writer.
func (w *Writer) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Close syncs and closes the file. Calling Close twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	return w.file.Close()
}
