package attemptlog

// ============================================================================
// Attempt Log Error Definitions
// ============================================================================

import "errors"

var (
	// ErrClosed indicates the writer is closed
	ErrClosed = errors.New("attemptlog: already closed")

	// ErrSyncFailed indicates fsync failed after a write
	ErrSyncFailed = errors.New("attemptlog: sync to disk failed")

	// ErrEmptyLog indicates a log that holds no parsable record
	ErrEmptyLog = errors.New("attemptlog: no records")
)
