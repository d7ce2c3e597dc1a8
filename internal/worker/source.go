// ============================================================================
// Sender Abstraction
// ============================================================================
//
// Package: internal/worker
// File: source.go
// Purpose: decouple the pool from the transport that delivers envelopes.
//
//   - Live runs: each worker owns a transport.Client with its own channel.
//   - Tests: a fake sender returns canned records.
//
// ============================================================================

package worker

import (
	"context"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// Sender delivers one envelope and returns its terminal record.
// A Sender is used by a single worker goroutine only.
type Sender interface {
	// Send runs the whole retry lifecycle of env.
	//
	// Returns:
	//   - types.AttemptRecord: terminal record (OK, ERROR or TIMEOUT)
	//   - error: non-nil when ctx is cancelled; no record is produced then
	Send(ctx context.Context, env types.RequestEnvelope) (types.AttemptRecord, error)

	// Close releases the sender's channel.
	Close() error
}

// SenderFactory builds the Sender owned by worker id.
type SenderFactory func(id int) Sender
