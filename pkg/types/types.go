// Package types defines the core domain model shared by the PS client packages.
package types

// Operation is one of the library operations a PS can request.
// The allowed set is configuration, not code.
type Operation string

// Default operations understood by the gateway
const (
	OpRenewal Operation = "RENOVACION" // renew a loan
	OpReturn  Operation = "DEVOLUCION" // return a book
	OpLoan    Operation = "PRESTAMO"   // borrow a book
)

// DefaultOperations is the allowed set used when configuration does not override it.
var DefaultOperations = []Operation{OpRenewal, OpReturn, OpLoan}

// Outcome is the terminal result of one request lifecycle.
type Outcome string

const (
	OutcomeOK      Outcome = "OK"      // gateway replied with a success status
	OutcomeError   Outcome = "ERROR"   // gateway replied with anything else, or an unparsable reply
	OutcomeTimeout Outcome = "TIMEOUT" // retry budget exhausted without a reply
)

// Known reports whether o is one of the three recorded outcomes.
func (o Outcome) Known() bool {
	switch o {
	case OutcomeOK, OutcomeError, OutcomeTimeout:
		return true
	}
	return false
}

// RequestEnvelope is one signed unit of work.
// JSON names follow the signed PS payload format.
type RequestEnvelope struct {
	RequestID string    `json:"request_id" msgpack:"request_id"` // unique, never reused
	Operation Operation `json:"tipo" msgpack:"tipo"`             // requested operation
	TargetID  int       `json:"book_id" msgpack:"book_id"`       // book the operation acts on
	SubjectID int       `json:"user_id" msgpack:"user_id"`       // acting user
	IssuedAt  int64     `json:"ts" msgpack:"ts"`                 // Unix seconds, fixed at creation
	Nonce     string    `json:"nonce" msgpack:"nonce"`           // random token
	MAC       string    `json:"hmac" msgpack:"hmac"`             // hex HMAC over every other field
}

// Fields returns the signed field set of the envelope (everything except MAC).
func (e RequestEnvelope) Fields() map[string]any {
	return map[string]any{
		"request_id": e.RequestID,
		"tipo":       string(e.Operation),
		"book_id":    e.TargetID,
		"user_id":    e.SubjectID,
		"ts":         e.IssuedAt,
		"nonce":      e.Nonce,
	}
}

// AttemptRecord is the outcome of one full request lifecycle
// (initial send plus any retries). Immutable once written.
type AttemptRecord struct {
	RequestID string    `json:"request_id"`
	Operation Operation `json:"operation"`
	Start     float64   `json:"start"` // Unix seconds
	End       float64   `json:"end"`   // Unix seconds, End >= Start
	Outcome   Outcome   `json:"status"`
	Retries   int       `json:"retries"` // timeout-driven restarts consumed
}

// Latency returns End - Start in seconds.
func (r AttemptRecord) Latency() float64 {
	return r.End - r.Start
}
