// ============================================================================
// Envelope Codec
// ============================================================================
//
// Package: internal/envelope
// File: codec.go
// Purpose: Sign, verify and build PS request envelopes
//
// Signing:
//   mac = hex(HMAC-SHA256(secret, canonical(fields \ {hmac})))
//   canonical = JSON object, keys sorted, no whitespace
//
// Verification:
//   Sits at a trust boundary. Every failure (bad signature, stale
//   timestamp, malformed input) collapses to false and the caller cannot
//   tell which check rejected the envelope.
//
// The secret is injected at construction; nothing here reads ambient state.
//
// ============================================================================

package envelope

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// DefaultFreshnessWindow is the accepted clock skew for issued_at.
const DefaultFreshnessWindow = 60 * time.Second

const macField = "hmac"

// Codec signs and verifies envelopes with a shared secret.
type Codec struct {
	secret  []byte
	allowed map[types.Operation]struct{}
	ops     []types.Operation
	now     func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces the wall clock used for timestamps and freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec for the given secret and allowed operations.
// An empty ops list falls back to types.DefaultOperations.
func NewCodec(secret []byte, ops []types.Operation, opts ...Option) *Codec {
	if len(ops) == 0 {
		ops = types.DefaultOperations
	}
	c := &Codec{
		secret:  append([]byte(nil), secret...),
		allowed: make(map[types.Operation]struct{}, len(ops)),
		ops:     append([]types.Operation(nil), ops...),
		now:     time.Now,
	}
	for _, op := range ops {
		c.allowed[op] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Operations returns the allowed operations in configuration order.
func (c *Codec) Operations() []types.Operation {
	return append([]types.Operation(nil), c.ops...)
}

// Allowed reports whether op is in the configured set.
func (c *Codec) Allowed(op types.Operation) bool {
	_, ok := c.allowed[op]
	return ok
}

// Sign computes the hex HMAC over fields, ignoring any existing "hmac" key.
func (c *Codec) Sign(fields map[string]any) string {
	raw, err := canonical(fields)
	if err != nil {
		// fields built by this package always marshal; anything else is a programming error
		panic(fmt.Sprintf("envelope: canonical encoding failed: %v", err))
	}
	return c.mac(raw)
}

// SignEnvelope computes the MAC for env's signed fields.
func (c *Codec) SignEnvelope(env types.RequestEnvelope) string {
	return c.Sign(env.Fields())
}

// Attach returns env with a freshly computed MAC.
func (c *Codec) Attach(env types.RequestEnvelope) types.RequestEnvelope {
	env.MAC = c.SignEnvelope(env)
	return env
}

// MakeRequest builds and signs a new envelope.
//
// Parameters:
//   - op: operation, must be in the allowed set
//   - target: book id
//   - subject: user id
//
// Returns:
//   - types.RequestEnvelope: signed envelope with fresh request id, timestamp and nonce
//   - error: ErrInvalidOperation when op is not allowed
func (c *Codec) MakeRequest(op types.Operation, target, subject int) (types.RequestEnvelope, error) {
	if !c.Allowed(op) {
		return types.RequestEnvelope{}, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}
	nonce, err := newNonce()
	if err != nil {
		return types.RequestEnvelope{}, fmt.Errorf("envelope: nonce: %w", err)
	}
	env := types.RequestEnvelope{
		RequestID: NewRequestID(),
		Operation: op,
		TargetID:  target,
		SubjectID: subject,
		IssuedAt:  c.now().Unix(),
		Nonce:     nonce,
	}
	return c.Attach(env), nil
}

// Verify checks the MAC and freshness of a raw JSON envelope.
// It never returns an error: anything wrong yields false.
func (c *Codec) Verify(raw []byte, window time.Duration) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return false
	}
	return c.verifyFields(fields, window)
}

// VerifyEnvelope checks the MAC and freshness of a typed envelope.
func (c *Codec) VerifyEnvelope(env types.RequestEnvelope, window time.Duration) bool {
	fields := env.Fields()
	fields[macField] = env.MAC
	return c.verifyFields(fields, window)
}

func (c *Codec) verifyFields(fields map[string]any, window time.Duration) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	mac, isString := fields[macField].(string)
	if !isString || mac == "" {
		return false
	}
	ts, valid := timestamp(fields["ts"])
	if !valid {
		return false
	}

	raw, err := canonical(fields)
	if err != nil {
		return false
	}
	goodMAC := hmac.Equal([]byte(mac), []byte(c.mac(raw)))

	// whole seconds on both sides; now-ts would overflow for extreme ts
	w := int64(window / time.Second)
	now := c.now().Unix()
	fresh := ts >= now-w && ts <= now+w

	return goodMAC && fresh
}

func (c *Codec) mac(raw []byte) string {
	h := hmac.New(sha256.New, c.secret)
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// canonical encodes fields without the mac as compact JSON with sorted keys.
func canonical(fields map[string]any) ([]byte, error) {
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == macField {
			continue
		}
		payload[k] = v
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func timestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// NewRequestID returns a 32-char hex request id.
func NewRequestID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func newNonce() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
