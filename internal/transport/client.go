// ============================================================================
// Transport Client - request/reply with retry, backoff and socket recovery
// ============================================================================
//
// Package: internal/transport
// File: client.go
//
// State machine (one envelope):
//
//   READY ──send──▶ AWAITING_REPLY ──reply──▶ READY            (OK / ERROR)
//                        │
//                     timeout / channel error
//                        ▼
//                     BACKOFF ──close, sleep, redial──▶ READY ──▶ send again
//                        │
//                  schedule exhausted
//                        ▼
//                     FAILED                                    (TIMEOUT)
//
// A REQ socket that sent without receiving refuses a second send, so every
// retry discards the channel and dials a new one. A schedule of length k
// allows k retries (k+1 attempts); waits are applied literally, in order.
//
// Exactly one AttemptRecord is produced per envelope, spanning the first
// attempt's start to the terminal attempt's end.
//
// ============================================================================

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/envelope"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// State is the exchange state of a Client.
type State int

const (
	StateReady State = iota
	StateAwaitingReply
	StateBackoff
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateAwaitingReply:
		return "AWAITING_REPLY"
	case StateBackoff:
		return "BACKOFF"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Default timing, matching the PS defaults
var (
	DefaultTimeout = 2 * time.Second
	DefaultBackoff = []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}
)

// Config controls waits and retries.
type Config struct {
	Timeout time.Duration   // per-attempt reply wait
	Backoff []time.Duration // wait before retry i; len = retry budget
	Wire    WireFormat
}

// Observer is notified of retries and terminal records.
type Observer interface {
	RetryScheduled(op types.Operation, attempt int, wait time.Duration, cause error)
	RecordFinished(rec types.AttemptRecord)
}

// Client sends envelopes one at a time over a single logical channel.
// It is not safe for concurrent Send calls; use one Client per worker.
type Client struct {
	dialer   Dialer
	codec    *envelope.Codec
	cfg      Config
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	ch    Channel
	state State
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithObserver registers an observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) { c.observer = o }
}

// WithClock replaces the clock used for record timestamps.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates a client. The first channel is dialed lazily on Send.
func NewClient(dialer Dialer, codec *envelope.Codec, cfg Config, opts ...ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		dialer: dialer,
		codec:  codec,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
		sleep:  sleepContext,
		state:  StateReady,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current exchange state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Send runs the full lifecycle of env and returns its terminal record.
//
// Parameters:
//   - ctx: cancels waits and backoff sleeps
//   - env: envelope to send; it is re-signed before every attempt
//
// Returns:
//   - types.AttemptRecord: exactly one record for OK, ERROR or TIMEOUT
//   - error: non-nil only when ctx is cancelled; no record is produced then
func (c *Client) Send(ctx context.Context, env types.RequestEnvelope) (types.AttemptRecord, error) {
	start := c.now()
	budget := len(c.cfg.Backoff)
	log := c.logger.With(zap.String("request_id", env.RequestID), zap.String("operation", string(env.Operation)))

	for attempt := 0; ; attempt++ {
		env = c.codec.Attach(env)

		reply, err := c.exchange(ctx, env)
		if err == nil {
			c.setState(StateReady)
			outcome := InterpretReply(reply)
			log.Debug("reply received", zap.String("status", string(outcome)), zap.Int("attempt", attempt))
			return c.finish(env, start, outcome, attempt), nil
		}

		c.discard()
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.setState(StateReady)
			return types.AttemptRecord{}, ctxErr
		}

		if attempt >= budget {
			c.setState(StateFailed)
			log.Warn("retries exhausted", zap.Int("retries", attempt), zap.Error(err))
			return c.finish(env, start, types.OutcomeTimeout, attempt), nil
		}

		wait := c.cfg.Backoff[attempt]
		c.setState(StateBackoff)
		log.Info("no reply, retrying", zap.Duration("wait", wait), zap.Int("attempt", attempt+1), zap.Error(err))
		if c.observer != nil {
			c.observer.RetryScheduled(env.Operation, attempt+1, wait, err)
		}
		if err := c.sleep(ctx, wait); err != nil {
			c.setState(StateReady)
			return types.AttemptRecord{}, err
		}
		c.setState(StateReady)
	}
}

// exchange performs one send/receive round, dialing first when needed.
func (c *Client) exchange(ctx context.Context, env types.RequestEnvelope) ([]byte, error) {
	ch, err := c.channel(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := c.cfg.Wire.Encode(env)
	if err != nil {
		return nil, fmt.Errorf("transport: encode: %w", err)
	}

	c.setState(StateAwaitingReply)
	if err := ch.Send(payload); err != nil {
		return nil, err
	}
	return ch.Recv(ctx, c.cfg.Timeout)
}

func (c *Client) channel(ctx context.Context) (Channel, error) {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch != nil {
		return ch, nil
	}

	ch, err := c.dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
	return ch, nil
}

// discard closes the current channel; the next attempt dials a new one.
func (c *Client) discard() {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()
	if ch == nil {
		return
	}
	if err := ch.Close(); err != nil {
		c.logger.Debug("closing channel", zap.Error(err))
	}
}

func (c *Client) finish(env types.RequestEnvelope, start time.Time, outcome types.Outcome, retries int) types.AttemptRecord {
	end := c.now()
	if end.Before(start) {
		end = start
	}
	rec := types.AttemptRecord{
		RequestID: env.RequestID,
		Operation: env.Operation,
		Start:     unixSeconds(start),
		End:       unixSeconds(end),
		Outcome:   outcome,
		Retries:   retries,
	}
	if c.observer != nil {
		c.observer.RecordFinished(rec)
	}
	return rec
}

// Close releases the current channel, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Close()
}

// IsTimeout reports whether err is a reply timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
