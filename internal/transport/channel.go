package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Channel.Recv when no reply arrives within the bound.
	ErrTimeout = errors.New("transport: reply timeout")

	// ErrChannelClosed is returned when using a channel after Close.
	ErrChannelClosed = errors.New("transport: channel closed")
)

// Channel is one synchronous request-reply exchange primitive.
//
// A channel that has sent without receiving must not send again; the only
// way out of that state is Close followed by a fresh Dial.
type Channel interface {
	// Send transmits one request message.
	Send(msg []byte) error

	// Recv waits up to timeout for the reply to the last Send.
	// It returns ErrTimeout when nothing arrives and ctx.Err() on cancellation.
	Recv(ctx context.Context, timeout time.Duration) ([]byte, error)

	// Close releases the channel without waiting for pending messages.
	Close() error
}

// Dialer opens new channels to the gateway.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Channel, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}
