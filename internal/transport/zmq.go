package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// pollStep bounds each Poll call so cancellation is noticed promptly.
const pollStep = 100 * time.Millisecond

// ZMQDialer opens ZeroMQ REQ sockets connected to Endpoint
// (e.g. "tcp://127.0.0.1:5555").
type ZMQDialer struct {
	Endpoint string
}

// Dial creates a new REQ socket with linger 0 and connects it.
func (d ZMQDialer) Dial(ctx context.Context) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sock, err := zmq.NewSocket(zmq.REQ)
	if err != nil {
		return nil, fmt.Errorf("transport: create REQ socket: %w", err)
	}
	// pending requests are dropped on close instead of blocking shutdown
	if err := sock.SetLinger(0); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: set linger: %w", err)
	}
	if err := sock.Connect(d.Endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("transport: connect %s: %w", d.Endpoint, err)
	}

	poller := zmq.NewPoller()
	poller.Add(sock, zmq.POLLIN)

	return &zmqChannel{sock: sock, poller: poller}, nil
}

type zmqChannel struct {
	mu     sync.Mutex
	sock   *zmq.Socket
	poller *zmq.Poller
	closed bool
}

func (c *zmqChannel) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if _, err := c.sock.SendBytes(msg, 0); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

func (c *zmqChannel) Recv(ctx context.Context, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}

	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		step := min(remaining, pollStep)

		polled, err := c.poller.Poll(step)
		if err != nil {
			return nil, fmt.Errorf("transport: poll: %w", err)
		}
		if len(polled) == 0 {
			continue
		}

		reply, err := c.sock.RecvBytes(0)
		if err != nil {
			return nil, fmt.Errorf("transport: recv: %w", err)
		}
		return reply, nil
	}
}

func (c *zmqChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
