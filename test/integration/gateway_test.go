// ============================================================================
// PS Integration Test Suite
// ============================================================================
//
// Package: test/integration
// File: gateway_test.go
// Functionality: in-process gateway used by the end-to-end tests
//
// The gateway is a ZeroMQ ROUTER socket so it can drop a request without
// replying, which a REP socket cannot do. A dropped request looks to the PS
// exactly like a lost reply: its REQ socket times out and is replaced.
//
// ============================================================================

package integration

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/stretchr/testify/require"
)

// lossyGateway answers requests with reply, except those for which drop
// returns true. drop sees the 1-based arrival number and the request body.
type lossyGateway struct {
	endpoint string
	received atomic.Int64
	answered atomic.Int64

	mu   sync.Mutex
	drop func(n int64, body []byte) bool
}

func startLossyGateway(t testing.TB, reply string, drop func(n int64, body []byte) bool) *lossyGateway {
	t.Helper()

	g := &lossyGateway{
		endpoint: fmt.Sprintf("inproc://lossy-%d", time.Now().UnixNano()),
		drop:     drop,
	}
	router, err := zmq.NewSocket(zmq.ROUTER)
	require.NoError(t, err)
	require.NoError(t, router.SetLinger(0))
	require.NoError(t, router.SetRcvtimeo(50*time.Millisecond))
	require.NoError(t, router.Bind(g.endpoint))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer router.Close()
		for {
			select {
			case <-done:
				return
			default:
			}
			// identity, empty delimiter, body
			parts, err := router.RecvMessageBytes(0)
			if err != nil || len(parts) < 3 {
				continue
			}
			n := g.received.Add(1)
			if g.shouldDrop(n, parts[2]) {
				continue
			}
			if _, err := router.SendMessage(parts[0], "", reply); err == nil {
				g.answered.Add(1)
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
	return g
}

func (g *lossyGateway) shouldDrop(n int64, body []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drop != nil && g.drop(n, body)
}

func (g *lossyGateway) setDrop(drop func(n int64, body []byte) bool) {
	g.mu.Lock()
	g.drop = drop
	g.mu.Unlock()
}

// dropFirstSighting drops the first copy of each distinct body, so every
// request succeeds on its first resend.
func dropFirstSighting() func(int64, []byte) bool {
	seen := make(map[string]bool)
	return func(_ int64, body []byte) bool {
		key := string(body)
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}
}

func dropAll(int64, []byte) bool { return true }
