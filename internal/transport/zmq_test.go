package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	zmq "github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/envelope"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// startGateway binds an in-process REP socket that answers every request with reply.
func startGateway(t *testing.T, reply string) string {
	t.Helper()

	endpoint := fmt.Sprintf("inproc://gateway-%d", time.Now().UnixNano())
	rep, err := zmq.NewSocket(zmq.REP)
	require.NoError(t, err)
	require.NoError(t, rep.SetLinger(0))
	require.NoError(t, rep.SetRcvtimeo(50*time.Millisecond))
	require.NoError(t, rep.Bind(endpoint))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		defer rep.Close()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := rep.RecvBytes(0); err != nil {
				continue
			}
			rep.SendBytes([]byte(reply), 0)
		}
	}()
	t.Cleanup(func() {
		close(done)
		<-stopped
	})
	return endpoint
}

func TestZMQChannelRoundTrip(t *testing.T) {
	endpoint := startGateway(t, `{"estado":"ok"}`)

	ch, err := ZMQDialer{Endpoint: endpoint}.Dial(context.Background())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send([]byte(`{"operation":"renovacion"}`)))
	reply, err := ch.Recv(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeOK, InterpretReply(reply))
}

func TestZMQChannelTimeout(t *testing.T) {
	endpoint := fmt.Sprintf("inproc://nobody-%d", time.Now().UnixNano())
	// a bound peer that never answers
	rep, err := zmq.NewSocket(zmq.REP)
	require.NoError(t, err)
	require.NoError(t, rep.SetLinger(0))
	require.NoError(t, rep.Bind(endpoint))
	defer rep.Close()

	ch, err := ZMQDialer{Endpoint: endpoint}.Dial(context.Background())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Send([]byte(`{}`)))
	_, err = ch.Recv(context.Background(), 150*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestZMQClosedChannel(t *testing.T) {
	endpoint := startGateway(t, `{"status":"OK"}`)
	ch, err := ZMQDialer{Endpoint: endpoint}.Dial(context.Background())
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.Send([]byte(`{}`)), ErrChannelClosed)
}

func TestClientOverZMQ(t *testing.T) {
	endpoint := startGateway(t, `{"status":"OK"}`)
	codec := envelope.NewCodec([]byte("k"), nil)
	client := NewClient(ZMQDialer{Endpoint: endpoint}, codec, Config{Timeout: 2 * time.Second, Backoff: []time.Duration{10 * time.Millisecond}})
	defer client.Close()

	env, err := codec.MakeRequest(types.OpLoan, 1, 1)
	require.NoError(t, err)

	rec, err := client.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeOK, rec.Outcome)
	assert.Equal(t, env.RequestID, rec.RequestID)
}
