package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/envelope"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/generator"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/storage/attemptlog"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/transport"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/worker"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// ============================================================================
// Test helpers
// ============================================================================

// scriptedSender returns the outcome chosen by outcomeFor for each envelope.
type scriptedSender struct {
	outcomeFor func(env types.RequestEnvelope) types.Outcome
	onSend     func()
	closed     bool
}

func (s *scriptedSender) Send(ctx context.Context, env types.RequestEnvelope) (types.AttemptRecord, error) {
	if s.onSend != nil {
		s.onSend()
	}
	if err := ctx.Err(); err != nil {
		return types.AttemptRecord{}, err
	}
	outcome := s.outcomeFor(env)
	retries := 0
	if outcome == types.OutcomeTimeout {
		retries = 4
	}
	return types.AttemptRecord{RequestID: env.RequestID, Operation: env.Operation, Start: 1, End: 2, Outcome: outcome, Retries: retries}, nil
}

func (s *scriptedSender) Close() error {
	s.closed = true
	return nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []types.AttemptRecord
	failOn  string
}

func (m *memoryRecorder) Append(rec types.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.RequestID == m.failOn {
		return errors.New("disk full")
	}
	m.records = append(m.records, rec)
	return nil
}

type statsSpy struct {
	mu      sync.Mutex
	updates int
	last    [2]int
	history [][2]int
}

func (s *statsSpy) UpdateQueueStats(pending, inFlight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	s.last = [2]int{pending, inFlight}
	s.history = append(s.history, s.last)
}

func makeBatch(n int) []types.RequestEnvelope {
	batch := make([]types.RequestEnvelope, n)
	for i := range batch {
		batch[i] = types.RequestEnvelope{RequestID: fmt.Sprintf("r%d", i), Operation: types.OpRenewal}
	}
	return batch
}

// everyThirdTimesOut makes r2, r5, r8... time out.
func everyThirdTimesOut(env types.RequestEnvelope) types.Outcome {
	var i int
	fmt.Sscanf(env.RequestID, "r%d", &i)
	if i%3 == 2 {
		return types.OutcomeTimeout
	}
	return types.OutcomeOK
}

// ============================================================================
// Sequential runs
// ============================================================================

func TestRunSequentialNeverAbortsOnFailures(t *testing.T) {
	var senders []*scriptedSender
	factory := func(int) worker.Sender {
		s := &scriptedSender{outcomeFor: everyThirdTimesOut}
		senders = append(senders, s)
		return s
	}
	rec := &memoryRecorder{}
	runner := NewRunner(factory, rec)

	summary, err := runner.RunSequential(context.Background(), makeBatch(9))
	require.NoError(t, err)

	assert.Equal(t, 9, summary.Total)
	assert.Equal(t, 6, summary.OK)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 3, summary.Timeout)
	assert.Equal(t, 0, summary.Aborted)
	assert.Equal(t, 12, summary.Retries)
	assert.Len(t, rec.records, 9, "one record per envelope")
	for i, r := range rec.records {
		assert.Equal(t, fmt.Sprintf("r%d", i), r.RequestID, "sequential order preserved")
	}
	require.Len(t, senders, 1)
	assert.True(t, senders[0].closed)
}

func TestRunSequentialReportsQueueStats(t *testing.T) {
	stats := &statsSpy{}
	var inFlightDuringSend []int
	factory := func(int) worker.Sender {
		return &scriptedSender{
			outcomeFor: func(types.RequestEnvelope) types.Outcome { return types.OutcomeOK },
			onSend:     func() { inFlightDuringSend = append(inFlightDuringSend, stats.last[1]) },
		}
	}

	_, err := NewRunner(factory, &memoryRecorder{}, WithQueueStats(stats)).
		RunSequential(context.Background(), makeBatch(3))
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{2, 1}, {2, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}, stats.history)
	assert.Equal(t, []int{1, 1, 1}, inFlightDuringSend, "the envelope being sent is in flight")
}

func TestRunSequentialCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sent := 0
	factory := func(int) worker.Sender {
		return &scriptedSender{
			outcomeFor: func(types.RequestEnvelope) types.Outcome { return types.OutcomeOK },
			onSend: func() {
				sent++
				if sent == 3 {
					cancel()
				}
			},
		}
	}
	rec := &memoryRecorder{}

	summary, err := NewRunner(factory, rec).RunSequential(ctx, makeBatch(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.OK)
	assert.Equal(t, 8, summary.Aborted)
	assert.Len(t, rec.records, 2, "no partial record for the cancelled envelope")
}

func TestRunSequentialReportsWriteFailures(t *testing.T) {
	factory := func(int) worker.Sender {
		return &scriptedSender{outcomeFor: func(types.RequestEnvelope) types.Outcome { return types.OutcomeOK }}
	}
	rec := &memoryRecorder{failOn: "r1"}

	summary, err := NewRunner(factory, rec).RunSequential(context.Background(), makeBatch(4))
	assert.ErrorIs(t, err, ErrRecordFailed)
	assert.Equal(t, 4, summary.OK, "the batch continues after a write failure")
	assert.Len(t, rec.records, 3)
}

func TestSummaryString(t *testing.T) {
	s := Summary{Total: 3, OK: 2, Failed: 1, Timeout: 1, Retries: 4, Duration: 1500 * time.Millisecond}
	assert.Equal(t, 3, s.Recorded())
	assert.Equal(t, "OK=2 FAILED=1 (timeout=1) aborted=0 retries=4 in 1.5s", s.String())
}

// ============================================================================
// Pooled runs
// ============================================================================

func TestRunPooledRecordsEveryEnvelope(t *testing.T) {
	var mu sync.Mutex
	created := 0
	factory := func(int) worker.Sender {
		mu.Lock()
		created++
		mu.Unlock()
		return &scriptedSender{outcomeFor: everyThirdTimesOut}
	}
	rec := &memoryRecorder{}
	stats := &statsSpy{}

	summary, err := NewRunner(factory, rec, WithQueueStats(stats), WithBufferSize(4)).
		RunPooled(context.Background(), makeBatch(60), 5)
	require.NoError(t, err)

	assert.Equal(t, 5, created, "one sender per worker")
	assert.Equal(t, 40, summary.OK)
	assert.Equal(t, 20, summary.Timeout)
	assert.Len(t, rec.records, 60)

	ids := make(map[string]bool)
	for _, r := range rec.records {
		ids[r.RequestID] = true
	}
	assert.Len(t, ids, 60)

	assert.Greater(t, stats.updates, 0)
	assert.Equal(t, [2]int{0, 0}, stats.last, "queue drained at the end")
}

func TestRunPooledInvalidWorkers(t *testing.T) {
	factory := func(int) worker.Sender { return &scriptedSender{} }
	_, err := NewRunner(factory, &memoryRecorder{}).RunPooled(context.Background(), makeBatch(1), 0)
	assert.ErrorIs(t, err, worker.ErrNoWorkers)
}

func TestRunPooledCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	factory := func(int) worker.Sender {
		return &scriptedSender{outcomeFor: func(types.RequestEnvelope) types.Outcome { return types.OutcomeOK }}
	}
	rec := &memoryRecorder{}

	summary, err := NewRunner(factory, rec).RunPooled(ctx, makeBatch(20), 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 20, summary.Aborted)
	assert.Empty(t, rec.records)
}

// ============================================================================
// End to end through the transport client and the attempt log
// ============================================================================

// echoChannel answers every request immediately.
type echoChannel struct {
	reply string
}

func (c *echoChannel) Send([]byte) error { return nil }
func (c *echoChannel) Recv(context.Context, time.Duration) ([]byte, error) {
	return []byte(c.reply), nil
}
func (c *echoChannel) Close() error { return nil }

func TestPooledRunWritesParsableLog(t *testing.T) {
	codec := envelope.NewCodec([]byte("secret"), nil)
	seed := int64(7)
	batch, err := generator.GenerateBatch(codec, generator.Options{N: 30, Seed: &seed, Mix: "50:50"})
	require.NoError(t, err)

	logPath := filepath.Join(t.TempDir(), "ps_logs.txt")
	w, err := attemptlog.Open(logPath)
	require.NoError(t, err)

	dialer := transport.DialerFunc(func(context.Context) (transport.Channel, error) {
		return &echoChannel{reply: `{"estado":"ok"}`}, nil
	})
	factory := func(int) worker.Sender {
		return transport.NewClient(dialer, codec, transport.Config{Timeout: time.Second})
	}

	summary, err := NewRunner(factory, w).RunPooled(context.Background(), batch, 4)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 30, summary.OK)

	records, err := attemptlog.ReadFile(logPath)
	require.NoError(t, err)
	require.Len(t, records, 30)
	for _, r := range records {
		assert.Equal(t, types.OutcomeOK, r.Outcome)
		assert.GreaterOrEqual(t, r.End, r.Start)
	}

	// the envelopes stay verifiable after the run
	raw, err := json.Marshal(batch[0])
	require.NoError(t, err)
	assert.True(t, codec.Verify(raw, envelope.DefaultFreshnessWindow))
}
