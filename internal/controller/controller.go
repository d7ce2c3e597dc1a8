// ============================================================================
// Batch Runner - drives a batch of envelopes through the transport
// ============================================================================
//
// Package: internal/controller
// File: controller.go
// Purpose: send every envelope, record one line per envelope, summarise
//
// Modes:
//   1. Sequential - one Sender, one envelope at a time (request/reply
//      discipline forbids overlapping requests on one channel).
//   2. Pooled - worker.Pool with N workers, each owning its own Sender.
//      Results are drained by a single collector goroutine, which is the
//      only writer to the attempt log.
//
// Failure policy:
//   A failed envelope never stops the batch: TIMEOUT and ERROR are records
//   like OK. Only cancellation stops early; envelopes not yet sent are
//   counted as Aborted and produce no record. Log write failures are
//   logged, counted, and reported after the batch completes.
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/worker"
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// ErrRecordFailed indicates at least one record could not be written.
var ErrRecordFailed = errors.New("controller: recording attempt failed")

// Recorder persists terminal records. attemptlog.Writer satisfies it.
type Recorder interface {
	Append(rec types.AttemptRecord) error
}

// QueueStats receives pending and in-flight counts. metrics.Collector satisfies it.
type QueueStats interface {
	UpdateQueueStats(pending, inFlight int)
}

// Summary counts the outcomes of one run.
type Summary struct {
	Total    int // envelopes in the batch
	OK       int
	Failed   int // ERROR, TIMEOUT or any other non-OK outcome
	Timeout  int // subset of Failed
	Aborted  int // not sent because the run was cancelled
	Retries  int // retries consumed across all records
	Duration time.Duration
}

// Recorded returns the number of records produced.
func (s Summary) Recorded() int {
	return s.OK + s.Failed
}

func (s Summary) String() string {
	return fmt.Sprintf("OK=%d FAILED=%d (timeout=%d) aborted=%d retries=%d in %s",
		s.OK, s.Failed, s.Timeout, s.Aborted, s.Retries, s.Duration.Round(time.Millisecond))
}

// Runner sends batches.
type Runner struct {
	newSender  worker.SenderFactory
	recorder   Recorder
	stats      QueueStats
	logger     *zap.Logger
	bufferSize int
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithQueueStats reports queue depth while a pooled run is in progress.
func WithQueueStats(s QueueStats) Option {
	return func(r *Runner) { r.stats = s }
}

// WithBufferSize sets the pool channel capacity.
func WithBufferSize(n int) Option {
	return func(r *Runner) { r.bufferSize = n }
}

// NewRunner creates a Runner.
//
// Parameters:
//   - newSender: builds a Sender (one per worker, or one for sequential runs)
//   - recorder: destination of terminal records
func NewRunner(newSender worker.SenderFactory, recorder Recorder, opts ...Option) *Runner {
	r := &Runner{
		newSender:  newSender,
		recorder:   recorder,
		logger:     zap.NewNop(),
		bufferSize: 64,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// tally accumulates a Summary; only the goroutine that records uses it.
type tally struct {
	summary  Summary
	writeErr error
}

func (r *Runner) record(t *tally, rec types.AttemptRecord) {
	if rec.Outcome == types.OutcomeOK {
		t.summary.OK++
	} else {
		t.summary.Failed++
		if rec.Outcome == types.OutcomeTimeout {
			t.summary.Timeout++
		}
	}
	t.summary.Retries += rec.Retries

	if err := r.recorder.Append(rec); err != nil {
		r.logger.Error("recording attempt", zap.String("request_id", rec.RequestID), zap.Error(err))
		if t.writeErr == nil {
			t.writeErr = fmt.Errorf("%w: %v", ErrRecordFailed, err)
		}
		return
	}
	r.logger.Debug("attempt recorded",
		zap.String("request_id", rec.RequestID),
		zap.String("status", string(rec.Outcome)),
		zap.Int("retries", rec.Retries))
}

func (r *Runner) reportQueue(pending, inFlight int) {
	if r.stats != nil {
		r.stats.UpdateQueueStats(pending, inFlight)
	}
}

// finish returns the cancellation error first, then any write error.
func finish(ctx context.Context, t *tally, started time.Time) (Summary, error) {
	t.summary.Aborted = t.summary.Total - t.summary.Recorded()
	t.summary.Duration = time.Since(started)
	if err := ctx.Err(); err != nil && t.summary.Aborted > 0 {
		return t.summary, err
	}
	return t.summary, t.writeErr
}

// RunSequential sends batch one envelope at a time over a single Sender.
//
// Returns:
//   - Summary: outcome counts
//   - error: ctx.Err() if cancelled before the batch finished, otherwise
//     ErrRecordFailed if any record could not be written
func (r *Runner) RunSequential(ctx context.Context, batch []types.RequestEnvelope) (Summary, error) {
	started := time.Now()
	t := &tally{summary: Summary{Total: len(batch)}}

	sender := r.newSender(0)
	defer func() {
		if err := sender.Close(); err != nil {
			r.logger.Debug("closing sender", zap.Error(err))
		}
	}()

	for i, env := range batch {
		if ctx.Err() != nil {
			break
		}
		pending := len(batch) - i - 1
		r.reportQueue(pending, 1)
		rec, err := sender.Send(ctx, env)
		r.reportQueue(pending, 0)
		if err != nil {
			r.logger.Info("run cancelled", zap.String("request_id", env.RequestID), zap.Error(err))
			break
		}
		r.record(t, rec)
	}
	return finish(ctx, t, started)
}

// RunPooled sends batch through workers concurrently.
// Records reach the Recorder in completion order, not batch order.
func (r *Runner) RunPooled(ctx context.Context, batch []types.RequestEnvelope, workers int) (Summary, error) {
	started := time.Now()
	t := &tally{summary: Summary{Total: len(batch)}}

	pool := worker.NewPool(r.bufferSize, r.newSender, worker.WithLogger(r.logger))
	if err := pool.Start(ctx, workers); err != nil {
		return t.summary, err
	}

	var (
		submitted, completed atomic.Int64
		statsMu              sync.Mutex
	)
	report := func() {
		if r.stats == nil {
			return
		}
		statsMu.Lock()
		defer statsMu.Unlock()
		s, c := submitted.Load(), completed.Load()
		r.reportQueue(len(batch)-int(s), max(int(s-c), 0))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range pool.Results() {
			completed.Add(1)
			if res.Err == nil {
				r.record(t, res.Record)
			}
			report()
		}
	}()

	for i, env := range batch {
		if err := pool.Submit(ctx, worker.Task{Index: i, Envelope: env}); err != nil {
			r.logger.Info("stopped submitting", zap.Int("submitted", i), zap.Error(err))
			break
		}
		submitted.Add(1)
		report()
	}

	pool.Stop()
	wg.Wait()
	return finish(ctx, t, started)
}
