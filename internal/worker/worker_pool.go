// ============================================================================
// Worker Pool - bulk envelope delivery
// ============================================================================
//
// Package: internal/worker
// File: worker_pool.go
// Purpose: fan a batch out over N workers, each with its own channel
//
// Architecture:
//   ┌─────────────┐
//   │ Controller  │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//     Results()
//         ↑
//   ┌──────────────────────────┐
//   │   Pool                   │
//   │  ┌──────────────────┐    │
//   │  │Worker 1 (chan 1) │←── taskCh
//   │  │Worker 2 (chan 2) │←── taskCh   ──→ resultCh
//   │  │Worker 3 (chan 3) │←── taskCh
//   │  └──────────────────┘    │
//   └──────────────────────────┘
//
// Lifecycle:
//   1. NewPool() - create channels
//   2. Start(ctx, n) - launch n workers, each building its Sender
//   3. Submit(ctx, task) - enqueue work
//   4. Results() / ReceiveResult() - drain results (order not guaranteed)
//   5. Stop() - close taskCh (the stop signal), wait for workers, close resultCh
//
// Results must be drained while tasks are submitted and until Stop returns,
// otherwise workers block on a full result channel.
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrPoolClosed indicates the pool is stopped
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrPoolNotStarted indicates Submit was called before Start
	ErrPoolNotStarted = errors.New("worker pool not started")
	// ErrPoolStarted indicates Start was called twice
	ErrPoolStarted = errors.New("worker pool already started")
	// ErrNoWorkers indicates a non-positive worker count
	ErrNoWorkers = errors.New("worker pool needs at least one worker")
)

// Pool manages concurrent workers.
type Pool struct {
	workers   []*Worker
	newSender SenderFactory
	taskCh    chan Task
	resultCh  chan Result
	wg        sync.WaitGroup
	logger    *zap.Logger

	// mu guards started/stopped; Submit holds it for reading while sending
	// so Stop never closes taskCh under an in-progress send.
	mu      sync.RWMutex
	started bool
	stopped bool
}

// PoolOption customizes a Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *zap.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a pool.
//
// Parameters:
//   - bufferSize: capacity of the task and result channels
//   - newSender: builds one Sender per worker
func NewPool(bufferSize int, newSender SenderFactory, opts ...PoolOption) *Pool {
	p := &Pool{
		workers:   make([]*Worker, 0),
		newSender: newSender,
		taskCh:    make(chan Task, bufferSize),
		resultCh:  make(chan Result, bufferSize),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches workerCount workers.
func (p *Pool) Start(ctx context.Context, workerCount int) error {
	if workerCount < 1 {
		return ErrNoWorkers
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolStarted
	}

	for i := 0; i < workerCount; i++ {
		w := newWorker(i, p.newSender(i), p.taskCh, p.resultCh, p.logger)
		p.workers = append(p.workers, w)

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}

	p.started = true
	p.logger.Debug("worker pool started", zap.Int("workers", workerCount))
	return nil
}

// Submit enqueues task, blocking while the task channel is full.
//
// Returns:
//   - error: ErrPoolNotStarted, ErrPoolClosed, or ctx.Err() if ctx ends first
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	select {
	case p.taskCh <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the result channel. It is closed by Stop.
func (p *Pool) Results() <-chan Result {
	return p.resultCh
}

// ReceiveResult reads one result.
//
// Returns:
//   - error: ErrPoolClosed once the result channel is closed and drained
func (p *Pool) ReceiveResult() (Result, error) {
	result, ok := <-p.resultCh
	if !ok {
		return Result{}, ErrPoolClosed
	}
	return result, nil
}

// Stop closes the task channel, waits for workers to finish their queue,
// then closes the result channel. Calling Stop twice is a no-op.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.taskCh)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
	p.logger.Debug("worker pool stopped")
}

// GetWorkerCount returns the number of workers.
func (p *Pool) GetWorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// IsStarted reports whether Start succeeded.
func (p *Pool) IsStarted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}
