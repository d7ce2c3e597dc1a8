// ============================================================================
// Worker - envelope delivery unit
// ============================================================================
//
// Package: internal/worker
// File: worker.go
//
// Each Worker runs in its own goroutine and owns one Sender, so no two
// workers ever share a request/reply channel:
//
//   for task := range taskCh
//     ├─ Sender.Send(ctx, envelope)   (retries and channel recovery inside)
//     └─ result → resultCh            (blocking; every task yields a result)
//
// The loop ends when taskCh is closed. Once ctx is cancelled, remaining
// tasks are drained without sending and reported with ctx.Err().
//
// ============================================================================

package worker

import (
	"context"

	"go.uber.org/zap"
)

// Worker delivers tasks through its own Sender.
type Worker struct {
	id       int
	sender   Sender
	taskCh   <-chan Task
	resultCh chan<- Result
	logger   *zap.Logger
}

func newWorker(id int, sender Sender, taskCh <-chan Task, resultCh chan<- Result, logger *zap.Logger) *Worker {
	return &Worker{
		id:       id,
		sender:   sender,
		taskCh:   taskCh,
		resultCh: resultCh,
		logger:   logger.With(zap.Int("worker", id)),
	}
}

// Run processes tasks until taskCh is closed, then closes the sender.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		if err := w.sender.Close(); err != nil {
			w.logger.Debug("closing sender", zap.Error(err))
		}
	}()

	for task := range w.taskCh {
		w.resultCh <- w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task Task) Result {
	result := Result{Index: task.Index, WorkerID: w.id}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	rec, err := w.sender.Send(ctx, task.Envelope)
	if err != nil {
		w.logger.Debug("send aborted", zap.String("request_id", task.Envelope.RequestID), zap.Error(err))
		result.Err = err
		return result
	}
	result.Record = rec
	return result
}
