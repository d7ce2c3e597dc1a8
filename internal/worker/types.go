package worker

import (
	"github.com/SistemasDistribuidos2530/biblioteca-clientes/pkg/types"
)

// Task is one envelope to send.
type Task struct {
	Index    int                   // position in the submitted batch
	Envelope types.RequestEnvelope // signed request
}

// Result is the terminal outcome of a Task.
type Result struct {
	Index    int                 // Task.Index
	WorkerID int                 // worker that handled the task
	Record   types.AttemptRecord // valid only when Err is nil
	Err      error               // cancellation or sender failure; no record then
}
