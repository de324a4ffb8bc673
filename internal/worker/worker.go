package worker

import (
	"context"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/queue"
)

// Worker processes migration jobs from the queue
type Worker struct {
	engine *migrate.Engine
	queue  queue.Queue
}

// NewWorker creates a new migration worker
func NewWorker(engine *migrate.Engine, q queue.Queue) *Worker {
	return &Worker{
		engine: engine,
		queue:  q,
	}
}

// Start starts the worker to consume and process jobs
func (w *Worker) Start(ctx context.Context) error {
	logger.Info("Starting migration worker...")

	handler := func(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
		return w.processJob(ctx, job)
	}

	return w.queue.Consume(ctx, handler)
}

// processJob processes a single migration job. A migration failure is a
// terminal result, not a handler error: the job must be acknowledged so the
// broker does not redeliver a command that already failed deterministically.
func (w *Worker) processJob(ctx context.Context, job *queue.Job) (*queue.JobResult, error) {
	logger.Infof("Processing migration job %s (command %q)", job.ID, job.Command)

	result := &queue.JobResult{
		JobID:   job.ID,
		Success: true,
	}

	if err := w.engine.MigrateTo(ctx, job.Command); err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	version, err := w.engine.GetVersion(ctx)
	if err != nil {
		logger.Errorf("Failed to read version after job %s: %v", job.ID, err)
	} else {
		result.Version = version
	}

	return result, nil
}

// Stop stops the worker
func (w *Worker) Stop() error {
	logger.Info("Stopping migration worker...")
	return w.queue.Close()
}
