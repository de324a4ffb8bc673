package queue

import (
	"context"
)

// Job represents a migration command to be executed asynchronously
type Job struct {
	ID          string                 `json:"id"`
	Command     string                 `json:"command"` // "<version>|latest"[,"rerun"]
	RequestedBy string                 `json:"requested_by,omitempty"`
	SubmittedAt string                 `json:"submitted_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// JobResult represents the outcome of a migration job
type JobResult struct {
	JobID   string `json:"job_id"`
	Success bool   `json:"success"`
	Version int64  `json:"version"` // control record version after the run
	Error   string `json:"error,omitempty"`
}

// Producer publishes migration jobs to the queue
type Producer interface {
	// PublishJob publishes a migration job to the queue
	PublishJob(ctx context.Context, job *Job) error

	// Close closes the producer connection
	Close() error
}

// Consumer consumes migration jobs from the queue
type Consumer interface {
	// Consume starts consuming jobs from the queue
	// The handler function is called for each job
	Consume(ctx context.Context, handler JobHandler) error

	// Close closes the consumer connection
	Close() error
}

// JobHandler processes a migration job
type JobHandler func(ctx context.Context, job *Job) (*JobResult, error)

// Queue provides both producer and consumer capabilities
type Queue interface {
	Producer
	Consumer
}
