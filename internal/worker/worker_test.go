package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/queue"
	"github.com/toolsascode/lockstep/internal/store"
	"github.com/toolsascode/lockstep/internal/store/memory"
)

// fakeQueue feeds jobs from a channel and records results
type fakeQueue struct {
	jobs    chan *queue.Job
	mu      sync.Mutex
	results []*queue.JobResult
	closed  bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(chan *queue.Job, 16)}
}

func (q *fakeQueue) PublishJob(ctx context.Context, job *queue.Job) error {
	q.jobs <- job
	return nil
}

func (q *fakeQueue) Consume(ctx context.Context, handler queue.JobHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-q.jobs:
			if !ok {
				return nil
			}
			result, err := handler(ctx, job)
			if err != nil {
				continue
			}
			q.mu.Lock()
			q.results = append(q.results, result)
			q.mu.Unlock()
		}
	}
}

func (q *fakeQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}

func (q *fakeQueue) resultsSnapshot() []*queue.JobResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*queue.JobResult, len(q.results))
	copy(out, q.results)
	return out
}

func waitForResults(t *testing.T, q *fakeQueue, n int) []*queue.JobResult {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if results := q.resultsSnapshot(); len(results) >= n {
			return results
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d result(s)", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func newTestEngine(t *testing.T, failAt int64) *migrate.Engine {
	t.Helper()
	reg := migrate.NewRegistry()
	for _, v := range []int64{1, 2, 3} {
		version := v
		m := migrate.Migration{
			Version: version,
			Name:    "test migration",
			Up: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
				if version == failAt {
					return errors.New("step failed")
				}
				return nil
			},
			Down: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
				return nil
			},
		}
		if err := reg.Add(m); err != nil {
			t.Fatalf("Add(%d) failed: %v", v, err)
		}
	}
	return migrate.NewEngine(reg, memory.New(), migrate.WithLogger(nil))
}

func TestWorkerProcessesJob(t *testing.T) {
	engine := newTestEngine(t, 0)
	q := newFakeQueue()
	w := NewWorker(engine, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	if err := q.PublishJob(ctx, &queue.Job{ID: "job-1", Command: "latest"}); err != nil {
		t.Fatalf("PublishJob failed: %v", err)
	}

	results := waitForResults(t, q, 1)
	result := results[0]

	if result.JobID != "job-1" {
		t.Errorf("JobID = %s, want job-1", result.JobID)
	}
	if !result.Success {
		t.Errorf("Success = false, error = %s", result.Error)
	}
	if result.Version != 3 {
		t.Errorf("Version = %d, want 3", result.Version)
	}
}

func TestWorkerReportsFailureAsResult(t *testing.T) {
	engine := newTestEngine(t, 3)
	q := newFakeQueue()
	w := NewWorker(engine, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	if err := q.PublishJob(ctx, &queue.Job{ID: "job-2", Command: "latest"}); err != nil {
		t.Fatalf("PublishJob failed: %v", err)
	}

	results := waitForResults(t, q, 1)
	result := results[0]

	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.Error == "" {
		t.Error("Error is empty for a failed job")
	}
	// Versions 1 and 2 committed before the failing step to 3.
	if result.Version != 2 {
		t.Errorf("Version = %d, want 2", result.Version)
	}
}

func TestWorkerProcessesJobsSequentially(t *testing.T) {
	engine := newTestEngine(t, 0)
	q := newFakeQueue()
	w := NewWorker(engine, q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()

	commands := []string{"2", "latest", "0"}
	for i, command := range commands {
		if err := q.PublishJob(ctx, &queue.Job{ID: string(rune('a' + i)), Command: command}); err != nil {
			t.Fatalf("PublishJob failed: %v", err)
		}
	}

	results := waitForResults(t, q, len(commands))
	wantVersions := []int64{2, 3, 0}
	for i, want := range wantVersions {
		if results[i].Version != want {
			t.Errorf("result[%d].Version = %d, want %d", i, results[i].Version, want)
		}
		if !results[i].Success {
			t.Errorf("result[%d] failed: %s", i, results[i].Error)
		}
	}
}

func TestWorkerStopClosesQueue(t *testing.T) {
	engine := newTestEngine(t, 0)
	q := newFakeQueue()
	w := NewWorker(engine, q)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if !q.closed {
		t.Error("Stop did not close the queue")
	}
}
