package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shoplab-ai/shoplab/errors"
	"github.com/shoplab-ai/shoplab/evaluation"
	"github.com/shoplab-ai/shoplab/product"
)

// Status is the lifecycle state of an evaluation job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job tracks one background evaluation from submission to completion.
type Job struct {
	ID          string
	Status      Status
	Product     product.Attributes
	Progress    map[string]float64
	Result      *evaluation.Outcome
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time

	cancel context.CancelFunc
}

func (j *Job) finished() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobStore is the in-memory job table. Jobs live for the process lifetime;
// there is no persistence layer behind it.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job table.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a new pending job with all roles at zero progress.
func (s *JobStore) Create(attrs product.Attributes, roleNames []string, cancel context.CancelFunc) *Job {
	progress := make(map[string]float64, len(roleNames))
	for _, name := range roleNames {
		progress[name] = 0.0
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Product:   attrs,
		Progress:  progress,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get returns a snapshot of the job. The returned copy is safe to read
// without further locking.
func (s *JobStore) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, errors.ErrJobNotFound
	}

	snapshot := *job
	snapshot.Progress = copyProgress(job.Progress)
	return snapshot, nil
}

// SetRunning transitions a pending job to running.
func (s *JobStore) SetRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok && job.Status == StatusPending {
		job.Status = StatusRunning
	}
}

// SetProgress replaces the job's progress snapshot.
func (s *JobStore) SetProgress(id string, progress map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[id]; ok && !job.finished() {
		job.Progress = copyProgress(progress)
	}
}

// Complete stores the outcome. A job cancelled mid-flight stays cancelled.
func (s *JobStore) Complete(id string, result *evaluation.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.finished() {
		return
	}
	job.Status = StatusCompleted
	job.Result = result
	job.CompletedAt = now()
}

// Fail marks the job failed with the given error message.
func (s *JobStore) Fail(id string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.finished() {
		return
	}
	job.Status = StatusFailed
	job.Error = errMsg
	job.CompletedAt = now()
}

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return errors.ErrJobNotFound
	}
	if job.finished() {
		return errors.ErrJobNotCancellable
	}

	job.Status = StatusCancelled
	job.CompletedAt = now()
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}

func copyProgress(progress map[string]float64) map[string]float64 {
	copied := make(map[string]float64, len(progress))
	for role, value := range progress {
		copied[role] = value
	}
	return copied
}

func now() *time.Time {
	t := time.Now()
	return &t
}
