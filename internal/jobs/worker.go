package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cashlens/internal/database"
	"cashlens/internal/models"
)

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job *models.Job, db *database.DB) error

// permanentError marks a failure that a retry cannot fix
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the worker fails the job without retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Worker processes background jobs from the queue
type Worker struct {
	db           *database.DB
	handlers     map[string]JobHandler
	stop         chan struct{}
	done         chan struct{}
	logger       *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

// NewWorker creates a new job worker
func NewWorker(db *database.DB, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		db:           db,
		handlers:     make(map[string]JobHandler),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger,
		pollInterval: pollInterval,
		timeout:      5 * time.Minute,
	}
}

// Register adds a handler for a job type
func (w *Worker) Register(jobType string, handler JobHandler) {
	w.handlers[jobType] = handler
}

// Start requeues jobs interrupted by a previous process, then processes
// jobs in a background goroutine
func (w *Worker) Start() {
	if n, err := w.db.RequeueStaleJobs(); err != nil {
		w.logger.Error("job_requeue_failed", "error", err.Error())
	} else if n > 0 {
		w.logger.Info("job_requeued_stale", "count", n)
	}

	go func() {
		defer close(w.done)
		w.logger.Info("job_worker_started", "poll_interval", w.pollInterval.String())

		for {
			select {
			case <-w.stop:
				w.logger.Info("job_worker_stopping")
				return
			default:
			}

			processed, err := w.ProcessNext()
			if err != nil {
				w.logger.Error("job_claim_error", "error", err.Error())
			}
			if processed {
				continue
			}
			select {
			case <-w.stop:
				w.logger.Info("job_worker_stopping")
				return
			case <-time.After(w.pollInterval):
			}
		}
	}()
}

// Stop signals the worker to stop and waits for it to finish
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	w.logger.Info("job_worker_stopped")
}

// ProcessNext claims and runs one pending job. It reports false when the
// queue was empty.
func (w *Worker) ProcessNext() (bool, error) {
	job, err := w.db.ClaimNextJob()
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.processJob(job)
	return true, nil
}

func (w *Worker) processJob(job *models.Job) {
	l := w.logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", job.Attempts)
	l.Info("job_processing_started")

	handler, ok := w.handlers[job.JobType]
	if !ok {
		l.Error("job_unknown_type")
		w.db.FailJob(job.ID, "unknown job type: "+job.JobType)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	err := handler(ctx, job, w.db)
	if err == nil {
		l.Info("job_processing_completed")
		return
	}

	l.Error("job_processing_failed", "error", err.Error())
	switch {
	case isPermanent(err):
		w.db.FailJob(job.ID, err.Error())
	case job.Attempts >= job.MaxAttempts:
		l.Warn("job_max_attempts_reached")
		w.db.FailJob(job.ID, err.Error())
	default:
		l.Info("job_retrying")
		w.db.RetryJob(job.ID)
	}
}
