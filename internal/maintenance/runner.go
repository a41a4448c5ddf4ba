// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package maintenance runs compress and purge as background jobs.
//
// At most one job runs at a time. A submit while another job is running
// fails with a ConflictError naming the running job. Jobs run on their own
// context, so a caller that stops waiting does not stop the job; only Cancel
// or runner shutdown does. Job records are kept in a BadgerDB job store.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fieldtrack/internal/database"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/metrics"
	"github.com/tomtom215/fieldtrack/internal/models"
	"github.com/tomtom215/fieldtrack/internal/retention"
)

var (
	// ErrConflict is matched by every ConflictError.
	ErrConflict = errors.New("a maintenance job is already running")

	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = errors.New("maintenance job not found")

	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("maintenance job has already finished")

	// ErrRunnerStopped is returned by Submit after shutdown.
	ErrRunnerStopped = errors.New("maintenance runner is stopped")
)

// ConflictError reports the job that holds the single-flight slot.
type ConflictError struct {
	RunningJobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: %s", ErrConflict, e.RunningJobID)
}

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Retention is the work a job performs.
type Retention interface {
	Cutoff(days int) time.Time
	Compress(ctx context.Context, cutoff time.Time, ratio float64, progress retention.Progress) (int64, error)
	Purge(ctx context.Context, cutoff time.Time, archiveName string, progress retention.Progress) (int64, string, error)
}

// Request describes a job to start.
type Request struct {
	Kind        models.JobKind
	Days        int
	Ratio       float64
	RequestedBy string
}

// Validate checks the request parameters.
func (r Request) Validate() error {
	switch r.Kind {
	case models.JobCompress:
		if err := retention.ValidateRatio(r.Ratio); err != nil {
			return err
		}
	case models.JobPurge:
	default:
		return fmt.Errorf("%w: unknown job kind %q", retention.ErrInvalidParameter, r.Kind)
	}
	return retention.ValidateDays(r.Days)
}

// Handle is returned by Submit.
type Handle struct {
	Job  models.MaintenanceJob
	done <-chan struct{}
}

// Done is closed once the job is finished and its final record is stored.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type activeJob struct {
	job    models.MaintenanceJob
	cancel context.CancelFunc
	done   chan struct{}
}

// Runner owns the single-flight slot.
type Runner struct {
	store        *JobStore
	retention    Retention
	historyLimit int
	now          func() time.Time

	mu      sync.Mutex
	active  *activeJob
	stopped bool
	wg      sync.WaitGroup
}

// NewRunner creates a runner. Jobs the store still records as running
// were cut off by a restart and are marked failed.
func NewRunner(store *JobStore, ret Retention, historyLimit int) (*Runner, error) {
	n, err := store.MarkInterrupted(time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	if n > 0 {
		logging.Warn().Int("jobs", n).Msg("Marked interrupted maintenance jobs as failed")
	}
	return &Runner{
		store:        store,
		retention:    ret,
		historyLimit: historyLimit,
		now:          time.Now,
	}, nil
}

// Submit starts a job or returns a ConflictError if one is running.
func (r *Runner) Submit(req Request) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil, ErrRunnerStopped
	}
	if r.active != nil {
		return nil, &ConflictError{RunningJobID: r.active.job.ID}
	}

	job := models.MaintenanceJob{
		ID:          uuid.New().String(),
		Kind:        req.Kind,
		Status:      models.JobRunning,
		Days:        req.Days,
		CutoffDate:  r.retention.Cutoff(req.Days),
		RequestedBy: req.RequestedBy,
		StartedAt:   r.now().UTC(),
	}
	if req.Kind == models.JobCompress {
		job.CompressionRatio = req.Ratio
	}
	if err := r.store.Save(&job); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &activeJob{job: job, cancel: cancel, done: make(chan struct{})}
	r.active = a
	r.wg.Add(1)
	go r.run(ctx, a)

	logging.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Int("days", job.Days).
		Str("requested_by", job.RequestedBy).
		Msg("Maintenance job started")

	return &Handle{Job: job, done: a.done}, nil
}

func (r *Runner) run(ctx context.Context, a *activeJob) {
	defer r.wg.Done()
	defer a.cancel()

	progress := func(affected int64) {
		r.mu.Lock()
		a.job.Affected = affected
		r.mu.Unlock()
	}

	var (
		affected int64
		archived string
		err      error
	)
	job := a.job
	switch job.Kind {
	case models.JobCompress:
		affected, err = r.retention.Compress(ctx, job.CutoffDate, job.CompressionRatio, progress)
	case models.JobPurge:
		affected, archived, err = r.retention.Purge(ctx, job.CutoffDate, job.ID, progress)
	}

	finished := r.now().UTC()

	r.mu.Lock()
	a.job.Affected = affected
	a.job.Archived = archived
	a.job.FinishedAt = &finished
	switch {
	case err == nil:
		a.job.Status = models.JobSucceeded
	case errors.Is(err, context.Canceled):
		a.job.Status = models.JobCanceled
		a.job.Error = "canceled"
	default:
		a.job.Status = models.JobFailed
		a.job.Error = failureReason(err)
	}
	final := a.job
	if saveErr := r.store.Save(&final); saveErr != nil {
		logging.Error().Err(saveErr).Str("job_id", final.ID).Msg("Failed to store finished maintenance job")
	}
	r.active = nil
	r.mu.Unlock()
	close(a.done)

	metrics.RecordMaintenanceJob(string(final.Kind), string(final.Status), final.Affected, finished.Sub(final.StartedAt))

	evt := logging.Info()
	if final.Status == models.JobFailed {
		evt = logging.Error().Err(err)
	}
	evt.Str("job_id", final.ID).
		Str("kind", string(final.Kind)).
		Str("status", string(final.Status)).
		Int64("affected", final.Affected).
		Dur("duration", finished.Sub(final.StartedAt)).
		Msg("Maintenance job finished")

	if _, err := r.store.Prune(r.historyLimit); err != nil {
		logging.Warn().Err(err).Msg("Failed to prune maintenance job history")
	}
}

// failureReason is the client-visible error of a failed job. Driver and
// object-store messages stay in the server log.
func failureReason(err error) string {
	var storeErr *database.StoreError
	switch {
	case errors.As(err, &storeErr):
		return "database error"
	case errors.Is(err, retention.ErrArchive):
		return "archive upload failed"
	default:
		return "maintenance job failed"
	}
}

// Get returns the job with id, reading the live record when it is running.
func (r *Runner) Get(id string) (*models.MaintenanceJob, error) {
	r.mu.Lock()
	if r.active != nil && r.active.job.ID == id {
		job := r.active.job
		r.mu.Unlock()
		return &job, nil
	}
	r.mu.Unlock()
	return r.store.Get(id)
}

// List returns recent jobs, newest first.
func (r *Runner) List(limit int) ([]models.MaintenanceJob, error) {
	jobs, err := r.store.List(limit)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		for i := range jobs {
			if jobs[i].ID == r.active.job.ID {
				jobs[i] = r.active.job
			}
		}
	}
	return jobs, nil
}

// Running returns the id of the running job, if any.
func (r *Runner) Running() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return "", false
	}
	return r.active.job.ID, true
}

// Cancel asks the running job with id to stop. The job ends as canceled once
// the current user's deletion commits.
func (r *Runner) Cancel(id string) (*models.MaintenanceJob, error) {
	r.mu.Lock()
	if r.active != nil && r.active.job.ID == id {
		r.active.cancel()
		job := r.active.job
		r.mu.Unlock()
		logging.Info().Str("job_id", id).Msg("Maintenance job cancel requested")
		return &job, nil
	}
	r.mu.Unlock()

	if _, err := r.store.Get(id); err != nil {
		return nil, err
	}
	return nil, ErrJobFinished
}

// Wait blocks until the handle's job finishes or ctx ends, then returns the
// latest job record.
func (r *Runner) Wait(ctx context.Context, h *Handle) (*models.MaintenanceJob, error) {
	select {
	case <-h.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.store.Get(h.Job.ID)
}

// Serve implements suture.Service. It blocks until ctx ends, then cancels
// the running job and waits for it to record its final state.
func (r *Runner) Serve(ctx context.Context) error {
	<-ctx.Done()

	r.mu.Lock()
	r.stopped = true
	if r.active != nil {
		r.active.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	logging.Info().Msg("Maintenance runner stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (r *Runner) String() string {
	return "maintenance-runner"
}
