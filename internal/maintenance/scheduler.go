// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// SchedulerPrincipal is recorded as RequestedBy on scheduled jobs.
const SchedulerPrincipal = "scheduler"

// Submitter starts jobs. *Runner satisfies it.
type Submitter interface {
	Submit(req Request) (*Handle, error)
}

// Scheduler submits periodic purge and compress jobs.
type Scheduler struct {
	runner Submitter
	cfg    config.RetentionConfig
}

// NewScheduler creates a scheduler. Zero intervals disable a schedule.
func NewScheduler(runner Submitter, cfg config.RetentionConfig) *Scheduler {
	return &Scheduler{runner: runner, cfg: cfg}
}

// Enabled reports whether any schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.cfg.PurgeInterval > 0 || s.cfg.CompressInterval > 0
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	purge := newTicker(s.cfg.PurgeInterval)
	defer purge.stop()
	compress := newTicker(s.cfg.CompressInterval)
	defer compress.stop()

	logging.Info().
		Dur("purge_interval", s.cfg.PurgeInterval).
		Dur("compress_interval", s.cfg.CompressInterval).
		Msg("Maintenance scheduler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-purge.c:
			s.submit(Request{
				Kind:        models.JobPurge,
				Days:        s.cfg.PurgeAfterDays,
				RequestedBy: SchedulerPrincipal,
			})
		case <-compress.c:
			s.submit(Request{
				Kind:        models.JobCompress,
				Days:        s.cfg.CompressAfterDays,
				Ratio:       s.cfg.CompressRatio,
				RequestedBy: SchedulerPrincipal,
			})
		}
	}
}

func (s *Scheduler) submit(req Request) {
	h, err := s.runner.Submit(req)
	if errors.Is(err, ErrConflict) {
		logging.Info().Str("kind", string(req.Kind)).Err(err).Msg("Scheduled maintenance skipped, another job is running")
		return
	}
	if err != nil {
		logging.Error().Str("kind", string(req.Kind)).Err(err).Msg("Scheduled maintenance failed to start")
		return
	}
	logging.Info().Str("kind", string(req.Kind)).Str("job_id", h.Job.ID).Msg("Scheduled maintenance submitted")
}

// String implements fmt.Stringer for suture logging.
func (s *Scheduler) String() string {
	return "maintenance-scheduler"
}

// ticker wraps time.Ticker so a disabled schedule is a nil channel.
type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
