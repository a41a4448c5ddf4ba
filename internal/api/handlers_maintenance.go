// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/maintenance"
	"github.com/tomtom215/fieldtrack/internal/models"
	"github.com/tomtom215/fieldtrack/internal/retention"
)

const defaultJobListLimit = 50

// JobResponse wraps a single maintenance job.
type JobResponse struct {
	Job *models.MaintenanceJob `json:"job"`
}

// CleanupLocations purges every fix older than the given number of days.
//
// @Summary Purge old fixes
// @Description Runs synchronously unless async=true, in which case 202 returns the job.
// @Tags Maintenance
// @Produce json
// @Param days query int false "Age in days (1..365)" default(90)
// @Param async query bool false "Return immediately with the job"
// @Success 200 {object} APIResponse{data=models.PurgeResult}
// @Success 202 {object} APIResponse{data=JobResponse}
// @Failure 409 {object} APIResponse "Another maintenance job is running"
// @Router /locations/cleanup [delete]
func (h *Handler) CleanupLocations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q, err := parseCleanupQuery(r, h.cfg.Retention)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	h.runJob(w, r, maintenance.Request{
		Kind:        models.JobPurge,
		Days:        q.Days,
		RequestedBy: p.ID,
	}, q.Async)
}

// CompressLocations thins aged fixes down to the requested ratio per user.
//
// @Summary Compress old fixes
// @Tags Maintenance
// @Produce json
// @Param days query int false "Age in days (1..365)" default(30)
// @Param compressionRatio query number false "Share of aged fixes to keep (0.1..1.0)" default(0.5)
// @Param async query bool false "Return immediately with the job"
// @Success 200 {object} APIResponse{data=models.CompressResult}
// @Success 202 {object} APIResponse{data=JobResponse}
// @Failure 409 {object} APIResponse "Another maintenance job is running"
// @Router /locations/compress [post]
func (h *Handler) CompressLocations(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q, err := parseCompressQuery(r, h.cfg.Retention)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	h.runJob(w, r, maintenance.Request{
		Kind:        models.JobCompress,
		Days:        q.Days,
		Ratio:       q.CompressionRatio,
		RequestedBy: p.ID,
	}, q.Async)
}

// runJob submits req and either answers with the job (async) or waits for
// it. When the request ends first the job keeps running on the runner's
// context and stays queryable by id.
func (h *Handler) runJob(w http.ResponseWriter, r *http.Request, req maintenance.Request, async bool) {
	handle, err := h.runner.Submit(req)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	log := logging.Ctx(r.Context())
	log.Info().
		Str("job_id", handle.Job.ID).
		Str("kind", string(req.Kind)).
		Int("days", req.Days).
		Bool("async", async).
		Msg("Maintenance job submitted")

	if async {
		job := handle.Job
		respondJSON(w, r, http.StatusAccepted, JobResponse{Job: &job})
		return
	}

	job, err := h.runner.Wait(r.Context(), handle)
	if err != nil {
		log.Warn().Err(err).Str("job_id", handle.Job.ID).Msg("Request ended before maintenance job finished")
		RespondError(w, r, err)
		return
	}

	switch job.Status {
	case models.JobSucceeded:
		if job.Kind == models.JobCompress {
			respondJSON(w, r, http.StatusOK, retention.CompressResult(job.Affected, job.CutoffDate, job.CompressionRatio))
		} else {
			respondJSON(w, r, http.StatusOK, retention.PurgeResult(job.Affected, job.CutoffDate))
		}
	case models.JobCanceled:
		respondError(w, r, http.StatusConflict, ErrCodeJobCanceled, "Maintenance job was canceled", JobResponse{Job: job})
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabase, "Maintenance job failed", JobResponse{Job: job})
	}
}

// ListJobs returns recent maintenance jobs, newest first.
//
// @Summary List maintenance jobs
// @Tags Maintenance
// @Produce json
// @Param limit query int false "Maximum jobs (1..500)" default(50)
// @Success 200 {object} APIResponse{data=object{jobs=[]models.MaintenanceJob}}
// @Router /maintenance/jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r)
	limit := p.intParam("limit", defaultJobListLimit)
	if limit < 1 || limit > 500 {
		p.fail("limit", "range", "limit must be between 1 and 500")
	}
	if err := p.err(); err != nil {
		RespondError(w, r, err)
		return
	}

	jobs, err := h.runner.List(limit)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// GetJob returns one maintenance job.
//
// @Summary Get a maintenance job
// @Tags Maintenance
// @Produce json
// @Param id path string true "Job id"
// @Success 200 {object} APIResponse{data=JobResponse}
// @Failure 404 {object} APIResponse "Unknown job"
// @Router /maintenance/jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Get(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, JobResponse{Job: job})
}

// CancelJob asks a running maintenance job to stop.
//
// @Summary Cancel a maintenance job
// @Tags Maintenance
// @Produce json
// @Param id path string true "Job id"
// @Success 202 {object} APIResponse{data=JobResponse}
// @Failure 404 {object} APIResponse "Unknown job"
// @Failure 409 {object} APIResponse "Job already finished"
// @Router /maintenance/jobs/{id} [delete]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.runner.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, JobResponse{Job: job})
}
