// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/fieldtrack/internal/maintenance"
	"github.com/tomtom215/fieldtrack/internal/models"
)

func seedAged(t *testing.T, s *testServer, userID string, n int, age time.Duration) {
	t.Helper()
	start := time.Now().UTC().Add(-age)
	fixes := make([]interface{}, n)
	for i := range fixes {
		fixes[i] = fixBody(1, 2, start.Add(time.Duration(i)*time.Minute))
	}
	rec, _ := s.do(http.MethodPost, "/api/v1/locations/batch", userID, models.RoleUser, map[string]interface{}{"locations": fixes})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestMaintenanceRequiresAdmin(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	routes := []struct{ method, path string }{
		{http.MethodDelete, "/api/v1/locations/cleanup"},
		{http.MethodPost, "/api/v1/locations/compress"},
		{http.MethodGet, "/api/v1/maintenance/jobs"},
		{http.MethodGet, "/api/v1/maintenance/jobs/abc"},
		{http.MethodDelete, "/api/v1/maintenance/jobs/abc"},
	}
	for _, route := range routes {
		for _, role := range []string{models.RoleUser, models.RoleDispatcher} {
			rec, env := s.do(route.method, route.path, "x", role, nil)
			if rec.Code != http.StatusForbidden || env.Error == nil || env.Error.Code != ErrCodeForbidden {
				t.Errorf("%s %s as %s = %d", route.method, route.path, role, rec.Code)
			}
		}
	}
}

func TestCleanupSynchronous(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	seedAged(t, s, "u1", 4, 120*24*time.Hour)
	seedAged(t, s, "u1", 3, 24*time.Hour)

	rec, env := s.do(http.MethodDelete, "/api/v1/locations/cleanup", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var result models.PurgeResult
	decodeData(t, env, &result)
	if result.DeletedCount != 4 {
		t.Errorf("deletedCount = %d, want 4", result.DeletedCount)
	}
	horizon := time.Now().UTC().Add(-90 * 24 * time.Hour)
	if d := result.CutoffDate.Sub(horizon); d < -time.Minute || d > time.Minute {
		t.Errorf("cutoffDate = %v, want about %v", result.CutoffDate, horizon)
	}

	n, _ := s.db.CountLocations(t.Context(), "u1")
	if n != 3 {
		t.Errorf("remaining = %d, want 3", n)
	}

	rec, env = s.do(http.MethodGet, "/api/v1/maintenance/jobs", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Jobs []models.MaintenanceJob `json:"jobs"`
	}
	decodeData(t, env, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].Kind != models.JobPurge || list.Jobs[0].Status != models.JobSucceeded || list.Jobs[0].RequestedBy != "a1" {
		t.Errorf("jobs = %+v", list.Jobs)
	}
}

func TestCleanupFailureHidesStoreDetail(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	seedAged(t, s, "u1", 4, 120*24*time.Hour)
	if _, err := s.db.Conn().ExecContext(t.Context(), "DROP TABLE locations"); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	rec, env := s.do(http.MethodDelete, "/api/v1/locations/cleanup", "a1", models.RoleAdmin, nil)
	expectError(t, rec, env, http.StatusInternalServerError, ErrCodeDatabase)
	if body := rec.Body.String(); strings.Contains(body, "no such table") || !strings.Contains(body, `"error":"database error"`) {
		t.Errorf("failed job body = %s", body)
	}

	rec, env = s.do(http.MethodGet, "/api/v1/maintenance/jobs", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "no such table") {
		t.Errorf("job list leaks driver error: %s", rec.Body.String())
	}
	var list struct {
		Jobs []models.MaintenanceJob `json:"jobs"`
	}
	decodeData(t, env, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].Status != models.JobFailed || list.Jobs[0].Error != "database error" {
		t.Errorf("jobs = %+v", list.Jobs)
	}
}

func TestCompressAsync(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	seedAged(t, s, "u1", 100, 60*24*time.Hour)
	seedAged(t, s, "u1", 10, time.Hour)

	rec, env := s.do(http.MethodPost, "/api/v1/locations/compress?async=true&compressionRatio=0.5", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var accepted JobResponse
	decodeData(t, env, &accepted)
	if accepted.Job == nil || accepted.Job.ID == "" || accepted.Job.Kind != models.JobCompress {
		t.Fatalf("job = %+v", accepted.Job)
	}

	var job JobResponse
	deadline := time.Now().Add(10 * time.Second)
	for {
		rec, env = s.do(http.MethodGet, "/api/v1/maintenance/jobs/"+accepted.Job.ID, "a1", models.RoleAdmin, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}
		decodeData(t, env, &job)
		if job.Job.Status.Terminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if job.Job.Status != models.JobSucceeded || job.Job.Affected != 50 {
		t.Errorf("job = %+v", job.Job)
	}
	n, _ := s.db.CountLocations(t.Context(), "u1")
	if n != 60 {
		t.Errorf("remaining = %d, want 50 aged + 10 recent", n)
	}

	rec, env = s.do(http.MethodDelete, "/api/v1/maintenance/jobs/"+accepted.Job.ID, "a1", models.RoleAdmin, nil)
	expectError(t, rec, env, http.StatusConflict, ErrCodeJobFinished)
}

func TestMaintenanceParameters(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"days zero", http.MethodDelete, "/api/v1/locations/cleanup?days=0"},
		{"days too large", http.MethodDelete, "/api/v1/locations/cleanup?days=366"},
		{"days not a number", http.MethodDelete, "/api/v1/locations/cleanup?days=many"},
		{"async not a bool", http.MethodDelete, "/api/v1/locations/cleanup?async=maybe"},
		{"ratio too small", http.MethodPost, "/api/v1/locations/compress?compressionRatio=0.05"},
		{"ratio too large", http.MethodPost, "/api/v1/locations/compress?compressionRatio=1.5"},
		{"ratio not a number", http.MethodPost, "/api/v1/locations/compress?compressionRatio=half"},
		{"job limit", http.MethodGet, "/api/v1/maintenance/jobs?limit=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(tt.method, tt.path, "a1", models.RoleAdmin, nil)
			expectError(t, rec, env, http.StatusBadRequest, ErrCodeValidation)
		})
	}
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rec, env := s.do(http.MethodGet, "/api/v1/maintenance/jobs/missing", "a1", models.RoleAdmin, nil)
	expectError(t, rec, env, http.StatusNotFound, ErrCodeNotFound)

	rec, env = s.do(http.MethodDelete, "/api/v1/maintenance/jobs/missing", "a1", models.RoleAdmin, nil)
	expectError(t, rec, env, http.StatusNotFound, ErrCodeNotFound)
}

// stubRunner lets the handler tests drive job outcomes directly.
type stubRunner struct {
	submitErr error
	final     models.MaintenanceJob
	waitErr   error
}

func (r *stubRunner) Submit(req maintenance.Request) (*maintenance.Handle, error) {
	if r.submitErr != nil {
		return nil, r.submitErr
	}
	return &maintenance.Handle{Job: models.MaintenanceJob{ID: "job-1", Kind: req.Kind, Status: models.JobRunning}}, nil
}

func (r *stubRunner) Wait(_ context.Context, _ *maintenance.Handle) (*models.MaintenanceJob, error) {
	if r.waitErr != nil {
		return nil, r.waitErr
	}
	job := r.final
	return &job, nil
}

func (r *stubRunner) Get(string) (*models.MaintenanceJob, error) {
	return nil, maintenance.ErrJobNotFound
}

func (r *stubRunner) List(int) ([]models.MaintenanceJob, error) {
	return nil, nil
}

func (r *stubRunner) Cancel(string) (*models.MaintenanceJob, error) {
	return nil, maintenance.ErrJobNotFound
}

func (r *stubRunner) Running() (string, bool) {
	return "", false
}

func TestRunJobOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		runner *stubRunner
		status int
		code   string
	}{
		{
			name:   "conflict",
			runner: &stubRunner{submitErr: &maintenance.ConflictError{RunningJobID: "job-0"}},
			status: http.StatusConflict,
			code:   ErrCodeMaintenanceConflict,
		},
		{
			name:   "stopped",
			runner: &stubRunner{submitErr: maintenance.ErrRunnerStopped},
			status: http.StatusServiceUnavailable,
			code:   ErrCodeServiceUnavailable,
		},
		{
			name:   "canceled",
			runner: &stubRunner{final: models.MaintenanceJob{ID: "job-1", Kind: models.JobPurge, Status: models.JobCanceled}},
			status: http.StatusConflict,
			code:   ErrCodeJobCanceled,
		},
		{
			name:   "failed",
			runner: &stubRunner{final: models.MaintenanceJob{ID: "job-1", Kind: models.JobPurge, Status: models.JobFailed, Error: "disk full"}},
			status: http.StatusInternalServerError,
			code:   ErrCodeDatabase,
		},
		{
			name:   "request ended",
			runner: &stubRunner{waitErr: context.Canceled},
			status: http.StatusServiceUnavailable,
			code:   ErrCodeServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(), nil, nil, tt.runner, nil, nil)
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/locations/cleanup", nil)
			rec := httptest.NewRecorder()
			h.runJob(rec, req, maintenance.Request{Kind: models.JobPurge, Days: 90, RequestedBy: "a1"}, false)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.code) {
				t.Errorf("body %s missing code %s", rec.Body.String(), tt.code)
			}
			if tt.name == "conflict" && !strings.Contains(rec.Body.String(), `"runningJobId":"job-0"`) {
				t.Errorf("conflict body missing running job id: %s", rec.Body.String())
			}
		})
	}
}

func TestRespondErrorHidesStoreDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	RespondError(rec, req, errors.Join(errors.New("wrapped"), maintenance.ErrJobNotFound))
	if rec.Code != http.StatusNotFound {
		t.Errorf("joined not-found status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	RespondError(rec, req, errors.New("SQL logic error near SELECT"))
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "SELECT") {
		t.Errorf("unexpected error leaked: %d %s", rec.Code, rec.Body.String())
	}
}
