// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/fieldtrack/internal/middleware"
	"github.com/tomtom215/fieldtrack/internal/models"
)

func TestCreateLocationRoundTrip(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	ts := time.Date(2026, 9, 30, 8, 15, 0, 0, time.UTC)

	body := fixBody(39.9334, 32.8597, ts)
	body["accuracy"] = 10
	body["batteryLevel"] = 85
	body["source"] = "gps"

	rec, env := s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var record models.FixRecord
	decodeData(t, env, &record)
	if record.ID == "" || !record.Timestamp.Equal(ts) {
		t.Fatalf("record = %+v", record)
	}

	rec, env = s.do(http.MethodGet, "/api/v1/locations/history", "u1", models.RoleUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var page models.HistoryPage
	decodeData(t, env, &page)
	if len(page.Locations) != 1 || page.Total != 1 {
		t.Fatalf("history = %+v", page)
	}
	got := page.Locations[0]
	if got.ID != record.ID || got.UserID != "u1" || got.Latitude != 39.9334 || got.Longitude != 32.8597 {
		t.Errorf("fix = %+v", got)
	}
	if got.Accuracy == nil || *got.Accuracy != 10 || got.BatteryLevel == nil || *got.BatteryLevel != 85 {
		t.Errorf("optional fields = %v / %v", got.Accuracy, got.BatteryLevel)
	}
	if got.Source != models.SourceGPS || !got.Timestamp.Equal(ts) || got.IsManual || got.SyncStatus != models.SyncSynced {
		t.Errorf("fix = %+v", got)
	}
	if p := env.Metadata.Pagination; p == nil || p.Total != 1 || p.Limit != 100 || p.HasMore {
		t.Errorf("pagination = %+v", p)
	}
}

func TestCreateLocationValidation(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	ts := time.Now().UTC()

	tests := []struct {
		name string
		body interface{}
	}{
		{"latitude out of range", fixBody(91, 0, ts)},
		{"longitude out of range", fixBody(0, -180.5, ts)},
		{"missing timestamp", map[string]interface{}{"latitude": 1, "longitude": 2}},
		{"battery out of range", func() map[string]interface{} {
			b := fixBody(1, 2, ts)
			b["batteryLevel"] = 101
			return b
		}()},
		{"unknown source", func() map[string]interface{} {
			b := fixBody(1, 2, ts)
			b["source"] = "satellite"
			return b
		}()},
		{"malformed json", `{"latitude":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, tt.body)
			expectError(t, rec, env, http.StatusBadRequest, ErrCodeValidation)
		})
	}

	_, env := s.do(http.MethodGet, "/api/v1/locations/history", "u1", models.RoleUser, nil)
	var page models.HistoryPage
	decodeData(t, env, &page)
	if page.Total != 0 {
		t.Errorf("invalid fixes persisted: total = %d", page.Total)
	}
}

func TestCreateLocationBatchAtomic(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	valid := make([]interface{}, 5)
	for i := range valid {
		valid[i] = fixBody(10+float64(i), 20, base.Add(time.Duration(i)*time.Minute))
	}
	rec, env := s.do(http.MethodPost, "/api/v1/locations/batch", "u1", models.RoleUser, map[string]interface{}{"locations": valid})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var result models.BatchResult
	decodeData(t, env, &result)
	if result.Count != 5 || len(result.Locations) != 5 {
		t.Fatalf("result = %+v", result)
	}

	invalid := make([]interface{}, 5)
	copy(invalid, valid)
	invalid[2] = fixBody(200, 20, base)
	rec, env = s.do(http.MethodPost, "/api/v1/locations/batch", "u2", models.RoleUser, map[string]interface{}{"locations": invalid})
	expectError(t, rec, env, http.StatusBadRequest, ErrCodeValidation)

	details, ok := env.Error.Details.(map[string]interface{})
	if !ok {
		t.Fatalf("details = %#v", env.Error.Details)
	}
	indexes, ok := details["indexes"].([]interface{})
	if !ok || len(indexes) != 1 || indexes[0] != float64(2) {
		t.Errorf("indexes = %#v, want [2]", details["indexes"])
	}

	n, err := s.db.CountLocations(t.Context(), "u2")
	if err != nil || n != 0 {
		t.Errorf("u2 persisted %d fixes (err %v), want 0", n, err)
	}

	rec, env = s.do(http.MethodPost, "/api/v1/locations/batch", "u1", models.RoleUser, map[string]interface{}{"locations": []interface{}{}})
	expectError(t, rec, env, http.StatusBadRequest, ErrCodeValidation)
}

func TestLocationHistoryAccessAndQuery(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec, _ := s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, fixBody(1, 2, base.Add(time.Duration(i)*time.Hour)))
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", rec.Code)
		}
	}

	tests := []struct {
		name    string
		path    string
		userID  string
		role    string
		status  int
		code    string
		results int
	}{
		{"self", "/api/v1/locations/history", "u1", models.RoleUser, http.StatusOK, "", 5},
		{"self by id", "/api/v1/locations/history/u1", "u1", models.RoleUser, http.StatusOK, "", 5},
		{"other user", "/api/v1/locations/history/u1", "u2", models.RoleUser, http.StatusForbidden, ErrCodeForbidden, 0},
		{"dispatcher other user", "/api/v1/locations/history/u1", "d1", models.RoleDispatcher, http.StatusForbidden, ErrCodeForbidden, 0},
		{"admin", "/api/v1/locations/history/u1", "a1", models.RoleAdmin, http.StatusOK, "", 5},
		{"paged", "/api/v1/locations/history?limit=2&offset=1", "u1", models.RoleUser, http.StatusOK, "", 2},
		{"window", "/api/v1/locations/history?startDate=2026-08-01T01:00:00Z&endDate=2026-08-01T02:00:00Z", "u1", models.RoleUser, http.StatusOK, "", 2},
		{"source filter", "/api/v1/locations/history?source=network", "u1", models.RoleUser, http.StatusOK, "", 0},
		{"limit zero", "/api/v1/locations/history?limit=0", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
		{"limit too large", "/api/v1/locations/history?limit=1001", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
		{"limit not a number", "/api/v1/locations/history?limit=ten", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
		{"bad date", "/api/v1/locations/history?startDate=yesterday", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
		{"inverted window", "/api/v1/locations/history?startDate=2026-08-02&endDate=2026-08-01", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
		{"bad source", "/api/v1/locations/history?source=radio", "u1", models.RoleUser, http.StatusBadRequest, ErrCodeValidation, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(http.MethodGet, tt.path, tt.userID, tt.role, nil)
			if tt.code != "" {
				expectError(t, rec, env, tt.status, tt.code)
				return
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
			}
			var page models.HistoryPage
			decodeData(t, env, &page)
			if len(page.Locations) != tt.results {
				t.Fatalf("results = %d, want %d", len(page.Locations), tt.results)
			}
			for i := 1; i < len(page.Locations); i++ {
				if page.Locations[i].Timestamp.After(page.Locations[i-1].Timestamp) {
					t.Errorf("history not newest first at %d", i)
				}
			}
		})
	}
}

func TestCurrentLocationsRequiresAnyLocationsRead(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	now := time.Now().UTC()
	s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, fixBody(1, 2, now.Add(-time.Minute)))
	s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, fixBody(3, 4, now))
	s.do(http.MethodPost, "/api/v1/locations", "u2", models.RoleUser, fixBody(5, 6, now))

	for _, role := range []string{models.RoleUser, models.RoleDispatcher} {
		rec, env := s.do(http.MethodGet, "/api/v1/locations/current", "u1", role, nil)
		expectError(t, rec, env, http.StatusForbidden, ErrCodeForbidden)
	}

	rec, env := s.do(http.MethodGet, "/api/v1/locations/current", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data struct {
		Locations []models.LocationFix `json:"locations"`
	}
	decodeData(t, env, &data)
	if len(data.Locations) != 2 {
		t.Fatalf("current = %+v", data.Locations)
	}
	if data.Locations[0].UserID != "u1" || data.Locations[0].Latitude != 3 {
		t.Errorf("u1 current = %+v", data.Locations[0])
	}
}

func TestLocationStats(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i, src := range []string{"gps", "gps", "network"} {
		b := fixBody(1, 2, base.Add(time.Duration(i)*time.Hour))
		b["source"] = src
		b["accuracy"] = float64(10 * (i + 1))
		s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, b)
	}

	rec, env := s.do(http.MethodGet, "/api/v1/locations/stats", "u1", models.RoleUser, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats models.LocationStats
	decodeData(t, env, &stats)
	if stats.TotalLocations != 3 || stats.AvgAccuracy != 20 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SourceDistribution[models.SourceGPS] != 2 || stats.SourceDistribution[models.SourceNetwork] != 1 {
		t.Errorf("distribution = %v", stats.SourceDistribution)
	}
	if stats.FirstLocation == nil || !stats.FirstLocation.Equal(base) {
		t.Errorf("first = %v", stats.FirstLocation)
	}

	rec, env = s.do(http.MethodGet, "/api/v1/locations/stats/u1", "u2", models.RoleUser, nil)
	expectError(t, rec, env, http.StatusForbidden, ErrCodeForbidden)

	rec, env = s.do(http.MethodGet, "/api/v1/locations/stats/u1", "d1", models.RoleDispatcher, nil)
	expectError(t, rec, env, http.StatusForbidden, ErrCodeForbidden)

	rec, env = s.do(http.MethodGet, "/api/v1/locations/stats/nobody", "a1", models.RoleAdmin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	decodeData(t, env, &stats)
	if stats.TotalLocations != 0 || stats.AvgAccuracy != 0 || stats.FirstLocation != nil {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestIngestRateLimit(t *testing.T) {
	cfg := testConfig()
	limiter := middleware.NewUserRateLimiter(0.001, 1, RespondRateLimited)
	s := newTestServer(t, cfg, limiter)
	ts := time.Now().UTC()

	rec, _ := s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, fixBody(1, 2, ts))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	rec, env := s.do(http.MethodPost, "/api/v1/locations", "u1", models.RoleUser, fixBody(1, 2, ts))
	expectError(t, rec, env, http.StatusTooManyRequests, ErrCodeRateLimited)

	rec, _ = s.do(http.MethodPost, "/api/v1/locations", "u2", models.RoleUser, fixBody(1, 2, ts))
	if rec.Code != http.StatusCreated {
		t.Errorf("other user status = %d", rec.Code)
	}
}
