// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json"})
}

// testDBSemaphore serializes test databases. Concurrent DuckDB CGO calls
// from many parallel tests can hang under CI resource pressure, so a test
// holds the slot for its whole lifetime.
var testDBSemaphore = make(chan struct{}, 1)

var testDBMutex sync.Mutex

// testDrivers are the dialects every store test runs against.
var testDrivers = []string{config.DriverDuckDB, config.DriverSQLite, config.DriverSQLite3}

// setupTestDB opens a fresh database for driver. DuckDB runs in memory;
// the SQLite drivers use a WAL file under t.TempDir().
func setupTestDB(t *testing.T, driver string) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{Driver: driver, Path: ":memory:", MaxMemory: "1GB"}
	if driver != config.DriverDuckDB {
		cfg.Path = filepath.Join(t.TempDir(), "fieldtrack.db")
	}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

// forEachDriver runs fn as a subtest per dialect.
func forEachDriver(t *testing.T, fn func(t *testing.T, db *DB)) {
	t.Helper()
	for _, driver := range testDrivers {
		t.Run(driver, func(t *testing.T) {
			fn(t, setupTestDB(t, driver))
		})
	}
}

func floatP(f float64) *float64 { return &f }

func intP(i int) *int { return &i }

// newFix builds a valid fix for userID observed at ts.
func newFix(userID string, ts time.Time) models.LocationFix {
	return models.LocationFix{
		ID:           uuid.New().String(),
		UserID:       userID,
		Latitude:     39.9334,
		Longitude:    32.8597,
		Accuracy:     floatP(10),
		Timestamp:    ts.UTC().Truncate(time.Millisecond),
		BatteryLevel: intP(85),
		Source:       models.SourceGPS,
		SyncStatus:   models.SyncSynced,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}
