// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tomtom215/fieldtrack/internal/config"
)

func TestNewAndPing(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		if err := db.Ping(context.Background()); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
		if db.Conn() == nil {
			t.Error("Conn() = nil")
		}
		if err := db.CreateIndexes(); err != nil {
			t.Errorf("CreateIndexes() twice error = %v", err)
		}
	})
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{"", config.DriverDuckDB, false},
		{config.DriverDuckDB, config.DriverDuckDB, false},
		{config.DriverSQLite3, config.DriverSQLite3, false},
		{config.DriverSQLite, config.DriverSQLite, false},
		{"postgres", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := dialectFor(tt.driver)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dialectFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d.name != tt.want {
				t.Errorf("name = %q, want %q", d.name, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	cfg := &config.DatabaseConfig{Path: "/data/ft.db", BusyTimeoutMS: 750, Threads: 2, MaxMemory: "512MB"}

	if got := mattnDSN(cfg); !strings.Contains(got, "_busy_timeout=750") || !strings.Contains(got, "_journal_mode=WAL") {
		t.Errorf("mattnDSN() = %q", got)
	}
	if got := moderncDSN(cfg); !strings.Contains(got, "busy_timeout(750)") || !strings.Contains(got, "journal_mode(WAL)") {
		t.Errorf("moderncDSN() = %q", got)
	}
	got := duckdbDSN(cfg)
	if !strings.HasPrefix(got, "/data/ft.db?") || !strings.Contains(got, "threads=2") || !strings.Contains(got, "max_memory=512MB") {
		t.Errorf("duckdbDSN() = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		rows, cols int
		want       string
	}{
		{1, 1, "(?)"},
		{1, 3, "(?, ?, ?)"},
		{2, 2, "(?, ?), (?, ?)"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.rows, tt.cols); got != tt.want {
			t.Errorf("placeholders(%d, %d) = %q, want %q", tt.rows, tt.cols, got, tt.want)
		}
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("constraint failed"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("Transaction conflict")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("withRetry() = %v after %d calls, want nil after 2", err, calls)
	}

	calls = 0
	err = withRetry(context.Background(), func() error {
		calls++
		return fmt.Errorf("syntax error")
	})
	if err == nil || calls != 1 {
		t.Errorf("withRetry() non-conflict = %v after %d calls", err, calls)
	}
}

func TestStoreErrorWraps(t *testing.T) {
	inner := errors.New("boom")
	err := storeErr("insert", inner)
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "insert" || !errors.Is(err, inner) {
		t.Errorf("storeErr() = %#v", err)
	}
	if storeErr("x", nil) != nil {
		t.Error("storeErr(nil) != nil")
	}
	if !errors.Is(storeErr("x", context.Canceled), context.Canceled) {
		t.Error("context errors should pass through")
	}
}
