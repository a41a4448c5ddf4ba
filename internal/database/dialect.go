// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"fmt"
	"net/url"
	"runtime"

	"github.com/tomtom215/fieldtrack/internal/config"
)

// dialect captures the per-driver differences. The schema and queries are
// written in the SQL subset shared by DuckDB and SQLite, so only connection
// strings and maintenance statements vary.
type dialect struct {
	name         string
	driverName   string
	checkpoint   string
	singleWriter bool
	dsn          func(cfg *config.DatabaseConfig) string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", config.DriverDuckDB:
		return dialect{
			name:       config.DriverDuckDB,
			driverName: "duckdb",
			checkpoint: "CHECKPOINT",
			dsn:        duckdbDSN,
		}, nil
	case config.DriverSQLite3:
		return dialect{
			name:         config.DriverSQLite3,
			driverName:   "sqlite3",
			checkpoint:   "PRAGMA wal_checkpoint(TRUNCATE)",
			singleWriter: true,
			dsn:          mattnDSN,
		}, nil
	case config.DriverSQLite:
		return dialect{
			name:         config.DriverSQLite,
			driverName:   "sqlite",
			checkpoint:   "PRAGMA wal_checkpoint(TRUNCATE)",
			singleWriter: true,
			dsn:          moderncDSN,
		}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

func duckdbDSN(cfg *config.DatabaseConfig) string {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	q := url.Values{}
	q.Set("access_mode", "read_write")
	q.Set("threads", fmt.Sprint(threads))
	if cfg.MaxMemory != "" {
		q.Set("max_memory", cfg.MaxMemory)
	}
	return path + "?" + q.Encode()
}

func busyTimeout(cfg *config.DatabaseConfig) int {
	if cfg.BusyTimeoutMS > 0 {
		return cfg.BusyTimeoutMS
	}
	return 5000
}

// mattnDSN builds a github.com/mattn/go-sqlite3 connection string.
func mattnDSN(cfg *config.DatabaseConfig) string {
	if isMemoryPath(cfg.Path) {
		return fmt.Sprintf("file::memory:?_busy_timeout=%d&_foreign_keys=on&_txlock=immediate", busyTimeout(cfg))
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=immediate",
		cfg.Path, busyTimeout(cfg))
}

// moderncDSN builds a modernc.org/sqlite connection string.
func moderncDSN(cfg *config.DatabaseConfig) string {
	if isMemoryPath(cfg.Path) {
		return fmt.Sprintf("file::memory:?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate", busyTimeout(cfg))
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate",
		cfg.Path, busyTimeout(cfg))
}
