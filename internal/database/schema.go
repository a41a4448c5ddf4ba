// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

/*
schema.go - Database Schema Management

Tables:
  - locations: append-only GPS fixes
  - user_presence: last time each user reported a fix
  - sync_operations: offline client mutations awaiting reconciliation

Timestamps are stored as BIGINT Unix milliseconds so that range predicates
and ordering behave identically on DuckDB and SQLite. Optional measurements
are nullable; aggregates skip NULLs.

All columns are defined in the initial CREATE TABLE statements.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

var tableQueries = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id VARCHAR PRIMARY KEY,
		user_id VARCHAR NOT NULL,
		latitude DOUBLE NOT NULL CHECK (latitude >= -90 AND latitude <= 90),
		longitude DOUBLE NOT NULL CHECK (longitude >= -180 AND longitude <= 180),
		accuracy DOUBLE,
		altitude DOUBLE,
		speed DOUBLE,
		heading DOUBLE,
		timestamp_ms BIGINT NOT NULL,
		battery_level INTEGER,
		source VARCHAR NOT NULL,
		is_manual BOOLEAN NOT NULL DEFAULT FALSE,
		metadata VARCHAR,
		sync_status VARCHAR NOT NULL,
		created_at_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_presence (
		user_id VARCHAR PRIMARY KEY,
		last_seen_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_operations (
		id VARCHAR PRIMARY KEY,
		operation_type VARCHAR NOT NULL,
		table_name VARCHAR NOT NULL,
		record_id VARCHAR NOT NULL,
		operation VARCHAR NOT NULL,
		data VARCHAR,
		status VARCHAR NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at_ms BIGINT NOT NULL,
		updated_at_ms BIGINT NOT NULL
	)`,
}

var indexQueries = []string{
	`CREATE INDEX IF NOT EXISTS idx_locations_user_time ON locations(user_id, timestamp_ms)`,
	`CREATE INDEX IF NOT EXISTS idx_locations_coords ON locations(latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_operations_status ON sync_operations(status, created_at_ms)`,
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (db *DB) createIndexes() error {
	if db.cfg != nil && db.cfg.SkipIndexes {
		return nil
	}
	return db.CreateIndexes()
}

// CreateIndexes creates all database indexes. Tests that use SkipIndexes can
// call it explicitly.
func (db *DB) CreateIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range indexQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}
