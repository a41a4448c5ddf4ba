// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fieldtrack/internal/models"
)

// deleteChunkIDs bounds the IN list of a single DELETE.
const deleteChunkIDs = 500

// AgedUsers returns the users owning at least one fix older than cutoff.
func (db *DB) AgedUsers(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM locations WHERE timestamp_ms < ? ORDER BY user_id`,
		cutoff.UnixMilli())
	if err != nil {
		return nil, storeErr("query aged users", err)
	}
	defer closeWithLog(rows, "aged user rows")

	users := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan aged user", err)
		}
		users = append(users, id)
	}
	return users, storeErr("iterate aged users", rows.Err())
}

// AgedFixIDs returns the ids of a user's fixes older than cutoff, oldest
// first. Ties on timestamp are broken by id so the order is deterministic.
func (db *DB) AgedFixIDs(ctx context.Context, userID string, cutoff time.Time) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM locations WHERE user_id = ? AND timestamp_ms < ? ORDER BY timestamp_ms ASC, id ASC`,
		userID, cutoff.UnixMilli())
	if err != nil {
		return nil, storeErr("query aged fixes", err)
	}
	defer closeWithLog(rows, "aged fix rows")

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan aged fix", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("iterate aged fixes", rows.Err())
}

// DeleteFixes removes the given fixes in a single transaction and returns
// the number of rows deleted.
func (db *DB) DeleteFixes(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var deleted int64
	err := withRetry(ctx, func() error {
		deleted = 0
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for start := 0; start < len(ids); start += deleteChunkIDs {
			end := start + deleteChunkIDs
			if end > len(ids) {
				end = len(ids)
			}
			chunk := ids[start:end]
			args := make([]interface{}, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			res, err := tx.ExecContext(ctx,
				`DELETE FROM locations WHERE id IN `+placeholders(1, len(chunk)), args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += n
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, storeErr("delete fixes", err)
	}
	return deleted, nil
}

// DeleteUserFixesBefore hard-deletes a user's fixes older than cutoff.
func (db *DB) DeleteUserFixesBefore(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	var deleted int64
	err := withRetry(ctx, func() error {
		res, err := db.conn.ExecContext(ctx,
			`DELETE FROM locations WHERE user_id = ? AND timestamp_ms < ?`,
			userID, cutoff.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storeErr("purge user fixes", err)
	}
	return deleted, nil
}

// ForEachFixBefore streams every fix older than cutoff, ordered by user and
// time, to fn. Iteration stops at the first error.
func (db *DB) ForEachFixBefore(ctx context.Context, cutoff time.Time, fn func(*models.LocationFix) error) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fixColumns+` FROM locations WHERE timestamp_ms < ? ORDER BY user_id, timestamp_ms, id`,
		cutoff.UnixMilli())
	if err != nil {
		return storeErr("query fixes for archive", err)
	}
	defer closeWithLog(rows, "archive rows")

	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return storeErr("scan fix for archive", err)
		}
		if err := fn(fix); err != nil {
			return err
		}
	}
	return storeErr("iterate fixes for archive", rows.Err())
}
