// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TouchLastSeen records that userID reported a fix at the given time. The
// stored value never moves backwards.
func (db *DB) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	err := withRetry(ctx, func() error {
		_, err := db.conn.ExecContext(ctx, `INSERT INTO user_presence (user_id, last_seen_ms) VALUES (?, ?)
			ON CONFLICT (user_id) DO UPDATE SET last_seen_ms = CASE
				WHEN EXCLUDED.last_seen_ms > last_seen_ms THEN EXCLUDED.last_seen_ms
				ELSE last_seen_ms
			END`,
			userID, at.UnixMilli())
		return err
	})
	return storeErr("touch last seen", err)
}

// LastSeen returns when userID last reported a fix.
func (db *DB) LastSeen(ctx context.Context, userID string) (time.Time, error) {
	var ms int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT last_seen_ms FROM user_presence WHERE user_id = ?`, userID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, storeErr("query last seen", err)
	}
	return fromMillis(ms), nil
}
