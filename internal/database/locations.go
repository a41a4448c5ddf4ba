// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldtrack/internal/models"
)

const fixColumns = `id, user_id, latitude, longitude, accuracy, altitude, speed, heading,
	timestamp_ms, battery_level, source, is_manual, metadata, sync_status, created_at_ms`

const fixColumnCount = 15

// insertChunkRows bounds rows per INSERT so a batch stays well under
// SQLite's bound-parameter limit.
const insertChunkRows = 50

// InsertFix persists one fix.
func (db *DB) InsertFix(ctx context.Context, fix *models.LocationFix) error {
	args, err := fixArgs(fix)
	if err != nil {
		return err
	}
	query := `INSERT INTO locations (` + fixColumns + `) VALUES ` + placeholders(1, fixColumnCount)
	err = withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, query, args...)
		return execErr
	})
	return storeErr("insert location", err)
}

// InsertFixes persists all fixes in one transaction: either every row is
// written or none is.
func (db *DB) InsertFixes(ctx context.Context, fixes []models.LocationFix) error {
	if len(fixes) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(fixes)*fixColumnCount)
	for i := range fixes {
		a, err := fixArgs(&fixes[i])
		if err != nil {
			return err
		}
		args = append(args, a...)
	}

	err := withRetry(ctx, func() error {
		return db.insertFixesTx(ctx, len(fixes), args)
	})
	return storeErr("insert location batch", err)
}

func (db *DB) insertFixesTx(ctx context.Context, rows int, args []interface{}) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < rows; start += insertChunkRows {
		end := start + insertChunkRows
		if end > rows {
			end = rows
		}
		query := `INSERT INTO locations (` + fixColumns + `) VALUES ` + placeholders(end-start, fixColumnCount)
		if _, err := tx.ExecContext(ctx, query, args[start*fixColumnCount:end*fixColumnCount]...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LocationHistory returns one page of a user's fixes, newest first, with the
// total number of matching fixes.
func (db *DB) LocationHistory(ctx context.Context, filter models.HistoryFilter) (*models.HistoryPage, error) {
	where, args := historyWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM locations WHERE ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, storeErr("count location history", err)
	}

	// Limit and offset are validated integers; inlining them avoids
	// driver differences in binding LIMIT parameters.
	query := fmt.Sprintf(`SELECT %s FROM locations WHERE %s
		ORDER BY timestamp_ms DESC, id DESC LIMIT %d OFFSET %d`,
		fixColumns, where, filter.Limit, filter.Offset)

	fixes, err := db.queryFixes(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query location history", err)
	}

	return &models.HistoryPage{
		Locations: fixes,
		Total:     total,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}, nil
}

func historyWhere(filter models.HistoryFilter) (string, []interface{}) {
	clauses := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}
	if filter.StartDate != nil {
		clauses = append(clauses, "timestamp_ms >= ?")
		args = append(args, filter.StartDate.UnixMilli())
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "timestamp_ms <= ?")
		args = append(args, filter.EndDate.UnixMilli())
	}
	if filter.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(filter.Source))
	}
	return strings.Join(clauses, " AND "), args
}

// CurrentLocations returns the most recent fix of every user seen at or
// after activeSince, ordered by user id.
func (db *DB) CurrentLocations(ctx context.Context, activeSince time.Time) ([]models.LocationFix, error) {
	query := `SELECT ` + prefixColumns("l") + `
		FROM locations l
		JOIN (
			SELECT user_id, MAX(timestamp_ms) AS latest_ms
			FROM locations
			GROUP BY user_id
		) latest ON l.user_id = latest.user_id AND l.timestamp_ms = latest.latest_ms
		JOIN user_presence p ON p.user_id = l.user_id
		WHERE p.last_seen_ms >= ?
		ORDER BY l.user_id, l.id`

	fixes, err := db.queryFixes(ctx, query, activeSince.UnixMilli())
	if err != nil {
		return nil, storeErr("query current locations", err)
	}

	// Two fixes can share a user's latest timestamp; keep one per user.
	out := fixes[:0]
	for i := range fixes {
		if len(out) > 0 && out[len(out)-1].UserID == fixes[i].UserID {
			continue
		}
		out = append(out, fixes[i])
	}
	return out, nil
}

// LocationStats summarises a user's fixes within the optional window. The
// count and source distribution come from one statement inside one
// transaction, so the distribution always sums to the total.
func (db *DB) LocationStats(ctx context.Context, userID string, start, end *time.Time) (*models.LocationStats, error) {
	where, args := historyWhere(models.HistoryFilter{UserID: userID, StartDate: start, EndDate: end})

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr("begin stats transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT source, COUNT(*), COALESCE(SUM(accuracy), 0.0), COUNT(accuracy),
			MIN(timestamp_ms), MAX(timestamp_ms)
		FROM locations WHERE ` + where + `
		GROUP BY source`

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query location stats", err)
	}
	defer closeWithLog(rows, "stats rows")

	stats := &models.LocationStats{
		UserID:             userID,
		SourceDistribution: make(map[models.FixSource]int64),
	}
	var accuracySum float64
	var accuracyCount int64
	var first, last int64

	for rows.Next() {
		var (
			source           string
			count, accCount  int64
			accSum           float64
			minTime, maxTime int64
		)
		if err := rows.Scan(&source, &count, &accSum, &accCount, &minTime, &maxTime); err != nil {
			return nil, storeErr("scan location stats", err)
		}
		if stats.TotalLocations == 0 || minTime < first {
			first = minTime
		}
		if stats.TotalLocations == 0 || maxTime > last {
			last = maxTime
		}
		stats.SourceDistribution[models.FixSource(source)] = count
		stats.TotalLocations += count
		accuracySum += accSum
		accuracyCount += accCount
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate location stats", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr("commit stats transaction", err)
	}

	if accuracyCount > 0 {
		stats.AvgAccuracy = accuracySum / float64(accuracyCount)
	}
	if stats.TotalLocations > 0 {
		f, l := fromMillis(first), fromMillis(last)
		stats.FirstLocation = &f
		stats.LastLocation = &l
	}
	return stats, nil
}

// CountLocations returns how many fixes a user has, or all users when
// userID is empty.
func (db *DB) CountLocations(ctx context.Context, userID string) (int64, error) {
	var n int64
	var err error
	if userID == "" {
		err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n)
	} else {
		err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations WHERE user_id = ?`, userID).Scan(&n)
	}
	return n, storeErr("count locations", err)
}

func (db *DB) queryFixes(ctx context.Context, query string, args ...interface{}) ([]models.LocationFix, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeWithLog(rows, "location rows")

	fixes := make([]models.LocationFix, 0)
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, *fix)
	}
	return fixes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFix(row rowScanner) (*models.LocationFix, error) {
	var (
		fix                                models.LocationFix
		accuracy, altitude, speed, heading sql.NullFloat64
		battery                            sql.NullInt64
		metadata                           sql.NullString
		source, syncStatus                 string
		timestampMS, createdMS             int64
	)
	err := row.Scan(&fix.ID, &fix.UserID, &fix.Latitude, &fix.Longitude,
		&accuracy, &altitude, &speed, &heading,
		&timestampMS, &battery, &source, &fix.IsManual, &metadata, &syncStatus, &createdMS)
	if err != nil {
		return nil, fmt.Errorf("failed to scan location: %w", err)
	}

	fix.Accuracy = floatPtr(accuracy)
	fix.Altitude = floatPtr(altitude)
	fix.Speed = floatPtr(speed)
	fix.Heading = floatPtr(heading)
	if battery.Valid {
		b := int(battery.Int64)
		fix.BatteryLevel = &b
	}
	fix.Source = models.FixSource(source)
	fix.SyncStatus = models.SyncStatus(syncStatus)
	fix.Timestamp = fromMillis(timestampMS)
	fix.CreatedAt = fromMillis(createdMS)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &fix.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for location %s: %w", fix.ID, err)
		}
	}
	return &fix, nil
}

func fixArgs(fix *models.LocationFix) ([]interface{}, error) {
	var metadata interface{}
	if len(fix.Metadata) > 0 {
		raw, err := json.Marshal(fix.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(raw)
	}
	var battery interface{}
	if fix.BatteryLevel != nil {
		battery = int64(*fix.BatteryLevel)
	}
	return []interface{}{
		fix.ID, fix.UserID, fix.Latitude, fix.Longitude,
		nullableFloat(fix.Accuracy), nullableFloat(fix.Altitude),
		nullableFloat(fix.Speed), nullableFloat(fix.Heading),
		fix.Timestamp.UnixMilli(), battery, string(fix.Source), fix.IsManual,
		metadata, string(fix.SyncStatus), fix.CreatedAt.UnixMilli(),
	}, nil
}

// placeholders renders "(?, ?), (?, ?)" for rows x cols parameters.
func placeholders(rows, cols int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", cols), ", ") + ")"
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}

func prefixColumns(alias string) string {
	cols := strings.Split(fixColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func nullableFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
