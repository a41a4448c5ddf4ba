// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldtrack/internal/models"
)

const syncOperationColumns = `id, operation_type, table_name, record_id, operation, data,
	status, retry_count, created_at_ms, updated_at_ms`

// InsertSyncOperation appends a ledger entry.
func (db *DB) InsertSyncOperation(ctx context.Context, op *models.SyncOperation) error {
	var data interface{}
	if len(op.Data) > 0 {
		data = string(op.Data)
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_operations (`+syncOperationColumns+`) VALUES `+placeholders(1, 10),
		op.ID, op.OperationType, op.TableName, op.RecordID, string(op.Operation), data,
		string(op.Status), op.RetryCount, op.CreatedAt.UnixMilli(), op.UpdatedAt.UnixMilli())
	return storeErr("insert sync operation", err)
}

// GetSyncOperation returns a ledger entry by id.
func (db *DB) GetSyncOperation(ctx context.Context, id string) (*models.SyncOperation, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+syncOperationColumns+` FROM sync_operations WHERE id = ?`, id)
	op, err := scanSyncOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("get sync operation", err)
	}
	return op, nil
}

// ListSyncOperations returns entries in the given status, oldest first.
func (db *DB) ListSyncOperations(ctx context.Context, status models.LedgerStatus, limit int) ([]models.SyncOperation, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_operations WHERE status = ?
		ORDER BY created_at_ms ASC, id ASC LIMIT %d`, syncOperationColumns, limit)
	rows, err := db.conn.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, storeErr("list sync operations", err)
	}
	defer closeWithLog(rows, "sync operation rows")

	ops := make([]models.SyncOperation, 0)
	for rows.Next() {
		op, err := scanSyncOperation(rows)
		if err != nil {
			return nil, storeErr("scan sync operation", err)
		}
		ops = append(ops, *op)
	}
	return ops, storeErr("iterate sync operations", rows.Err())
}

// CountSyncOperations returns the number of entries in status.
func (db *DB) CountSyncOperations(ctx context.Context, status models.LedgerStatus) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_operations WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, storeErr("count sync operations", err)
	}
	return n, nil
}

// RecordSyncFailure increments the retry count of a non-completed entry and
// marks it failed once the count reaches maxRetries.
func (db *DB) RecordSyncFailure(ctx context.Context, id string, maxRetries int, now time.Time) (*models.SyncOperation, error) {
	return db.transitionSyncOperation(ctx, id, `UPDATE sync_operations SET
			retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 >= ? THEN 'failed' ELSE 'pending' END,
			updated_at_ms = ?
		WHERE id = ? AND status <> 'completed'`,
		maxRetries, now.UnixMilli(), id)
}

// CompleteSyncOperation marks a non-completed entry completed.
func (db *DB) CompleteSyncOperation(ctx context.Context, id string, now time.Time) (*models.SyncOperation, error) {
	return db.transitionSyncOperation(ctx, id, `UPDATE sync_operations SET
			status = 'completed', updated_at_ms = ?
		WHERE id = ? AND status <> 'completed'`,
		now.UnixMilli(), id)
}

// transitionSyncOperation applies a guarded UPDATE. When it matches no row
// the entry is either missing or already completed.
func (db *DB) transitionSyncOperation(ctx context.Context, id, query string, args ...interface{}) (*models.SyncOperation, error) {
	var affected int64
	err := withRetry(ctx, func() error {
		res, err := db.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, storeErr("update sync operation", err)
	}

	op, err := db.GetSyncOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 && op.Status == models.LedgerCompleted {
		return op, ErrLedgerEntryImmutable
	}
	return op, nil
}

func scanSyncOperation(row rowScanner) (*models.SyncOperation, error) {
	var (
		op                   models.SyncOperation
		operation, status    string
		data                 sql.NullString
		createdMS, updatedMS int64
	)
	err := row.Scan(&op.ID, &op.OperationType, &op.TableName, &op.RecordID, &operation,
		&data, &status, &op.RetryCount, &createdMS, &updatedMS)
	if err != nil {
		return nil, err
	}
	op.Operation = models.LedgerOperation(operation)
	op.Status = models.LedgerStatus(status)
	if data.Valid {
		op.Data = []byte(data.String)
	}
	op.CreatedAt = fromMillis(createdMS)
	op.UpdatedAt = fromMillis(updatedMS)
	return &op, nil
}
