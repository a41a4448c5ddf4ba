// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package ledger records mutations made by offline clients until they are
// reconciled. Entries are append-only: the retry count only grows, an entry
// becomes failed once it reaches the retry cap, and a completed entry never
// changes again.
package ledger

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/fieldtrack/internal/database"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
	"github.com/tomtom215/fieldtrack/internal/validation"
)

// DefaultMaxRetries applies when the configured cap is not positive.
const DefaultMaxRetries = 5

// ErrImmutable is returned for any transition on a completed entry.
var ErrImmutable = database.ErrLedgerEntryImmutable

// Store is the slice of the database the ledger uses.
type Store interface {
	InsertSyncOperation(ctx context.Context, op *models.SyncOperation) error
	GetSyncOperation(ctx context.Context, id string) (*models.SyncOperation, error)
	ListSyncOperations(ctx context.Context, status models.LedgerStatus, limit int) ([]models.SyncOperation, error)
	CountSyncOperations(ctx context.Context, status models.LedgerStatus) (int64, error)
	RecordSyncFailure(ctx context.Context, id string, maxRetries int, now time.Time) (*models.SyncOperation, error)
	CompleteSyncOperation(ctx context.Context, id string, now time.Time) (*models.SyncOperation, error)
}

// Entry is a new mutation to record.
type Entry struct {
	OperationType string                 `json:"operationType" validate:"required,max=64"`
	TableName     string                 `json:"tableName" validate:"required,max=64"`
	RecordID      string                 `json:"recordId" validate:"required,max=128"`
	Operation     models.LedgerOperation `json:"operation" validate:"required,oneof=insert update delete"`
	Data          json.RawMessage        `json:"data"`
}

// Backlog counts entries still waiting on a reconciler.
type Backlog struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
}

// Service enforces the ledger lifecycle on top of the store.
type Service struct {
	store      Store
	maxRetries int
	now        func() time.Time
}

// NewService creates a ledger service.
func NewService(store Store, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Service{store: store, maxRetries: maxRetries, now: time.Now}
}

// MaxRetries returns the failed-attempt cap.
func (s *Service) MaxRetries() int {
	return s.maxRetries
}

// Enqueue validates and appends a pending entry.
func (s *Service) Enqueue(ctx context.Context, e Entry) (*models.SyncOperation, error) {
	if verr := validation.ValidateStruct(e); verr != nil {
		return nil, verr
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return nil, validation.NewRequestValidationError(validation.FieldError{
			Field: "data", Tag: "json", Message: "data must be valid JSON",
		})
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	op := &models.SyncOperation{
		ID:            uuid.New().String(),
		OperationType: e.OperationType,
		TableName:     e.TableName,
		RecordID:      e.RecordID,
		Operation:     e.Operation,
		Data:          e.Data,
		Status:        models.LedgerPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertSyncOperation(ctx, op); err != nil {
		return nil, err
	}
	logging.Debug().Str("id", op.ID).Str("record_id", op.RecordID).Msg("Ledger entry enqueued")
	return op, nil
}

// Get returns one entry or database.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.SyncOperation, error) {
	return s.store.GetSyncOperation(ctx, id)
}

// ListByStatus returns up to limit entries in status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status models.LedgerStatus, limit int) ([]models.SyncOperation, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.ListSyncOperations(ctx, status, limit)
}

// MarkFailedAttempt counts one failed apply. The entry turns failed when
// the count reaches the cap.
func (s *Service) MarkFailedAttempt(ctx context.Context, id string) (*models.SyncOperation, error) {
	op, err := s.store.RecordSyncFailure(ctx, id, s.maxRetries, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if op.Status == models.LedgerFailed {
		logging.Warn().
			Str("id", op.ID).
			Str("record_id", op.RecordID).
			Int("retry_count", op.RetryCount).
			Msg("Ledger entry reached retry cap")
	}
	return op, nil
}

// MarkCompleted marks an entry applied.
func (s *Service) MarkCompleted(ctx context.Context, id string) (*models.SyncOperation, error) {
	return s.store.CompleteSyncOperation(ctx, id, s.now().UTC())
}

// Backlog reports how many entries are pending and how many gave up.
func (s *Service) Backlog(ctx context.Context) (Backlog, error) {
	var b Backlog
	var err error
	if b.Pending, err = s.store.CountSyncOperations(ctx, models.LedgerPending); err != nil {
		return Backlog{}, err
	}
	if b.Failed, err = s.store.CountSyncOperations(ctx, models.LedgerFailed); err != nil {
		return Backlog{}, err
	}
	return b, nil
}
