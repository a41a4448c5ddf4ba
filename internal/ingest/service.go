// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package ingest validates and persists location fixes reported by mobile
// clients, then hands each stored fix to the live broadcaster.
//
// Persistence always happens before publication, and a batch is all or
// nothing: every item is validated before any row is written, and the rows
// are written in one transaction.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/metrics"
	"github.com/tomtom215/fieldtrack/internal/models"
	"github.com/tomtom215/fieldtrack/internal/validation"
)

// DefaultBatchMax is the largest accepted batch.
const DefaultBatchMax = 100

// FixStore persists fixes.
type FixStore interface {
	InsertFix(ctx context.Context, fix *models.LocationFix) error
	InsertFixes(ctx context.Context, fixes []models.LocationFix) error
}

// PresenceTracker records when a user last reported a fix.
type PresenceTracker interface {
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

// Broadcaster fans a persisted fix out to live viewers. Publish must not
// block the caller.
type Broadcaster interface {
	Publish(fix models.LocationFix)
}

// Service is the ingestion entry point.
type Service struct {
	store       FixStore
	presence    PresenceTracker
	broadcaster Broadcaster
	batchMax    int
	now         func() time.Time
}

// NewService wires the ingestion service. presence may be nil.
func NewService(store FixStore, presence PresenceTracker, broadcaster Broadcaster, batchMax int) *Service {
	if batchMax <= 0 {
		batchMax = DefaultBatchMax
	}
	return &Service{
		store:       store,
		presence:    presence,
		broadcaster: broadcaster,
		batchMax:    batchMax,
		now:         time.Now,
	}
}

// BatchMax returns the largest accepted batch.
func (s *Service) BatchMax() int {
	return s.batchMax
}

// StoreSingle validates and persists one fix.
func (s *Service) StoreSingle(ctx context.Context, userID string, in models.FixInput) (*models.FixRecord, error) {
	if userID == "" {
		return nil, missingUser()
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		metrics.RecordIngestValidationFailure("single")
		return nil, &ValidationError{Items: itemErrors(nil, verr)}
	}

	now := s.now().UTC()
	fix := buildFix(userID, &in, now)

	if err := s.store.InsertFix(ctx, &fix); err != nil {
		return nil, fmt.Errorf("store location: %w", err)
	}
	metrics.RecordIngest("single", 1)

	s.touch(ctx, userID, now)
	s.broadcaster.Publish(fix)

	return &models.FixRecord{ID: fix.ID, Timestamp: fix.Timestamp}, nil
}

// StoreBatch validates every item and, only if all pass, persists them in
// one transaction. Fixes are published in input order.
func (s *Service) StoreBatch(ctx context.Context, userID string, inputs []models.FixInput) (*models.BatchResult, error) {
	if userID == "" {
		return nil, missingUser()
	}
	if len(inputs) == 0 || len(inputs) > s.batchMax {
		metrics.RecordIngestValidationFailure("batch")
		return nil, &ValidationError{Items: []ItemError{{
			Field:  "locations",
			Tag:    "len",
			Reason: fmt.Sprintf("locations must contain between 1 and %d items", s.batchMax),
		}}}
	}

	var items []ItemError
	for i := range inputs {
		if verr := validation.ValidateStruct(&inputs[i]); verr != nil {
			index := i
			items = append(items, itemErrors(&index, verr)...)
		}
	}
	if len(items) > 0 {
		metrics.RecordIngestValidationFailure("batch")
		return nil, &ValidationError{Items: items}
	}

	now := s.now().UTC()
	fixes := make([]models.LocationFix, len(inputs))
	for i := range inputs {
		fixes[i] = buildFix(userID, &inputs[i], now)
	}

	if err := s.store.InsertFixes(ctx, fixes); err != nil {
		return nil, fmt.Errorf("store location batch: %w", err)
	}
	metrics.RecordIngest("batch", len(fixes))

	s.touch(ctx, userID, now)

	result := &models.BatchResult{
		Count:     len(fixes),
		Locations: make([]models.FixRecord, len(fixes)),
	}
	for i := range fixes {
		s.broadcaster.Publish(fixes[i])
		result.Locations[i] = models.FixRecord{ID: fixes[i].ID, Timestamp: fixes[i].Timestamp}
	}
	return result, nil
}

// touch updates last-seen. The fix is already durable, so a failure is
// only logged.
func (s *Service) touch(ctx context.Context, userID string, at time.Time) {
	if s.presence == nil {
		return
	}
	if err := s.presence.TouchLastSeen(ctx, userID, at); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to update last seen")
	}
}

func buildFix(userID string, in *models.FixInput, now time.Time) models.LocationFix {
	source := models.SourceGPS
	if in.Source != "" {
		source = models.FixSource(in.Source)
	}
	return models.LocationFix{
		ID:           uuid.New().String(),
		UserID:       userID,
		Latitude:     *in.Latitude,
		Longitude:    *in.Longitude,
		Accuracy:     in.Accuracy,
		Altitude:     in.Altitude,
		Speed:        in.Speed,
		Heading:      in.Heading,
		Timestamp:    in.Timestamp.UTC().Truncate(time.Millisecond),
		BatteryLevel: in.BatteryLevel,
		Source:       source,
		IsManual:     false,
		Metadata:     in.Metadata,
		SyncStatus:   models.SyncSynced,
		CreatedAt:    now.Truncate(time.Millisecond),
	}
}

func missingUser() error {
	return &ValidationError{Items: []ItemError{{Field: "userId", Tag: "required", Reason: "userId is required"}}}
}
