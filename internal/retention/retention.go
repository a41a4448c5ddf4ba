// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package retention thins and purges aged location history.
//
// Compress downsamples each user's fixes older than a cutoff to a target
// density; Purge hard-deletes them. Both work one user at a time, each user
// in its own transaction, and stop between users when the context ends.
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// Accepted parameter ranges.
const (
	MinDays  = 1
	MaxDays  = 365
	MinRatio = 0.1
	MaxRatio = 1.0
)

var (
	// ErrInvalidParameter is returned for days or ratio outside the accepted range.
	ErrInvalidParameter = errors.New("invalid retention parameter")

	// ErrArchive wraps a failed archive upload; nothing was purged.
	ErrArchive = errors.New("archive before purge failed")
)

// Store is the slice of the fix store that retention needs.
type Store interface {
	AgedUsers(ctx context.Context, cutoff time.Time) ([]string, error)
	AgedFixIDs(ctx context.Context, userID string, cutoff time.Time) ([]string, error)
	DeleteFixes(ctx context.Context, ids []string) (int64, error)
	DeleteUserFixesBefore(ctx context.Context, userID string, cutoff time.Time) (int64, error)
}

// Archiver copies the fixes a purge is about to delete somewhere durable
// and returns where they went.
type Archiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time, name string) (string, error)
}

// Progress receives the running number of deleted rows.
type Progress func(affected int64)

// Service runs compress and purge against a store.
type Service struct {
	store    Store
	archiver Archiver
	now      func() time.Time
}

// NewService creates a retention service. archiver may be nil.
func NewService(store Store, archiver Archiver) *Service {
	return &Service{store: store, archiver: archiver, now: time.Now}
}

// Cutoff returns now minus days.
func (s *Service) Cutoff(days int) time.Time {
	return s.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
}

// ValidateDays checks the age parameter.
func ValidateDays(days int) error {
	if days < MinDays || days > MaxDays {
		return fmt.Errorf("%w: days must be between %d and %d", ErrInvalidParameter, MinDays, MaxDays)
	}
	return nil
}

// ValidateRatio checks the keep ratio.
func ValidateRatio(ratio float64) error {
	if !(ratio >= MinRatio && ratio <= MaxRatio) {
		return fmt.Errorf("%w: compressionRatio must be between %.1f and %.1f", ErrInvalidParameter, MinRatio, MaxRatio)
	}
	return nil
}

// Compress keeps every stride-th aged fix per user and deletes the rest.
// Fixes at or after the cutoff are never touched. On cancellation the rows
// already deleted stay deleted and the partial count is returned with the
// context error.
func (s *Service) Compress(ctx context.Context, cutoff time.Time, ratio float64, progress Progress) (int64, error) {
	if err := ValidateRatio(ratio); err != nil {
		return 0, err
	}

	users, err := s.store.AgedUsers(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list aged users: %w", err)
	}

	var total int64
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		ids, err := s.store.AgedFixIDs(ctx, userID, cutoff)
		if err != nil {
			return total, fmt.Errorf("list aged fixes for %s: %w", userID, err)
		}
		_, drop := SplitByStride(ids, ratio)
		if len(drop) == 0 {
			continue
		}

		deleted, err := s.store.DeleteFixes(ctx, drop)
		if err != nil {
			return total, fmt.Errorf("compress fixes for %s: %w", userID, err)
		}
		total += deleted
		if progress != nil {
			progress(total)
		}
		logging.Debug().
			Str("user_id", userID).
			Int("aged", len(ids)).
			Int64("deleted", deleted).
			Msg("Compressed user history")
	}
	return total, nil
}

// Purge hard-deletes every fix older than cutoff. When an archiver is
// configured the rows are archived first and an archive failure aborts the
// purge before anything is deleted.
func (s *Service) Purge(ctx context.Context, cutoff time.Time, archiveName string, progress Progress) (int64, string, error) {
	var location string
	if s.archiver != nil {
		loc, err := s.archiver.ArchiveBefore(ctx, cutoff, archiveName)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %w", ErrArchive, err)
		}
		location = loc
	}

	users, err := s.store.AgedUsers(ctx, cutoff)
	if err != nil {
		return 0, location, fmt.Errorf("list aged users: %w", err)
	}

	var total int64
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return total, location, err
		}
		deleted, err := s.store.DeleteUserFixesBefore(ctx, userID, cutoff)
		if err != nil {
			return total, location, fmt.Errorf("purge fixes for %s: %w", userID, err)
		}
		total += deleted
		if progress != nil {
			progress(total)
		}
	}
	return total, location, nil
}

// CompressResult builds the API result for a finished compression.
func CompressResult(affected int64, cutoff time.Time, ratio float64) *models.CompressResult {
	return &models.CompressResult{Compressed: affected, CutoffDate: cutoff, CompressionRatio: ratio}
}

// PurgeResult builds the API result for a finished purge.
func PurgeResult(affected int64, cutoff time.Time) *models.PurgeResult {
	return &models.PurgeResult{DeletedCount: affected, CutoffDate: cutoff}
}
