// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/fieldtrack/internal/models"
)

func TestInsertFixRoundTrip(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		ts := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
		fix := newFix("user-1", ts)
		fix.Metadata = map[string]interface{}{"note": "depot"}

		if err := db.InsertFix(ctx, &fix); err != nil {
			t.Fatalf("InsertFix() error = %v", err)
		}

		page, err := db.LocationHistory(ctx, models.HistoryFilter{UserID: "user-1", Limit: 100})
		if err != nil {
			t.Fatalf("LocationHistory() error = %v", err)
		}
		if page.Total != 1 || len(page.Locations) != 1 {
			t.Fatalf("got total=%d len=%d, want 1", page.Total, len(page.Locations))
		}
		got := page.Locations[0]
		if got.ID != fix.ID || got.Latitude != 39.9334 || got.Longitude != 32.8597 {
			t.Errorf("coordinates = %+v", got)
		}
		if got.Accuracy == nil || *got.Accuracy != 10 {
			t.Errorf("Accuracy = %v, want 10", got.Accuracy)
		}
		if got.BatteryLevel == nil || *got.BatteryLevel != 85 {
			t.Errorf("BatteryLevel = %v, want 85", got.BatteryLevel)
		}
		if !got.Timestamp.Equal(ts) {
			t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
		}
		if got.Source != models.SourceGPS || got.SyncStatus != models.SyncSynced || got.IsManual {
			t.Errorf("flags = source:%s sync:%s manual:%v", got.Source, got.SyncStatus, got.IsManual)
		}
		if got.Altitude != nil || got.Speed != nil || got.Heading != nil {
			t.Errorf("absent measurements came back non-nil: %+v", got)
		}
		if got.Metadata["note"] != "depot" {
			t.Errorf("Metadata = %v", got.Metadata)
		}
	})
}

func TestInsertFixRejectsOutOfBounds(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		fix := newFix("user-1", time.Now())
		fix.Latitude = 91

		err := db.InsertFix(ctx, &fix)
		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			t.Fatalf("InsertFix() error = %v, want StoreError", err)
		}
		if n, _ := db.CountLocations(ctx, ""); n != 0 {
			t.Errorf("CountLocations() = %d, want 0", n)
		}
	})
}

func TestInsertFixesIsAtomic(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)

		fixes := make([]models.LocationFix, 0, 120)
		for i := 0; i < 120; i++ {
			fixes = append(fixes, newFix("user-1", base.Add(time.Duration(i)*time.Second)))
		}
		if err := db.InsertFixes(ctx, fixes); err != nil {
			t.Fatalf("InsertFixes() error = %v", err)
		}
		if n, _ := db.CountLocations(ctx, "user-1"); n != 120 {
			t.Fatalf("CountLocations() = %d, want 120", n)
		}

		// A duplicate id in the last chunk must roll back the earlier chunks.
		failing := make([]models.LocationFix, 0, 60)
		for i := 0; i < 59; i++ {
			failing = append(failing, newFix("user-2", base))
		}
		failing = append(failing, fixes[0])
		if err := db.InsertFixes(ctx, failing); err == nil {
			t.Fatal("InsertFixes() with duplicate id succeeded")
		}
		if n, _ := db.CountLocations(ctx, "user-2"); n != 0 {
			t.Errorf("CountLocations(user-2) = %d, want 0", n)
		}
	})
}

func TestLocationHistoryOrderingAndFilters(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

		var fixes []models.LocationFix
		for i := 0; i < 10; i++ {
			f := newFix("user-1", base.Add(time.Duration(i)*time.Hour))
			if i%2 == 1 {
				f.Source = models.SourceNetwork
			}
			fixes = append(fixes, f)
		}
		fixes = append(fixes, newFix("user-2", base))
		if err := db.InsertFixes(ctx, fixes); err != nil {
			t.Fatalf("InsertFixes() error = %v", err)
		}

		start := base.Add(2 * time.Hour)
		end := base.Add(7 * time.Hour)
		tests := []struct {
			name      string
			filter    models.HistoryFilter
			wantTotal int64
			wantLen   int
			wantFirst time.Time
		}{
			{"all", models.HistoryFilter{UserID: "user-1", Limit: 100}, 10, 10, base.Add(9 * time.Hour)},
			{"paged", models.HistoryFilter{UserID: "user-1", Limit: 3, Offset: 3}, 10, 3, base.Add(6 * time.Hour)},
			{"window", models.HistoryFilter{UserID: "user-1", StartDate: &start, EndDate: &end, Limit: 100}, 6, 6, end},
			{"source", models.HistoryFilter{UserID: "user-1", Source: models.SourceNetwork, Limit: 100}, 5, 5, base.Add(9 * time.Hour)},
			{"unknown user", models.HistoryFilter{UserID: "nobody", Limit: 100}, 0, 0, time.Time{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				page, err := db.LocationHistory(ctx, tt.filter)
				if err != nil {
					t.Fatalf("LocationHistory() error = %v", err)
				}
				if page.Total != tt.wantTotal || len(page.Locations) != tt.wantLen {
					t.Fatalf("total=%d len=%d, want %d/%d", page.Total, len(page.Locations), tt.wantTotal, tt.wantLen)
				}
				if tt.wantLen == 0 {
					return
				}
				if !page.Locations[0].Timestamp.Equal(tt.wantFirst) {
					t.Errorf("first = %v, want %v", page.Locations[0].Timestamp, tt.wantFirst)
				}
				for i := 1; i < len(page.Locations); i++ {
					if page.Locations[i].Timestamp.After(page.Locations[i-1].Timestamp) {
						t.Fatalf("history not in descending order at %d", i)
					}
				}
			})
		}
	})
}

func TestCurrentLocations(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		now := time.Now().UTC()

		older := newFix("user-1", now.Add(-2*time.Hour))
		latest := newFix("user-1", now.Add(-time.Hour))
		stale := newFix("user-2", now.Add(-72*time.Hour))
		if err := db.InsertFixes(ctx, []models.LocationFix{older, latest, stale}); err != nil {
			t.Fatalf("InsertFixes() error = %v", err)
		}
		if err := db.TouchLastSeen(ctx, "user-1", now); err != nil {
			t.Fatalf("TouchLastSeen() error = %v", err)
		}
		if err := db.TouchLastSeen(ctx, "user-2", now.Add(-72*time.Hour)); err != nil {
			t.Fatalf("TouchLastSeen() error = %v", err)
		}

		got, err := db.CurrentLocations(ctx, now.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("CurrentLocations() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != latest.ID {
			t.Fatalf("CurrentLocations() = %+v, want only %s", got, latest.ID)
		}
	})
}

func TestLocationStats(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

		accuracies := []*float64{floatP(5), floatP(10), nil, floatP(30)}
		sources := []models.FixSource{models.SourceGPS, models.SourceGPS, models.SourceNetwork, models.SourcePassive}
		var fixes []models.LocationFix
		for i := range accuracies {
			f := newFix("user-1", base.Add(time.Duration(i)*time.Minute))
			f.Accuracy = accuracies[i]
			f.Source = sources[i]
			fixes = append(fixes, f)
		}
		if err := db.InsertFixes(ctx, fixes); err != nil {
			t.Fatalf("InsertFixes() error = %v", err)
		}

		stats, err := db.LocationStats(ctx, "user-1", nil, nil)
		if err != nil {
			t.Fatalf("LocationStats() error = %v", err)
		}
		if stats.TotalLocations != 4 {
			t.Errorf("TotalLocations = %d, want 4", stats.TotalLocations)
		}
		var sum int64
		for _, n := range stats.SourceDistribution {
			sum += n
		}
		if sum != stats.TotalLocations {
			t.Errorf("distribution sums to %d, want %d", sum, stats.TotalLocations)
		}
		if stats.SourceDistribution[models.SourceGPS] != 2 {
			t.Errorf("gps count = %d, want 2", stats.SourceDistribution[models.SourceGPS])
		}
		if math.Abs(stats.AvgAccuracy-15) > 1e-9 {
			t.Errorf("AvgAccuracy = %v, want 15", stats.AvgAccuracy)
		}
		if stats.FirstLocation == nil || !stats.FirstLocation.Equal(base) {
			t.Errorf("FirstLocation = %v, want %v", stats.FirstLocation, base)
		}
		if stats.LastLocation == nil || !stats.LastLocation.Equal(base.Add(3*time.Minute)) {
			t.Errorf("LastLocation = %v", stats.LastLocation)
		}

		start := base.Add(time.Hour)
		empty, err := db.LocationStats(ctx, "user-1", &start, nil)
		if err != nil {
			t.Fatalf("LocationStats() error = %v", err)
		}
		if empty.TotalLocations != 0 || empty.AvgAccuracy != 0 || empty.FirstLocation != nil || empty.LastLocation != nil {
			t.Errorf("empty window stats = %+v", empty)
		}
		if len(empty.SourceDistribution) != 0 {
			t.Errorf("empty distribution = %v", empty.SourceDistribution)
		}
	})
}

func TestTouchLastSeenNeverMovesBackwards(t *testing.T) {
	forEachDriver(t, func(t *testing.T, db *DB) {
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Millisecond)

		if _, err := db.LastSeen(ctx, "user-1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("LastSeen() error = %v, want ErrNotFound", err)
		}
		if err := db.TouchLastSeen(ctx, "user-1", now); err != nil {
			t.Fatalf("TouchLastSeen() error = %v", err)
		}
		if err := db.TouchLastSeen(ctx, "user-1", now.Add(-time.Hour)); err != nil {
			t.Fatalf("TouchLastSeen() error = %v", err)
		}
		got, err := db.LastSeen(ctx, "user-1")
		if err != nil {
			t.Fatalf("LastSeen() error = %v", err)
		}
		if !got.Equal(now) {
			t.Errorf("LastSeen() = %v, want %v", got, now)
		}
	})
}
