// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error"})
}

type memStore struct {
	mu      sync.Mutex
	fixes   []models.LocationFix
	failErr error
}

func (m *memStore) InsertFix(_ context.Context, fix *models.LocationFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.fixes = append(m.fixes, *fix)
	return nil
}

func (m *memStore) InsertFixes(_ context.Context, fixes []models.LocationFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.fixes = append(m.fixes, fixes...)
	return nil
}

type memPresence struct {
	touched map[string]time.Time
	calls   int
	err     error
}

func (p *memPresence) TouchLastSeen(_ context.Context, userID string, at time.Time) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	if p.touched == nil {
		p.touched = make(map[string]time.Time)
	}
	p.touched[userID] = at
	return nil
}

type recordingBroadcaster struct {
	published []models.LocationFix
}

func (b *recordingBroadcaster) Publish(fix models.LocationFix) {
	b.published = append(b.published, fix)
}

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func validInput(ts time.Time) models.FixInput {
	return models.FixInput{
		Latitude:     f64(39.9334),
		Longitude:    f64(32.8597),
		Accuracy:     f64(10),
		Timestamp:    &ts,
		BatteryLevel: intp(85),
		Source:       "gps",
	}
}

func newTestService() (*Service, *memStore, *memPresence, *recordingBroadcaster) {
	store := &memStore{}
	presence := &memPresence{}
	b := &recordingBroadcaster{}
	svc := NewService(store, presence, b, 100)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, presence, b
}

func TestStoreSingle(t *testing.T) {
	svc, store, presence, b := newTestService()
	ts := time.Date(2026, 5, 1, 11, 59, 0, 123_456_789, time.UTC)

	in := validInput(ts)
	in.Source = ""
	rec, err := svc.StoreSingle(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("StoreSingle() error = %v", err)
	}
	if rec.ID == "" || !rec.Timestamp.Equal(ts.Truncate(time.Millisecond)) {
		t.Errorf("record = %+v", rec)
	}
	if len(store.fixes) != 1 {
		t.Fatalf("stored %d fixes, want 1", len(store.fixes))
	}
	fix := store.fixes[0]
	if fix.Source != models.SourceGPS || fix.IsManual || fix.SyncStatus != models.SyncSynced || fix.UserID != "user-1" {
		t.Errorf("stored fix defaults = %+v", fix)
	}
	if presence.calls != 1 {
		t.Errorf("presence touched %d times, want 1", presence.calls)
	}
	if len(b.published) != 1 || b.published[0].ID != rec.ID {
		t.Errorf("published = %+v", b.published)
	}
}

func TestStoreSingleValidation(t *testing.T) {
	ts := time.Now()
	tests := []struct {
		name      string
		mutate    func(in *models.FixInput)
		wantField string
	}{
		{"missing latitude", func(in *models.FixInput) { in.Latitude = nil }, "latitude"},
		{"missing longitude", func(in *models.FixInput) { in.Longitude = nil }, "longitude"},
		{"missing timestamp", func(in *models.FixInput) { in.Timestamp = nil }, "timestamp"},
		{"latitude above 90", func(in *models.FixInput) { in.Latitude = f64(90.0001) }, "latitude"},
		{"longitude below -180", func(in *models.FixInput) { in.Longitude = f64(-181) }, "longitude"},
		{"negative accuracy", func(in *models.FixInput) { in.Accuracy = f64(-1) }, "accuracy"},
		{"negative speed", func(in *models.FixInput) { in.Speed = f64(-0.5) }, "speed"},
		{"heading 360", func(in *models.FixInput) { in.Heading = f64(360) }, "heading"},
		{"battery 101", func(in *models.FixInput) { in.BatteryLevel = intp(101) }, "batteryLevel"},
		{"battery -1", func(in *models.FixInput) { in.BatteryLevel = intp(-1) }, "batteryLevel"},
		{"unknown source", func(in *models.FixInput) { in.Source = "wifi" }, "source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, presence, b := newTestService()
			in := validInput(ts)
			tt.mutate(&in)

			_, err := svc.StoreSingle(context.Background(), "user-1", in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("StoreSingle() error = %v, want ValidationError", err)
			}
			if verr.Items[0].Field != tt.wantField || verr.Items[0].Index != nil {
				t.Errorf("item = %+v, want field %s without index", verr.Items[0], tt.wantField)
			}
			if len(store.fixes) != 0 || presence.calls != 0 || len(b.published) != 0 {
				t.Error("rejected fix had side effects")
			}
		})
	}
}

func TestStoreSingleBoundaryValuesAccepted(t *testing.T) {
	svc, store, _, _ := newTestService()
	ts := time.Now()
	in := validInput(ts)
	in.Latitude = f64(-90)
	in.Longitude = f64(180)
	in.Heading = f64(359.99)
	in.BatteryLevel = intp(0)
	if _, err := svc.StoreSingle(context.Background(), "user-1", in); err != nil {
		t.Fatalf("StoreSingle() error = %v", err)
	}
	if len(store.fixes) != 1 {
		t.Errorf("stored %d fixes, want 1", len(store.fixes))
	}
}

func TestStoreBatch(t *testing.T) {
	svc, store, presence, b := newTestService()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	inputs := make([]models.FixInput, 5)
	for i := range inputs {
		inputs[i] = validInput(base.Add(time.Duration(i) * time.Minute))
	}
	res, err := svc.StoreBatch(context.Background(), "user-1", inputs)
	if err != nil {
		t.Fatalf("StoreBatch() error = %v", err)
	}
	if res.Count != 5 || len(res.Locations) != 5 || len(store.fixes) != 5 {
		t.Fatalf("count = %d, records = %d, stored = %d", res.Count, len(res.Locations), len(store.fixes))
	}
	if presence.calls != 1 {
		t.Errorf("presence touched %d times, want 1", presence.calls)
	}
	for i := range b.published {
		if b.published[i].ID != res.Locations[i].ID {
			t.Fatalf("publish order differs from input order at %d", i)
		}
	}
}

func TestStoreBatchRejectsWhole(t *testing.T) {
	svc, store, presence, b := newTestService()
	ts := time.Now()

	inputs := make([]models.FixInput, 5)
	for i := range inputs {
		inputs[i] = validInput(ts)
	}
	inputs[2].Latitude = f64(95)
	inputs[4].BatteryLevel = intp(150)

	_, err := svc.StoreBatch(context.Background(), "user-1", inputs)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("StoreBatch() error = %v, want ValidationError", err)
	}
	got := verr.Indexes()
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("Indexes() = %v, want [2 4]", got)
	}
	if verr.Items[0].Field != "latitude" {
		t.Errorf("first item field = %s, want latitude", verr.Items[0].Field)
	}
	if len(store.fixes) != 0 || presence.calls != 0 || len(b.published) != 0 {
		t.Error("rejected batch had side effects")
	}
}

func TestStoreBatchSize(t *testing.T) {
	svc, _, _, _ := newTestService()
	svc.batchMax = 3
	ts := time.Now()

	tests := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"over limit", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := make([]models.FixInput, tt.n)
			for i := range inputs {
				inputs[i] = validInput(ts)
			}
			_, err := svc.StoreBatch(context.Background(), "user-1", inputs)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Items[0].Field != "locations" {
				t.Errorf("StoreBatch(%d) error = %v", tt.n, err)
			}
		})
	}
}

func TestStoreFailureSkipsPublish(t *testing.T) {
	svc, store, presence, b := newTestService()
	store.failErr = errors.New("disk full")

	_, err := svc.StoreSingle(context.Background(), "user-1", validInput(time.Now()))
	if !errors.Is(err, store.failErr) {
		t.Fatalf("StoreSingle() error = %v, want wrapped store error", err)
	}
	if presence.calls != 0 || len(b.published) != 0 {
		t.Error("failed write was published")
	}
}

func TestPresenceFailureDoesNotFailIngest(t *testing.T) {
	svc, store, presence, b := newTestService()
	presence.err = errors.New("locked")

	if _, err := svc.StoreSingle(context.Background(), "user-1", validInput(time.Now())); err != nil {
		t.Fatalf("StoreSingle() error = %v", err)
	}
	if len(store.fixes) != 1 || len(b.published) != 1 {
		t.Error("fix not stored and published after presence failure")
	}
}

func TestMissingUser(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.StoreSingle(context.Background(), "", validInput(time.Now()))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Items[0].Field != "userId" {
		t.Errorf("StoreSingle() error = %v", err)
	}
}
