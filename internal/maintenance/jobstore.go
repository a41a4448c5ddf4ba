// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package maintenance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

const prefixJob = "job:"

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("job store is closed")

// JobStore persists maintenance job records in BadgerDB.
type JobStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// OpenJobStore opens (or creates) the store at path. An empty path keeps
// the history in memory for the lifetime of the process.
func OpenJobStore(path string) (*JobStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	logging.Info().
		Str("path", path).
		Bool("in_memory", path == "").
		Msg("Maintenance job store opened")
	return &JobStore{db: db}, nil
}

func jobKey(id string) []byte {
	return []byte(prefixJob + id)
}

// Save writes job, replacing any previous record with the same id.
func (s *JobStore) Save(job *models.MaintenanceJob) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job.ID), data)
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// Get returns the job with id or ErrJobNotFound.
func (s *JobStore) Get(id string) (*models.MaintenanceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var job models.MaintenanceJob
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// List returns up to limit jobs, newest first. limit <= 0 returns all.
func (s *JobStore) List(limit int) ([]models.MaintenanceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	jobs, err := s.all()
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *JobStore) all() ([]models.MaintenanceJob, error) {
	jobs := make([]models.MaintenanceJob, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixJob)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var job models.MaintenanceJob
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Failed to unmarshal job record")
				continue
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// MarkInterrupted fails every job still recorded as running. It runs at
// startup, when no job can actually be running.
func (s *JobStore) MarkInterrupted(now time.Time) (int, error) {
	jobs, err := s.List(0)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range jobs {
		if jobs[i].Status != models.JobRunning {
			continue
		}
		finished := now
		jobs[i].Status = models.JobFailed
		jobs[i].Error = "interrupted"
		jobs[i].FinishedAt = &finished
		if err := s.Save(&jobs[i]); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Prune deletes the oldest finished jobs beyond keep.
func (s *JobStore) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	jobs, err := s.List(0)
	if err != nil {
		return 0, err
	}
	if len(jobs) <= keep {
		return 0, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	removed := 0
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, job := range jobs[keep:] {
			if !job.Status.Terminal() {
				continue
			}
			if err := txn.Delete(jobKey(job.ID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return removed, nil
}

// Close closes the underlying database.
func (s *JobStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
