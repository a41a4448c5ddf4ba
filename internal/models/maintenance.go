// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package models

import "time"

// JobKind names a retention operation.
type JobKind string

const (
	JobCompress JobKind = "compress"
	JobPurge    JobKind = "purge"
)

// JobStatus is the lifecycle state of a maintenance job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCanceled  JobStatus = "canceled"
)

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s != JobRunning
}

// MaintenanceJob records one compress or purge run.
type MaintenanceJob struct {
	ID               string     `json:"id"`
	Kind             JobKind    `json:"kind"`
	Status           JobStatus  `json:"status"`
	Days             int        `json:"days"`
	CompressionRatio float64    `json:"compressionRatio,omitempty"`
	CutoffDate       time.Time  `json:"cutoffDate"`
	Affected         int64      `json:"affected"`
	Archived         string     `json:"archived,omitempty"`
	Error            string     `json:"error,omitempty"`
	RequestedBy      string     `json:"requestedBy"`
	StartedAt        time.Time  `json:"startedAt"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// CompressResult is the synchronous response of a compression run.
type CompressResult struct {
	Compressed       int64     `json:"compressed"`
	CutoffDate       time.Time `json:"cutoffDate"`
	CompressionRatio float64   `json:"compressionRatio"`
}

// PurgeResult is the synchronous response of a purge run.
type PurgeResult struct {
	DeletedCount int64     `json:"deletedCount"`
	CutoffDate   time.Time `json:"cutoffDate"`
}
