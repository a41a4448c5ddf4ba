// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package archive copies fixes that are about to be purged to S3-compatible
// object storage as newline-delimited JSON.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// ObjectStore is the subset of *minio.Client used for archiving.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// FixSource streams aged fixes.
type FixSource interface {
	ForEachFixBefore(ctx context.Context, cutoff time.Time, fn func(*models.LocationFix) error) error
}

// Archiver writes purge archives.
type Archiver struct {
	store  ObjectStore
	source FixSource
	bucket string
	prefix string
}

// New connects to the configured endpoint.
func New(cfg *config.ArchiveConfig, source FixSource) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage client: %w", err)
	}
	return NewWithStore(client, source, cfg.Bucket, cfg.Prefix), nil
}

// NewWithStore builds an archiver over an existing object store.
func NewWithStore(store ObjectStore, source FixSource, bucket, prefix string) *Archiver {
	return &Archiver{store: store, source: source, bucket: bucket, prefix: prefix}
}

// EnsureBucket creates the archive bucket if it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.store.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.store.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	logging.Info().Str("bucket", a.bucket).Msg("Created archive bucket")
	return nil
}

// ObjectKey names the archive of a purge at cutoff for job name.
func (a *Archiver) ObjectKey(cutoff time.Time, name string) string {
	file := fmt.Sprintf("purge-%s-%s.ndjson", cutoff.UTC().Format("20060102T150405Z"), name)
	if a.prefix == "" {
		return file
	}
	return path.Join(a.prefix, file)
}

// ArchiveBefore uploads every fix older than cutoff and returns the
// bucket/key it was written to. The upload streams, so the archive is never
// held in memory.
func (a *Archiver) ArchiveBefore(ctx context.Context, cutoff time.Time, name string) (string, error) {
	key := a.ObjectKey(cutoff, name)
	pr, pw := io.Pipe()

	var rows int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(pw)
		err := a.source.ForEachFixBefore(ctx, cutoff, func(fix *models.LocationFix) error {
			rows++
			return enc.Encode(fix)
		})
		pw.CloseWithError(err)
	}()

	_, err := a.store.PutObject(ctx, a.bucket, key, pr, -1, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
		UserMetadata: map[string]string{
			"cutoff": cutoff.UTC().Format(time.RFC3339),
		},
	})
	// Unblock the producer if the upload stopped reading early.
	_ = pr.CloseWithError(io.ErrClosedPipe)
	<-done
	if err != nil {
		return "", fmt.Errorf("upload archive %s: %w", key, err)
	}

	logging.Info().
		Str("bucket", a.bucket).
		Str("object", key).
		Int64("rows", rows).
		Msg("Archived fixes before purge")
	return a.bucket + "/" + key, nil
}
