// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// LedgerOperation is the kind of mutation recorded by an offline client.
type LedgerOperation string

const (
	OpInsert LedgerOperation = "insert"
	OpUpdate LedgerOperation = "update"
	OpDelete LedgerOperation = "delete"
)

// LedgerStatus is the reconciliation state of a ledger entry.
type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerCompleted LedgerStatus = "completed"
	LedgerFailed    LedgerStatus = "failed"
)

// SyncOperation is one pending mutation awaiting reconciliation. RetryCount
// never decreases and a completed entry is never changed again.
type SyncOperation struct {
	ID            string          `json:"id"`
	OperationType string          `json:"operationType"`
	TableName     string          `json:"tableName"`
	RecordID      string          `json:"recordId"`
	Operation     LedgerOperation `json:"operation" validate:"oneof=insert update delete"`
	Data          json.RawMessage `json:"data,omitempty"`
	Status        LedgerStatus    `json:"status"`
	RetryCount    int             `json:"retryCount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
