// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package models holds the types shared by the store, the services and the API.
package models

import "time"

// FixSource identifies how a device produced a fix.
type FixSource string

const (
	SourceGPS     FixSource = "gps"
	SourceNetwork FixSource = "network"
	SourcePassive FixSource = "passive"
)

// Valid reports whether s is a known source.
func (s FixSource) Valid() bool {
	switch s {
	case SourceGPS, SourceNetwork, SourcePassive:
		return true
	}
	return false
}

// SyncStatus tracks whether an offline-recorded fix has reached the server.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// LocationFix is one persisted GPS observation. Fixes are append-only: they
// are created once and later either deleted by retention or left alone.
type LocationFix struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"userId"`
	Latitude     float64                `json:"latitude"`
	Longitude    float64                `json:"longitude"`
	Accuracy     *float64               `json:"accuracy,omitempty"` // meters
	Altitude     *float64               `json:"altitude,omitempty"`
	Speed        *float64               `json:"speed,omitempty"`
	Heading      *float64               `json:"heading,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	BatteryLevel *int                   `json:"batteryLevel,omitempty"`
	Source       FixSource              `json:"source"`
	IsManual     bool                   `json:"isManual"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	SyncStatus   SyncStatus             `json:"syncStatus"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// FixInput is the client-submitted form of a fix. Pointers distinguish
// "absent" from zero so required fields can be enforced.
type FixInput struct {
	Latitude     *float64               `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64               `json:"longitude" validate:"required,gte=-180,lte=180"`
	Timestamp    *time.Time             `json:"timestamp" validate:"required"`
	Accuracy     *float64               `json:"accuracy" validate:"omitempty,gte=0"`
	Altitude     *float64               `json:"altitude"`
	Speed        *float64               `json:"speed" validate:"omitempty,gte=0"`
	Heading      *float64               `json:"heading" validate:"omitempty,gte=0,lt=360"`
	BatteryLevel *int                   `json:"batteryLevel" validate:"omitempty,gte=0,lte=100"`
	Source       string                 `json:"source" validate:"omitempty,oneof=gps network passive"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// FixRecord is what ingestion hands back for each stored fix.
type FixRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchResult is the outcome of a successful batch ingest.
type BatchResult struct {
	Count     int         `json:"count"`
	Locations []FixRecord `json:"locations"`
}

// HistoryFilter narrows a history query. Nil bounds are open.
type HistoryFilter struct {
	UserID    string
	StartDate *time.Time
	EndDate   *time.Time
	Source    FixSource
	Limit     int
	Offset    int
}

// HistoryPage is one page of a user's history, newest first.
type HistoryPage struct {
	Locations []LocationFix `json:"locations"`
	Total     int64         `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// LocationStats summarises a user's fixes over a window.
type LocationStats struct {
	UserID             string              `json:"userId"`
	TotalLocations     int64               `json:"totalLocations"`
	AvgAccuracy        float64             `json:"avgAccuracy"`
	FirstLocation      *time.Time          `json:"firstLocation"`
	LastLocation       *time.Time          `json:"lastLocation"`
	SourceDistribution map[FixSource]int64 `json:"sourceDistribution"`
}

// LocationUpdate is the live event sent to viewers for each new fix.
type LocationUpdate struct {
	UserID       string    `json:"userId"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy"`
	Timestamp    time.Time `json:"timestamp"`
	BatteryLevel *int      `json:"batteryLevel"`
	Source       FixSource `json:"source"`
}

// LocationUpdateEvent is the event name carried on the live channel.
const LocationUpdateEvent = "locationUpdate"

// NewLocationUpdate projects a stored fix onto the live event payload.
func NewLocationUpdate(fix *LocationFix) LocationUpdate {
	return LocationUpdate{
		UserID:       fix.UserID,
		Latitude:     fix.Latitude,
		Longitude:    fix.Longitude,
		Accuracy:     fix.Accuracy,
		Timestamp:    fix.Timestamp,
		BatteryLevel: fix.BatteryLevel,
		Source:       fix.Source,
	}
}
