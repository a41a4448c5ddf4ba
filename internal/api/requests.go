// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldtrack/internal/config"
	"github.com/tomtom215/fieldtrack/internal/models"
	"github.com/tomtom215/fieldtrack/internal/validation"
)

// maxBodyBytes caps request bodies; a full batch of fixes with metadata
// fits comfortably.
const maxBodyBytes = 1 << 20

// BatchRequest is the body of POST /locations/batch.
type BatchRequest struct {
	Locations []models.FixInput `json:"locations"`
}

// HistoryQuery is the validated query of GET /locations/history.
type HistoryQuery struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Limit     int        `json:"limit" validate:"min=1"`
	Offset    int        `json:"offset" validate:"min=0"`
	Source    string     `json:"source" validate:"omitempty,oneof=gps network passive"`
}

// CleanupQuery is the validated query of DELETE /locations/cleanup.
type CleanupQuery struct {
	Days  int  `json:"days" validate:"min=1,max=365"`
	Async bool `json:"async"`
}

// CompressQuery is the validated query of POST /locations/compress.
type CompressQuery struct {
	Days             int     `json:"days" validate:"min=1,max=365"`
	CompressionRatio float64 `json:"compressionRatio" validate:"gte=0.1,lte=1"`
	Async            bool    `json:"async"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return validation.NewRequestValidationError(validation.FieldError{
			Field:   "body",
			Tag:     "json",
			Message: "request body must be valid JSON",
		})
	}
	return nil
}

// queryParser reads typed query parameters and collects every parse failure.
type queryParser struct {
	values url.Values
	errs   []validation.FieldError
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{values: r.URL.Query()}
}

func (p *queryParser) fail(field, tag, message string) {
	p.errs = append(p.errs, validation.FieldError{Field: field, Tag: tag, Message: message})
}

func (p *queryParser) intParam(key string, def int) int {
	raw := strings.TrimSpace(p.values.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, "number", key+" must be an integer")
		return def
	}
	return v
}

func (p *queryParser) floatParam(key string, def float64) float64 {
	raw := strings.TrimSpace(p.values.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, "numeric", key+" must be a number")
		return def
	}
	return v
}

func (p *queryParser) boolParam(key string) bool {
	raw := strings.TrimSpace(p.values.Get(key))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, "boolean", key+" must be true or false")
		return false
	}
	return v
}

// timeParam accepts RFC 3339 timestamps or plain dates (midnight UTC).
func (p *queryParser) timeParam(key string) *time.Time {
	raw := strings.TrimSpace(p.values.Get(key))
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fail(key, "datetime", key+" must be an ISO 8601 date or timestamp")
	return nil
}

func (p *queryParser) err() error {
	if len(p.errs) == 0 {
		return nil
	}
	return validation.NewRequestValidationError(p.errs...)
}

// validateQuery runs the struct rules on an already parsed query.
func validateQuery(q interface{}) error {
	if verr := validation.ValidateStruct(q); verr != nil {
		return verr
	}
	return nil
}

func parseHistoryQuery(r *http.Request, cfg config.LocationsConfig) (*HistoryQuery, error) {
	p := newQueryParser(r)
	q := &HistoryQuery{
		StartDate: p.timeParam("startDate"),
		EndDate:   p.timeParam("endDate"),
		Limit:     p.intParam("limit", cfg.HistoryDefaultLimit),
		Offset:    p.intParam("offset", 0),
		Source:    p.values.Get("source"),
	}
	if q.Limit > cfg.HistoryMaxLimit {
		p.fail("limit", "max", fmt.Sprintf("limit must be at most %d", cfg.HistoryMaxLimit))
	}
	checkRange(p, q.StartDate, q.EndDate)
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	return q, nil
}

func parseStatsWindow(r *http.Request) (start, end *time.Time, err error) {
	p := newQueryParser(r)
	start = p.timeParam("startDate")
	end = p.timeParam("endDate")
	checkRange(p, start, end)
	if err := p.err(); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func checkRange(p *queryParser, start, end *time.Time) {
	if start != nil && end != nil && start.After(*end) {
		p.fail("startDate", "ltefield", "startDate must not be after endDate")
	}
}

func parseCleanupQuery(r *http.Request, cfg config.RetentionConfig) (*CleanupQuery, error) {
	p := newQueryParser(r)
	q := &CleanupQuery{
		Days:  p.intParam("days", cfg.DefaultPurgeDays),
		Async: p.boolParam("async"),
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	return q, nil
}

func parseCompressQuery(r *http.Request, cfg config.RetentionConfig) (*CompressQuery, error) {
	p := newQueryParser(r)
	q := &CompressQuery{
		Days:             p.intParam("days", cfg.DefaultCompressDays),
		CompressionRatio: p.floatParam("compressionRatio", cfg.DefaultCompressionRatio),
		Async:            p.boolParam("async"),
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	return q, nil
}
