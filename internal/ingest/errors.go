// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package ingest

import (
	"fmt"
	"strings"

	"github.com/tomtom215/fieldtrack/internal/validation"
)

// ItemError is one rejected field. Index is the zero-based position of the
// item inside a batch and is nil for single-fix requests.
type ItemError struct {
	Index  *int   `json:"index,omitempty"`
	Field  string `json:"field"`
	Tag    string `json:"tag,omitempty"`
	Reason string `json:"reason"`
}

// ValidationError reports every reason a request was rejected. Nothing is
// persisted when it is returned.
type ValidationError struct {
	Items []ItemError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		if item.Index != nil {
			parts[i] = fmt.Sprintf("locations[%d]: %s", *item.Index, item.Reason)
		} else {
			parts[i] = item.Reason
		}
	}
	return "invalid location: " + strings.Join(parts, "; ")
}

// Indexes returns the distinct batch indexes that failed, in order.
func (e *ValidationError) Indexes() []int {
	seen := make(map[int]bool)
	out := make([]int, 0)
	for _, item := range e.Items {
		if item.Index == nil || seen[*item.Index] {
			continue
		}
		seen[*item.Index] = true
		out = append(out, *item.Index)
	}
	return out
}

func itemErrors(index *int, verr *validation.RequestValidationError) []ItemError {
	items := make([]ItemError, 0, len(verr.Errors()))
	for _, fe := range verr.Errors() {
		items = append(items, ItemError{
			Index:  index,
			Field:  fe.Field,
			Tag:    fe.Tag,
			Reason: fe.Message,
		})
	}
	return items
}
