// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package retention

import "math"

// Stride returns the sampling stride for n ordered fixes kept at ratio:
// keepCount = ceil(n*ratio) and stride = max(1, floor(n/keepCount)).
func Stride(n int, ratio float64) int {
	if n <= 0 {
		return 1
	}
	keepCount := int(math.Ceil(float64(n) * ratio))
	if keepCount <= 0 {
		keepCount = 1
	}
	stride := n / keepCount
	if stride < 1 {
		stride = 1
	}
	return stride
}

// SplitByStride partitions ids, which must be ordered oldest first, into
// the ones kept (indices 0, stride, 2*stride, ...) and the ones to delete.
// The result depends only on the input order, so reruns are deterministic.
func SplitByStride(ids []string, ratio float64) (keep, drop []string) {
	stride := Stride(len(ids), ratio)
	if stride == 1 {
		return ids, nil
	}
	keep = make([]string, 0, len(ids)/stride+1)
	drop = make([]string, 0, len(ids)-len(ids)/stride)
	for i, id := range ids {
		if i%stride == 0 {
			keep = append(keep, id)
		} else {
			drop = append(drop, id)
		}
	}
	return keep, drop
}
