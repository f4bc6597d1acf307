// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package ingest

import (
	"errors"
	"fmt"
)

// Topics used on the ingest stream.
const (
	// TopicPositionFix carries device position reports.
	TopicPositionFix = "position.fix"

	// TopicPoison receives reports that could not be processed after
	// retries.
	TopicPoison = "dlq.position"
)

// ErrInvalidReport marks a report that can never be processed; the router
// sends it to the poison topic rather than retrying.
var ErrInvalidReport = errors.New("invalid position report")

// Report is one device position fix as published on TopicPositionFix.
type Report struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`

	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`

	// Timestamp is epoch milliseconds as reported by the device.
	Timestamp int64 `json:"timestamp"`
}

// Validate checks the report for fields without which it cannot be
// attributed or placed.
func (r Report) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrInvalidReport)
	}
	if r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidReport, r.Lat)
	}
	if r.Long < -180 || r.Long > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidReport, r.Long)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidReport)
	}
	return nil
}
