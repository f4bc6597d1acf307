// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ConfigDocument is the singleton remote configuration document.
//
// It is created out-of-band (pre-seeded in the store), mutated only through
// the reconciler's validated write-back, and never deleted. Remote data may
// transiently violate the timeStart < timeEnd invariant; that invariant is
// enforced at write time only, so arbitrary remote values must still be
// representable here.
type ConfigDocument struct {
	// TimeStart and TimeEnd bound the daily recording window, "HH:MM".
	TimeStart string `json:"timeStart"`
	TimeEnd   string `json:"timeEnd"`

	// Interval is the device sampling interval in minutes. It is carried as
	// the operator typed it; commit validation checks presence only.
	Interval string `json:"interval"`

	// IsRecording is the master on/off flag for device reporting.
	IsRecording bool `json:"isRecording"`

	// Password gates the settings UI. Not editable through the form; the
	// reconciler carries it through unchanged on every write-back.
	Password string `json:"password"`

	// SessionTimeoutMinutes bounds the operator session created by a
	// successful password check.
	SessionTimeoutMinutes int `json:"sessionTimeoutMinutes"`

	// UpdatedAt is refreshed on every write-back, RFC 3339.
	UpdatedAt string `json:"updatedAt"`
}

// Touch stamps UpdatedAt with the given time in RFC 3339 UTC.
func (c *ConfigDocument) Touch(now time.Time) {
	c.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// ParseTimeOfDay parses an "HH:MM" time-of-day string and returns it as
// minutes since midnight. Hours and minutes are range-checked so a value
// like "25:99" is rejected rather than silently wrapping.
func ParseTimeOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time of day %q: missing ':' separator", s)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: bad hours: %w", s, err)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("time of day %q: bad minutes: %w", s, err)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time of day %q: out of range", s)
	}
	return hours*60 + minutes, nil
}
