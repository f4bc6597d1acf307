// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package models

import "time"

// Position is a single recorded device fix.
type Position struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`

	// Timestamp is epoch milliseconds, matching what devices report.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the fix timestamp as a time.Time.
func (p Position) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// TrackedUser is one document in the remote tracked-user collection. The
// collection is the sole source of truth for positions; consumers hold only
// derived read-only views rebuilt wholesale on every snapshot.
type TrackedUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Location is the ordered position trail, assumed chronological. An
	// out-of-order or missing sequence is passed through as-is rather than
	// re-sorted or rejected.
	Location []Position `json:"location"`
}

// LatLong is a bare coordinate pair, used for rendered paths where the
// timestamp is not part of the presentation contract.
type LatLong struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// UserTrack is the per-user display view assembled by the track aggregator:
// the full path in input order, the latest position if any, and a palette
// color stable only within one rebuild.
type UserTrack struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         []LatLong `json:"path"`
	LastPosition *Position `json:"last_position,omitempty"`
	Color        string    `json:"color"`
}
