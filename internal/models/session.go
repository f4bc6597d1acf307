// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package models

import "time"

// Session is the operator's time-bounded authenticated state. It is created
// on a successful password check, replaced atomically (never partially
// updated), and destroyed on logout or expiry detection.
type Session struct {
	// Token is an opaque identifier minted at login.
	Token string `json:"token"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the session expiry has passed at the given time.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
