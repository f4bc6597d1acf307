// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package logging

// SanitizeToken shortens a secret to a loggable prefix. Session tokens and
// signed cookies must never appear whole in logs.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}
