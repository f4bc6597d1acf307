// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package config loads process configuration in three layers: built-in
// defaults, an optional YAML file, and environment variables, with later
// layers winning.
//
// This is deployment configuration only. The recording settings the
// operator edits at runtime live in the remote configuration document, not
// here.
package config
