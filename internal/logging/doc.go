// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package logging provides the global zerolog-based logger.
//
// Initialize once at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
// then log through the package-level helpers:
//
//	logging.Info().Str("user", id).Msg("request processed")
//
// Always terminate chains with .Msg() or .Send(); an unterminated chain
// emits nothing. Adapters for log/slog (sutureslog) and Watermill are
// included so supervised services and the message router share the same
// sink.
package logging
