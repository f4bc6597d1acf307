// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package models defines the shared data model for Itinera.
//
// The two remote document shapes (ConfigDocument and TrackedUser) are the
// bit-exact contract with the backing document store; everything else in
// this package is derived state owned by a single component.
package models
