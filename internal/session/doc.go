// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package session gates access to the operator surface behind the shared
// password carried in the configuration document.
//
// Itinera is a single-operator system: at most one session exists at a
// time, and it is persisted so a restart does not log the operator out.
// Expiry is checked when a session is loaded or inspected, never enforced
// mid-request.
package session
