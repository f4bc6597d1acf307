// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package engine runs the event loop that owns all mutable application
// state.
//
// One goroutine funnels remote snapshots and operator commands through the
// reconciler, the session gate, and the track aggregator, then publishes
// the resulting views to connected clients. Because everything state-
// changing happens on that one goroutine, the core packages need no locks
// and every state transition has a total order.
package engine
