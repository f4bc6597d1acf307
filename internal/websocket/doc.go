// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package websocket pushes engine state to browser clients.
//
// The hub fans engine events out to every connected client. Clients that
// cannot keep up are dropped rather than allowed to apply backpressure to
// the engine loop; a reconnecting client receives the full current state
// again, so missed intermediate frames are harmless.
package websocket
