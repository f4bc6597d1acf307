// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package api exposes the operator surface over HTTP: login, the
// configuration editor, the track view, and the websocket push endpoint.
//
// All state-changing routes go through the engine, so the handlers hold no
// domain state of their own. The session rides in a signed cookie; the
// cookie names the session token, the engine decides whether it is valid.
package api
