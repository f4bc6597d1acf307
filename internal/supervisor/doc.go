// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package supervisor builds the suture tree that keeps the long-running
// parts of the process alive: the engine loop, the websocket hub, the
// ingest pipeline and the HTTP server. Services are grouped into a core
// layer and an api layer so a crashing ingest handler cannot take the
// HTTP listener down with it.
package supervisor
