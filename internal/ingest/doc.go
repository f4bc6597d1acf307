// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package ingest consumes device position reports and appends accepted
// fixes to the tracked-user documents.
//
// Reports flow through a Watermill router so transient append failures are
// retried with backoff and permanently bad messages land on a poison topic
// instead of wedging the stream. Whether a report is recorded at all is
// decided by the remote configuration: the recording flag, the daily
// recording window, and the per-user sampling interval.
package ingest
