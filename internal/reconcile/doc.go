// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package reconcile merges locally edited recording settings with remote
// snapshots of the shared configuration document and commits validated
// edits back through the channel.
//
// The reconciler tracks two pieces of state: the last remote snapshot it
// absorbed (the baseline) and the operator's in-progress edits (the
// buffer). Remote changes flow into the buffer only for fields the
// operator has not touched; touched fields keep their local value until
// the operator commits or the remote value catches up to the edit.
package reconcile
