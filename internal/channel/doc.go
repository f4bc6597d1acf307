// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

// Package channel provides a push-based subscription abstraction over a
// mutable remote document store.
//
// Consumers see a single mutable document (the recording configuration) and
// a single mutable collection (tracked users) and receive a full-body
// snapshot whenever the underlying data changes. The transport behind the
// interface is interchangeable: NATSKV backs production deployments with a
// JetStream Key-Value bucket, Memory backs tests and dev mode.
//
// Subscription guarantees:
//
//   - Snapshots are delivered in the order the remote applied them.
//   - Close is idempotent and deterministic: after Close returns, no
//     further events are delivered.
//   - A delivery failure surfaces as an event carrying an error; the
//     subscription stays open and the consumer keeps its last-known state.
package channel
