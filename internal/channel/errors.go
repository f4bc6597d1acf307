// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"fmt"
)

// Error wraps a transport failure with the operation and document path it
// occurred on. No channel error is fatal to the process; consumers degrade
// to their last-known state.
type Error struct {
	Op   string // "subscribe", "watch", "read", "write"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("channel %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapErr builds a *Error unless err is nil.
func wrapErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Path: path, Err: err}
}
