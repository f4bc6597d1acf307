// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package channel

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/itinera/itinera/internal/logging"
)

// Breaker decorates a Channel with a circuit breaker on the write path.
// Commits are never retried automatically (a blind retry could race a
// concurrent remote change), so the breaker's only job is to fail fast
// while the remote store is down instead of letting every commit hang on a
// dead transport. Subscriptions pass through untouched.
type Breaker struct {
	inner Channel
	cb    *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker wraps inner with write-path circuit breaking. Five
// consecutive write failures open the circuit for 30 seconds.
func NewBreaker(inner Channel) *Breaker {
	settings := gobreaker.Settings{
		Name:    "channel-write",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("channel write breaker state changed")
		},
	}
	return &Breaker{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// SubscribeDocument implements Channel.
func (b *Breaker) SubscribeDocument(ctx context.Context, path string) (DocumentSubscription, error) {
	return b.inner.SubscribeDocument(ctx, path)
}

// SubscribeCollection implements Channel.
func (b *Breaker) SubscribeCollection(ctx context.Context, path string) (CollectionSubscription, error) {
	return b.inner.SubscribeCollection(ctx, path)
}

// ReadDocument implements Channel. Reads bypass the breaker; only the
// write path trips it.
func (b *Breaker) ReadDocument(ctx context.Context, path string) (DocumentSnapshot, bool, error) {
	return b.inner.ReadDocument(ctx, path)
}

// WriteDocument implements Channel. With the circuit open the write fails
// immediately with gobreaker.ErrOpenState wrapped as a channel error.
func (b *Breaker) WriteDocument(ctx context.Context, path string, doc any) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.WriteDocument(ctx, path, doc)
	})
	if err == nil {
		return nil
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}
	return wrapErr("write", path, err)
}
