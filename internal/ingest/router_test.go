// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/itinera/itinera/internal/channel"
)

// startPipeline runs the ingest router on an in-process pub/sub and returns
// the pub/sub plus a stream of poisoned messages.
func startPipeline(t *testing.T, mem *channel.Memory) (*gochannel.GoChannel, <-chan *message.Message) {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	rec := NewRecorder(mem, recordingConfig(), func() time.Time { return inWindowNow })
	pipeline, err := NewPipeline(DefaultRouterConfig(), pubsub, pubsub, rec, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Watch the poison topic before anything is published.
	poisonedRaw, err := pubsub.Subscribe(ctx, TopicPoison)
	if err != nil {
		t.Fatalf("subscribing to poison topic: %v", err)
	}
	poisoned := make(chan *message.Message, 16)
	go func() {
		for msg := range poisonedRaw {
			msg.Ack()
			poisoned <- msg
		}
	}()

	go func() {
		_ = pipeline.Serve(ctx)
	}()
	select {
	case <-pipeline.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never started")
	}
	return pubsub, poisoned
}

func TestPipeline_RecordsPublishedReport(t *testing.T) {
	mem := channel.NewMemory()
	pubsub, _ := startPipeline(t, mem)

	payload, err := json.Marshal(validReport())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := pubsub.Publish(TopicPositionFix, message.NewMessage(uuid.NewString(), payload)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		if user, ok := loadUser(t, mem, "u1"); ok && len(user.Location) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("published report never recorded")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPipeline_PoisonsInvalidReport(t *testing.T) {
	mem := channel.NewMemory()
	pubsub, poisoned := startPipeline(t, mem)

	if err := pubsub.Publish(TopicPositionFix, message.NewMessage(uuid.NewString(), []byte("garbage"))); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-poisoned:
		if string(msg.Payload) != "garbage" {
			t.Errorf("poisoned payload = %q", msg.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("invalid report never reached poison topic")
	}

	if _, ok := loadUser(t, mem, "u1"); ok {
		t.Error("invalid report recorded a position")
	}
}
