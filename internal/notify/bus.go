package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
)

const (
	// Topic is the watermill topic every event is published on.
	Topic = "dataflow.events"
	// TypeMetadataKey carries the event type in message metadata.
	TypeMetadataKey = "event_type"
)

// Handler consumes decoded events from a Bus subscription.
type Handler func(ctx context.Context, e Event) error

// Bus is a Sink that publishes events as JSON messages through watermill,
// so out-of-process consumers can observe a network.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

// NewBus wraps an existing publisher/subscriber pair.
func NewBus(pub message.Publisher, sub message.Subscriber) *Bus {
	return &Bus{publisher: pub, subscriber: sub}
}

// NewGoChannelBus builds a Bus on an in-process gochannel pub/sub.
func NewGoChannelBus(logger *slog.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
	return NewBus(pubSub, pubSub)
}

// Notify implements Sink. Publish failures are logged, never returned: a
// broken observer must not fail a run.
func (b *Bus) Notify(ctx context.Context, e Event) {
	if err := b.Publish(e); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to publish event.", "type", string(e.EventType()), "error", err)
	}
}

// Publish encodes and publishes one event.
func (b *Bus) Publish(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.EventType(), err)
	}
	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(TypeMetadataKey, string(e.EventType()))
	return b.publisher.Publish(Topic, msg)
}

// Subscribe starts delivering events to handler until ctx is cancelled.
// Messages with an unknown type are acknowledged and dropped; messages the
// handler rejects are nacked.
func (b *Bus) Subscribe(ctx context.Context, handler Handler) error {
	messages, err := b.subscriber.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			event := newEvent(Type(msg.Metadata.Get(TypeMetadataKey)))
			if event == nil {
				msg.Ack()
				continue
			}
			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()
				continue
			}
			if err := handler(ctx, deref(event)); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts down the publisher and subscriber.
func (b *Bus) Close() error {
	if err := b.publisher.Close(); err != nil {
		return err
	}
	if b.subscriber != nil {
		return b.subscriber.Close()
	}
	return nil
}

// deref turns the decoded pointer back into the value type the engine emits,
// so subscribers can type-switch on the same types as in-process sinks.
func deref(e Event) Event {
	switch ev := e.(type) {
	case *ModuleStatusChanged:
		return *ev
	case *ModuleSkipped:
		return *ev
	case *OutputPublished:
		return *ev
	case *RunStarted:
		return *ev
	case *RunFinished:
		return *ev
	case *TopologyChanged:
		return *ev
	default:
		return e
	}
}
