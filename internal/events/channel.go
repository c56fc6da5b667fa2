package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// ChannelBus is the in-process transport used when no Kafka brokers are
// configured. Publisher and subscriber share one gochannel instance, so
// the email worker sees messages queued in the same process.
type ChannelBus struct {
	bus    *gochannel.GoChannel
	logger *slog.Logger
}

func NewChannelBus(logger *slog.Logger) *ChannelBus {
	return &ChannelBus{
		bus: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, watermill.NewSlogLogger(logger)),
		logger: logger,
	}
}

func (b *ChannelBus) Publish(ctx context.Context, topic string, event Event) error {
	msg, err := marshalEvent(event)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)

	if err := b.bus.Publish(topic, msg); err != nil {
		return err
	}
	b.logger.Debug("event published", "topic", topic, "type", event.Type, "event_id", event.ID)
	return nil
}

func (b *ChannelBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.bus.Subscribe(ctx, topic)
}

func (b *ChannelBus) Close() error {
	return b.bus.Close()
}
