package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type BusConfig struct {
	KafkaBrokers  []string
	ConsumerGroup string
}

// Bus holds the transport pair. Without brokers both sides share one
// in-process channel.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Logger     watermill.LoggerAdapter
	shared     bool
}

func NewBus(cfg BusConfig, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.KafkaBrokers) == 0 {
		channel := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		logger.Info("Event bus using in-process channel")
		return &Bus{Publisher: channel, Subscriber: channel, Logger: wmLogger, shared: true}, nil
	}

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = EventSource
	}
	subscriber, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.KafkaBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		ConsumerGroup:         group,
	}, wmLogger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	logger.Info("Event bus using kafka", "brokers", cfg.KafkaBrokers, "consumer_group", group)
	return &Bus{Publisher: publisher, Subscriber: subscriber, Logger: wmLogger}, nil
}

func (b *Bus) Close() error {
	pubErr := b.Publisher.Close()
	if !b.shared {
		if err := b.Subscriber.Close(); err != nil {
			return err
		}
	}
	return pubErr
}

// WatermillPublisher encodes events as JSON messages on the topic named by
// the event type.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewWatermillPublisher(publisher message.Publisher, logger *slog.Logger) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher, logger: logger}
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.Type, err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(event.Type, msg); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "Event published", "event_type", event.Type, "event_id", event.ID)
	return nil
}

// Close is a no-op; the bus owns the transport.
func (p *WatermillPublisher) Close() error {
	return nil
}

// decodeEvent unpacks a message into the envelope and its typed payload.
func decodeEvent(msg *message.Message, data interface{}) (*Event, error) {
	var envelope struct {
		Event
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, data); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", envelope.Type, err)
	}
	event := envelope.Event
	event.Data = data
	return &event, nil
}
