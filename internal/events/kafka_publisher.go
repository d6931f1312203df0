package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	origin string
}

// NewKafkaPublisher stamps every message with origin so a Poller in the same
// instance can recognise its own events.
func NewKafkaPublisher(origin string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, origin: origin}
}

// Publish keys messages by checkout id when there is one so every event of a
// checkout lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	key := e.CheckoutID
	if key == "" {
		key = e.ShopperID
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if p.origin != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: HeaderOrigin, Value: []byte(p.origin)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.Type, topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
