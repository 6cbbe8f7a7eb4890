package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ardhiansyah/veloria/internal/common/config"
	"github.com/ardhiansyah/veloria/internal/common/logger"
)

// Producer publishes JSON events to Kafka topics.
type Producer struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer, logger: log}
}

// PublishEvent marshals event to JSON and writes it to the topic, keyed for
// per-aggregate ordering.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads messages from a single topic as part of a consumer group.
type Consumer struct {
	reader *kafka.Reader
	logger *logger.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // explicit commits
	})
	return &Consumer{reader: reader, logger: log}
}

// Consume reads messages until ctx is cancelled, invoking handler for each.
// A handler error is logged and the message is committed anyway; analytics
// events are not worth blocking the partition for.
func (c *Consumer) Consume(ctx context.Context, handler func(ctx context.Context, key, value []byte) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Errorf("Failed to handle message from %s (partition %d, offset %d): %v",
				msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// UnmarshalEvent decodes a JSON event payload.
func UnmarshalEvent(value []byte, dest interface{}) error {
	if err := json.Unmarshal(value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return nil
}
