package broker

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// DefaultMaxAttempts bounds the broker client's retries for a single send
const DefaultMaxAttempts = 3

// Sink is a destination for serialized events
type Sink interface {
	// Publish sends one message; same key routes to the same partition
	Publish(topic, key string, value []byte) error
	// Close releases any resources held by the sink
	Close() error
}

// KafkaConfig holds configuration for KafkaSink
type KafkaConfig struct {
	Brokers     []string // Kafka broker addresses
	MaxAttempts int      // Retries per send before the failure is surfaced
}

// KafkaSink implements Sink on top of a kafka.Writer
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a new KafkaSink with the given configuration
func NewKafkaSink(config KafkaConfig) (*KafkaSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink requires at least one broker address")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{}, // partition by key
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            config.MaxAttempts,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &KafkaSink{writer: writer}, nil
}

// Publish sends a message to Kafka. The writer retries internally up to
// MaxAttempts with its own backoff; after that the error is returned.
func (k *KafkaSink) Publish(topic, key string, value []byte) error {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	return k.writer.WriteMessages(context.Background(), msg)
}

// Close releases resources held by the KafkaSink
func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// Dial verifies that at least one broker is reachable. Used at process
// start, where an unreachable broker is fatal.
func Dial(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no broker addresses configured")
	}

	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to reach any kafka broker: %w", lastErr)
}
