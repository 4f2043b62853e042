package replication

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"auth-cdc/internal/models"
	"auth-cdc/internal/telemetry"
)

// Store persists replicated activity and audit events. Implementations
// must be idempotent: broker delivery is at-least-once and the same
// message can arrive twice.
type Store interface {
	InsertUserActivity(ctx context.Context, activity models.UserActivity) error
	InsertAuditLog(ctx context.Context, entry models.AuditLog) error
}

// Fetcher is the subset of kafka.Reader the consumer needs
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer replays activity and audit events into relational storage.
// It runs inside the backend process so the HTTP request that produced
// an event never waits on the relational write.
type Consumer struct {
	reader Fetcher
	store  Store
	logger *logrus.Logger
}

// NewConsumer creates a replication consumer over the given reader and store
func NewConsumer(reader Fetcher, store Store, logger *logrus.Logger) *Consumer {
	return &Consumer{reader: reader, store: store, logger: logger}
}

// Run consumes until ctx is canceled. An in-flight message finishes
// processing before the loop exits.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Replication consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Errorf("Error fetching message: %v", err)
			continue
		}

		// The write is detached from ctx so a shutdown signal never
		// kills a message mid-persist; the loop exits on the next fetch.
		c.process(context.WithoutCancel(ctx), msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Errorf("Error committing offset for %s: %v", msg.Topic, err)
		}
	}
}

// process persists one message. Errors are isolated to the message:
// parse failures drop it, storage failures are logged and consumption
// continues with the next message.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	telemetry.MessagesConsumed.WithLabelValues(msg.Topic).Inc()

	switch msg.Topic {
	case models.TopicUserActivities:
		var activity models.UserActivity
		if err := json.Unmarshal(msg.Value, &activity); err != nil {
			c.dropUnparsable(msg, err)
			return
		}
		if err := c.store.InsertUserActivity(ctx, activity); err != nil {
			telemetry.ConsumerErrors.WithLabelValues(msg.Topic).Inc()
			c.logger.Errorf("Failed to store user activity: %v", err)
		}
	case models.TopicAuditLogs:
		var entry models.AuditLog
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			c.dropUnparsable(msg, err)
			return
		}
		if err := c.store.InsertAuditLog(ctx, entry); err != nil {
			telemetry.ConsumerErrors.WithLabelValues(msg.Topic).Inc()
			c.logger.Errorf("Failed to store audit log: %v", err)
		}
	default:
		c.logger.Warnf("Ignoring message from unexpected topic %s", msg.Topic)
	}
}

func (c *Consumer) dropUnparsable(msg kafka.Message, err error) {
	telemetry.ConsumerErrors.WithLabelValues(msg.Topic).Inc()
	c.logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).Errorf("Dropping unparsable message: %v", err)
}
