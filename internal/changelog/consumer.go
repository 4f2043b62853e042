package changelog

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

// Fetcher is the subset of kafka.Reader the consumer needs
type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer turns database change events into structured log records.
// It runs standalone, joined to its own consumer group, so log
// processing scales out per partition independently of the backend.
type Consumer struct {
	reader Fetcher
	logger *logrus.Logger
}

// NewConsumer creates a change log consumer over the given reader
func NewConsumer(reader Fetcher, logger *logrus.Logger) *Consumer {
	return &Consumer{reader: reader, logger: logger}
}

// Run consumes until ctx is canceled. Messages within a partition are
// processed strictly in order; every message is committed once handled,
// which also keeps the group session alive between fetches.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("Change log consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.logger.Errorf("Error fetching message: %v", err)
			continue
		}

		c.process(msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Errorf("Error committing offset for %s: %v", msg.Topic, err)
		}
	}
}

// process handles one message. A message that cannot be parsed is
// logged and dropped; the next message on the partition is unaffected.
func (c *Consumer) process(msg kafka.Message) {
	telemetry.MessagesConsumed.WithLabelValues(msg.Topic).Inc()

	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		telemetry.ConsumerErrors.WithLabelValues(msg.Topic).Inc()
		c.logger.WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"payload":   string(msg.Value),
		}).Errorf("Dropping unparsable change message: %v", err)
		return
	}

	entry := c.logger.WithFields(logrus.Fields{
		"operation":        event.Operation,
		"table":            event.Table,
		"subject":          subject(event),
		"data":             event.Data,
		"source_timestamp": event.Timestamp,
	})

	switch event.Table {
	case models.TableUsers:
		entry.WithField("type", "user_management").Info("User change detected")
	case models.TableUserActivities:
		entry.WithFields(logrus.Fields{
			"type":     "user_activity",
			"activity": event.Data["activity_type"],
		}).Info("Activity change detected")
	case models.TableAuditLogs:
		entry.WithFields(logrus.Fields{
			"type":    "audit_event",
			"action":  event.Data["action"],
			"success": event.Data["success"],
		}).Info("Audit log change detected")
	default:
		entry.Info("Unknown table change")
	}
}

// subject pulls the subject identifier out of the payload, defaulting
// to empty when the table carries none.
func subject(event models.ChangeEvent) string {
	if email, ok := event.Data["email"].(string); ok {
		return email
	}
	return ""
}
