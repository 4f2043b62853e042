package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"auth-cdc/internal/models"
	"auth-cdc/internal/telemetry"
)

// ErrNotConnected is returned when publishing while the broker connection
// is down. Callers are expected to log and move on; the event is lost.
var ErrNotConnected = errors.New("not connected to kafka")

// Publisher serializes pipeline events and hands them to the broker sink.
// A Publisher is safe for concurrent use.
type Publisher struct {
	sink      Sink
	logger    *logrus.Logger
	connected atomic.Bool
	now       func() time.Time
}

// NewPublisher creates a publisher over the given sink. It starts
// disconnected; Connect must succeed before anything is published.
func NewPublisher(sink Sink, logger *logrus.Logger) *Publisher {
	return &Publisher{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Connect probes the brokers and marks the publisher connected.
// The connected flag is only ever written here and in Close.
func (p *Publisher) Connect(ctx context.Context, brokers []string) error {
	if err := Dial(ctx, brokers); err != nil {
		return err
	}
	p.connected.Store(true)
	p.logger.Infof("Connected to Kafka at %v", brokers)
	return nil
}

// IsConnected reports broker connectivity for health checks
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// Close marks the publisher disconnected and releases the sink
func (p *Publisher) Close() error {
	p.connected.Store(false)
	return p.sink.Close()
}

// PublishDatabaseChange publishes a change event to the database-changes
// topic, keyed by table and operation.
func (p *Publisher) PublishDatabaseChange(event models.ChangeEvent) error {
	event.PublishedAt = p.now().UTC()
	return p.publish(models.TopicDatabaseChanges, event.Key(), event)
}

// PublishUserActivity publishes an activity event keyed by the subject
func (p *Publisher) PublishUserActivity(email, activityType string, activityData map[string]interface{}) error {
	activity := models.UserActivity{
		Email:        email,
		ActivityType: activityType,
		ActivityData: activityData,
		Timestamp:    p.now().UTC(),
	}
	return p.publish(models.TopicUserActivities, models.SubjectKey(email), activity)
}

// PublishAuditLog publishes an audit event keyed by the subject,
// falling back to "anonymous" for unauthenticated requests.
func (p *Publisher) PublishAuditLog(email, action, ipAddress, userAgent string, success bool, errorMessage string) error {
	entry := models.AuditLog{
		Email:        email,
		Action:       action,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		Success:      success,
		ErrorMessage: errorMessage,
		Timestamp:    p.now().UTC(),
	}
	return p.publish(models.TopicAuditLogs, models.SubjectKey(email), entry)
}

func (p *Publisher) publish(topic, key string, payload interface{}) error {
	if !p.connected.Load() {
		telemetry.PublishFailures.WithLabelValues(topic).Inc()
		p.logger.Warnf("Not connected to Kafka, dropping message for %s", topic)
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		telemetry.PublishFailures.WithLabelValues(topic).Inc()
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	if err := p.sink.Publish(topic, key, data); err != nil {
		telemetry.PublishFailures.WithLabelValues(topic).Inc()
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	telemetry.EventsPublished.WithLabelValues(topic).Inc()
	p.logger.Debugf("Published message to %s with key %s", topic, key)
	return nil
}
