package broker

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Group session defaults, matching the broker-side liveness contract:
// a consumer that misses heartbeats for the session timeout is evicted
// from its group and its partitions are reassigned.
const (
	DefaultSessionTimeout    = 30 * time.Second
	DefaultHeartbeatInterval = 3 * time.Second
)

// ReaderConfig configures a consumer-group reader
type ReaderConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
}

// NewGroupReader creates a reader joined to a consumer group. Each
// partition of the subscribed topics is delivered to exactly one group
// member, in partition order.
func NewGroupReader(config ReaderConfig) *kafka.Reader {
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = DefaultSessionTimeout
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	rc := kafka.ReaderConfig{
		Brokers:           config.Brokers,
		GroupID:           config.GroupID,
		SessionTimeout:    config.SessionTimeout,
		HeartbeatInterval: config.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
	}
	if len(config.Topics) == 1 {
		rc.Topic = config.Topics[0]
	} else {
		rc.GroupTopics = config.Topics
	}

	return kafka.NewReader(rc)
}
