package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MySQL    MySQLConfig    `yaml:"mysql"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Poller   PollerConfig   `yaml:"poller"`
	Consumer ConsumerConfig `yaml:"consumer"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	ClientID    string   `yaml:"client_id"`
	MaxAttempts int      `yaml:"max_attempts"` // retries per send
}

type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
}

type ConsumerConfig struct {
	ChangelogGroup    string        `yaml:"changelog_group"`
	ReplicationGroup  string        `yaml:"replication_group"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"` // health/metrics listen address
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if config.MySQL.Host == "" {
		config.MySQL.Host = "127.0.0.1"
	}
	if config.MySQL.Port == 0 {
		config.MySQL.Port = 4000
	}
	if config.MySQL.User == "" {
		config.MySQL.User = "root"
	}
	if config.MySQL.Database == "" {
		config.MySQL.Database = "sre_assignment"
	}
	if len(config.Kafka.Brokers) == 0 {
		config.Kafka.Brokers = []string{"localhost:29092"}
	}
	if config.Kafka.ClientID == "" {
		config.Kafka.ClientID = "sre-backend"
	}
	if config.Poller.Interval == 0 {
		config.Poller.Interval = 5 * time.Second
	}
	if config.Poller.ErrorBackoff == 0 {
		config.Poller.ErrorBackoff = 10 * time.Second
	}
	if config.Consumer.ChangelogGroup == "" {
		config.Consumer.ChangelogGroup = "database-change-consumer-group"
	}
	if config.Consumer.ReplicationGroup == "" {
		config.Consumer.ReplicationGroup = "backend-group"
	}
	if config.Consumer.SessionTimeout == 0 {
		config.Consumer.SessionTimeout = 30 * time.Second
	}
	if config.Consumer.HeartbeatInterval == 0 {
		config.Consumer.HeartbeatInterval = 3 * time.Second
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":3001"
	}

	return &config, nil
}
