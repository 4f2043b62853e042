package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"auth-cdc/internal/config"
)

// Store wraps the relational database behind the pipeline: the poller's
// scan queries and the replication consumer's writes.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open connects to MySQL/TiDB and verifies the connection with a ping.
// Callers treat a failure here as fatal at process start.
func Open(cfg config.MySQLConfig, logger *logrus.Logger) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL server: %w", err)
	}

	logger.Infof("Connected to MySQL at %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)

	return &Store{db: db, logger: logger}, nil
}

// Ping verifies the connection is still healthy
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
