package storage

import (
	"context"
	"fmt"
)

// Schema for the three monitored tables. TIMESTAMP(6) keeps microsecond
// precision; the strict > watermark scan relies on timestamps being
// effectively unique per source. The dedup_key columns back the
// idempotent replication writes.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_users_created_at (created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS user_activities (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		activity_type VARCHAR(64) NOT NULL,
		activity_data JSON NULL,
		timestamp TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		dedup_key CHAR(64) NULL,
		UNIQUE KEY uq_user_activities_dedup (dedup_key),
		KEY idx_user_activities_timestamp (timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NULL,
		action VARCHAR(64) NOT NULL,
		ip_address VARCHAR(45) NULL,
		user_agent VARCHAR(512) NULL,
		success BOOLEAN NOT NULL DEFAULT TRUE,
		error_message TEXT NULL,
		timestamp TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		dedup_key CHAR(64) NULL,
		UNIQUE KEY uq_audit_logs_dedup (dedup_key),
		KEY idx_audit_logs_timestamp (timestamp)
	)`,
}

// Migrate creates the pipeline tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	s.logger.Info("Database schema is up to date")
	return nil
}
