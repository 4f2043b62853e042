package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"auth-cdc/internal/models"
)

// DedupKey derives the idempotency key for a replicated event from its
// subject, action and original timestamp. Broker delivery is
// at-least-once; the unique dedup_key column turns a redelivered
// message into a no-op insert.
func DedupKey(subject, action string, ts time.Time) string {
	sum := sha256.Sum256([]byte(subject + "|" + action + "|" + ts.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])
}

// InsertUserActivity persists a replicated activity event. Idempotent.
func (s *Store) InsertUserActivity(ctx context.Context, activity models.UserActivity) error {
	var activityData sql.NullString
	if activity.ActivityData != nil {
		data, err := json.Marshal(activity.ActivityData)
		if err != nil {
			return fmt.Errorf("failed to marshal activity data: %w", err)
		}
		activityData = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO user_activities (email, activity_type, activity_data, timestamp, dedup_key)
		 VALUES (?, ?, ?, ?, ?)`,
		activity.Email, activity.ActivityType, activityData, activity.Timestamp.UTC(),
		DedupKey(activity.Email, activity.ActivityType, activity.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to store user activity: %w", err)
	}
	return nil
}

// InsertAuditLog persists a replicated audit event. Idempotent.
func (s *Store) InsertAuditLog(ctx context.Context, entry models.AuditLog) error {
	email := sql.NullString{String: entry.Email, Valid: entry.Email != ""}
	errorMessage := sql.NullString{String: entry.ErrorMessage, Valid: entry.ErrorMessage != ""}

	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO audit_logs (email, action, ip_address, user_agent, success, error_message, timestamp, dedup_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		email, entry.Action, entry.IPAddress, entry.UserAgent, entry.Success, errorMessage,
		entry.Timestamp.UTC(),
		DedupKey(models.SubjectKey(entry.Email), entry.Action, entry.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to store audit log: %w", err)
	}
	return nil
}
