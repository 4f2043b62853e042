package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"auth-cdc/internal/models"
)

// The change scans feed the poller: rows strictly newer than the
// source's watermark, in ascending timestamp order, one event per row.

// UserChanges returns one INSERT event per user created after since
func (s *Store) UserChanges(ctx context.Context, since time.Time) ([]models.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email, created_at FROM users WHERE created_at > ? ORDER BY created_at`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var email string
		var createdAt time.Time
		if err := rows.Scan(&email, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		events = append(events, models.ChangeEvent{
			Operation: models.OpInsert,
			Table:     models.TableUsers,
			Data:      map[string]interface{}{"email": email},
			Timestamp: createdAt,
		})
	}
	return events, rows.Err()
}

// ActivityChanges returns one INSERT event per activity recorded after since
func (s *Store) ActivityChanges(ctx context.Context, since time.Time) ([]models.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email, activity_type, activity_data, timestamp
		 FROM user_activities WHERE timestamp > ? ORDER BY timestamp`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query user_activities: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var email, activityType string
		var activityData sql.NullString
		var ts time.Time
		if err := rows.Scan(&email, &activityType, &activityData, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		data := map[string]interface{}{
			"email":         email,
			"activity_type": activityType,
		}
		if activityData.Valid {
			data["activity_data"] = decodeJSONColumn(activityData.String)
		}
		events = append(events, models.ChangeEvent{
			Operation: models.OpInsert,
			Table:     models.TableUserActivities,
			Data:      data,
			Timestamp: ts,
		})
	}
	return events, rows.Err()
}

// AuditLogChanges returns one INSERT event per audit row recorded after since
func (s *Store) AuditLogChanges(ctx context.Context, since time.Time) ([]models.ChangeEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT email, action, ip_address, success, timestamp
		 FROM audit_logs WHERE timestamp > ? ORDER BY timestamp`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit_logs: %w", err)
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var email, ipAddress sql.NullString
		var action string
		var success bool
		var ts time.Time
		if err := rows.Scan(&email, &action, &ipAddress, &success, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		events = append(events, models.ChangeEvent{
			Operation: models.OpInsert,
			Table:     models.TableAuditLogs,
			Data: map[string]interface{}{
				"email":      email.String,
				"action":     action,
				"ip_address": ipAddress.String,
				"success":    success,
			},
			Timestamp: ts,
		})
	}
	return events, rows.Err()
}

// decodeJSONColumn turns a JSON column value back into a map where
// possible, falling back to the raw string.
func decodeJSONColumn(raw string) interface{} {
	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return raw
	}
	return decoded
}
