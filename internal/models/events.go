package models

import "time"

// Operation types for change events
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Monitored source tables
const (
	TableUsers          = "users"
	TableUserActivities = "user_activities"
	TableAuditLogs      = "audit_logs"
)

// Topics used by the pipeline
const (
	TopicDatabaseChanges = "database-changes"
	TopicUserActivities  = "user-activities"
	TopicAuditLogs       = "audit-logs"
)

// ChangeEvent represents a single row-level change detected on a monitored table
type ChangeEvent struct {
	Operation   string                 `json:"operation"` // INSERT, UPDATE, DELETE
	Table       string                 `json:"table"`
	Data        map[string]interface{} `json:"data"`
	Timestamp   time.Time              `json:"timestamp"` // row timestamp in the source table
	PublishedAt time.Time              `json:"published_at,omitempty"`
}

// Key returns the partition key, so events of the same table and operation
// share a partition and keep their relative order.
func (e *ChangeEvent) Key() string {
	return e.Table + "-" + e.Operation
}

// UserActivity is the wire form of an activity event on the user-activities topic
type UserActivity struct {
	Email        string                 `json:"email"`
	ActivityType string                 `json:"activityType"`
	ActivityData map[string]interface{} `json:"activityData,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// AuditLog is the wire form of an audit event on the audit-logs topic
type AuditLog struct {
	Email        string    `json:"email"`
	Action       string    `json:"action"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// SubjectKey returns the partition key for subject-scoped events
func SubjectKey(email string) string {
	if email == "" {
		return "anonymous"
	}
	return email
}
