package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// ActivityLogger records manager operations to the database so the
// operator has a history of what happened to the server and the
// plugin directory. It is history only; nothing reads it back to
// resume supervision.
type ActivityLogger struct {
	db *sql.DB
	mu sync.Mutex
}

// Activity represents a logged activity
type Activity struct {
	ID           int64                  `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Activity type constants
const (
	ActivityServerStart       = "server.start"
	ActivityServerStop        = "server.stop"
	ActivityServerRestart     = "server.restart"
	ActivityServerCrash       = "server.crash"
	ActivityCommandExecute    = "command.execute"
	ActivityConfigUpdate      = "config.update"
	ActivityPluginInstall     = "plugin.install"
	ActivityPluginDelete      = "plugin.delete"
	ActivityScheduledRestart  = "schedule.restart"
)

// NewActivityLogger creates a new activity logger
func NewActivityLogger(db *sql.DB) *ActivityLogger {
	return &ActivityLogger{db: db}
}

// Log records an activity; failures are logged, never propagated to
// the operation that produced the activity.
func (al *ActivityLogger) Log(activity *Activity) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	if al.db == nil {
		return
	}

	var metadata []byte
	if len(activity.Metadata) > 0 {
		metadata, _ = json.Marshal(activity.Metadata)
	}

	_, err := al.db.Exec(`
		INSERT INTO activity_log (timestamp, activity_type, description, metadata, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, activity.Timestamp, activity.ActivityType, activity.Description, string(metadata), activity.Success, activity.ErrorMessage)
	if err != nil {
		log.Printf("[ActivityLogger] Error logging to database: %v", err)
	}
}

// LogResult is a shorthand for recording the outcome of an operation
func (al *ActivityLogger) LogResult(activityType, description string, err error) {
	activity := &Activity{
		ActivityType: activityType,
		Description:  description,
		Success:      err == nil,
	}
	if err != nil {
		activity.ErrorMessage = err.Error()
	}
	al.Log(activity)
}

// Recent returns the most recent activities, newest first
func (al *ActivityLogger) Recent(limit int) ([]*Activity, error) {
	if al.db == nil {
		return []*Activity{}, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := al.db.Query(`
		SELECT id, timestamp, activity_type, description, metadata, success, error_message
		FROM activity_log
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	activities := []*Activity{}
	for rows.Next() {
		activity := &Activity{}
		var metadata sql.NullString
		var errorMessage sql.NullString
		if err := rows.Scan(&activity.ID, &activity.Timestamp, &activity.ActivityType, &activity.Description, &metadata, &activity.Success, &errorMessage); err != nil {
			continue
		}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &activity.Metadata)
		}
		if errorMessage.Valid {
			activity.ErrorMessage = errorMessage.String
		}
		activities = append(activities, activity)
	}

	return activities, rows.Err()
}
