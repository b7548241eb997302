package events

import (
	"time"

	"github.com/accountops/account-deletion/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDeletionScheduled EventType = "deletion_scheduled"
	EventDeletionCancelled EventType = "deletion_cancelled"
	EventDeletionCompleted EventType = "deletion_completed"
	EventReminderSent      EventType = "deletion_reminder_sent"
)

// Event represents a lifecycle event emitted by the deletion workflow.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	RequestID int64       `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// DeletionScheduledPayload payload.
type DeletionScheduledPayload struct {
	EndDate   time.Time `json:"end_date"`
	Created   bool      `json:"created"`
	Immediate bool      `json:"immediate"`
}

// DeletionCancelledPayload payload.
type DeletionCancelledPayload struct {
	Forced bool `json:"forced"`
}

// DeletionCompletedPayload payload.
type DeletionCompletedPayload struct {
	Mode        domain.DeletionMode `json:"mode"`
	NewUsername string              `json:"new_username,omitempty"`
	UserRemoved bool                `json:"user_removed"`
}
