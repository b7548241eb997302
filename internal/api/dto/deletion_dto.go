package dto

import "time"

// DeletionCreateRequest is submitted by a user asking to delete their account.
// Password may be empty for accounts that only sign in through a provider.
type DeletionCreateRequest struct {
	Password string `json:"password" validate:"max=128"`
	Reason   string `json:"reason" validate:"max=2000"`
}

// DeletionResponse describes one deletion request.
type DeletionResponse struct {
	ID             int64      `json:"id"`
	UserID         string     `json:"user_id"`
	Username       string     `json:"username"`
	Reason         string     `json:"reason,omitempty"`
	Status         string     `json:"status"`
	InitiationDate time.Time  `json:"initiation_date"`
	EndDate        time.Time  `json:"end_date"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	ReminderSent   bool       `json:"reminder_sent"`
}

// DeletionStatusResponse adds the upcoming job times to a request.
type DeletionStatusResponse struct {
	Request      DeletionResponse `json:"request"`
	NextReminder *time.Time       `json:"next_reminder,omitempty"`
	NextDeletion *time.Time       `json:"next_deletion,omitempty"`
}

// DeletionCancelResponse reports whether a pending request was cancelled.
type DeletionCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}
