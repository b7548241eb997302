package domain

import "time"

// DeletionStatus is the lifecycle state of a deletion request.
type DeletionStatus string

const (
	DeletionStatusPending   DeletionStatus = "pending"
	DeletionStatusComplete  DeletionStatus = "complete"
	DeletionStatusCancelled DeletionStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s DeletionStatus) Valid() bool {
	switch s {
	case DeletionStatusPending, DeletionStatusComplete, DeletionStatusCancelled:
		return true
	}
	return false
}

// DeletionRequest records a user's request to remove their account.
// Username is a snapshot taken when the request was created.
type DeletionRequest struct {
	ID             int64
	UserID         string
	Username       string
	Reason         string
	InitiationDate time.Time
	EndDate        time.Time
	CompletionDate *time.Time
	Status         DeletionStatus
	ReminderSent   bool
	// Execution is set once the terminal action has started.
	Execution *ExecutionSnapshot
}

// ExecutionSnapshot holds what an execution needs after the account record has
// been changed or removed. It is stored before the first mutation and reused
// by every later attempt.
type ExecutionSnapshot struct {
	Mode     DeletionMode
	Username string
	// NewUsername is empty when the account keeps its name.
	NewUsername string
	Email       string
	Language    string
	StartedAt   time.Time
}

// IsPending reports whether the request is still active.
func (d *DeletionRequest) IsPending() bool {
	return d != nil && d.Status == DeletionStatusPending
}

// Due reports whether the cooling-off period has elapsed at now.
func (d *DeletionRequest) Due(now time.Time) bool {
	return !d.EndDate.After(now)
}
