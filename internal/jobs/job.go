package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Type names a background job handler.
type Type string

const (
	TypeSendReminder      Type = "send_reminder"
	TypeRunDeletion       Type = "run_deletion"
	TypeAtomic            Type = "atomic"
	TypeUserRenameCleanup Type = "user_rename_cleanup"
	TypeUserDeleteCleanup Type = "user_delete_cleanup"
	TypeSendMail          Type = "send_mail"
)

// ErrJobNotFound is returned when no job is registered under a key.
var ErrJobNotFound = errors.New("job not found")

// Job is a unit of deferred work registered under a unique key.
type Job struct {
	Key      string          `json:"key"`
	Type     Type            `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	RunAt    time.Time       `json:"run_at"`
	Attempts int             `json:"attempts"`
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if len(j.Payload) == 0 {
		return errors.New("job payload empty")
	}
	return json.Unmarshal(j.Payload, v)
}

// Scheduler registers deferred jobs by key. EnqueueAt replaces any job already
// registered under the key; Cancel is a no-op when nothing is registered.
type Scheduler interface {
	EnqueueAt(ctx context.Context, key string, at time.Time, jobType Type, payload any) error
	Cancel(ctx context.Context, key string) error
}

// Queue is the worker-facing side of the scheduler. Claimed jobs stay leased
// until acknowledged or retried; an expired lease makes them due again.
type Queue interface {
	Scheduler
	Get(ctx context.Context, key string) (*Job, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)
	Ack(ctx context.Context, job Job) error
	Retry(ctx context.Context, job Job, at time.Time) error
}

// UserPayload identifies the user a lifecycle job acts on.
type UserPayload struct {
	UserID string `json:"user_id"`
}

// Step is one entry of an atomic batch.
type Step struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AtomicPayload runs its steps in order as a single job.
type AtomicPayload struct {
	Execute []Step `json:"execute"`
}

// NewStep marshals payload into a batch step.
func NewStep(jobType Type, payload any) (Step, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Step{}, err
	}
	return Step{Type: jobType, Payload: raw}, nil
}

// RenameCleanupPayload carries the names involved in a rename.
type RenameCleanupPayload struct {
	UserID           string `json:"original_user_id"`
	OriginalUsername string `json:"original_user_name"`
	NewUsername      string `json:"new_user_name"`
}

// DeleteCleanupPayload identifies a removed user record.
type DeleteCleanupPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
