package domain

import "time"

// DeletionMode selects the terminal action applied to an expired request.
type DeletionMode string

const (
	DeletionModeDisable DeletionMode = "disable"
	DeletionModeDelete  DeletionMode = "delete"
)

// Valid reports whether the mode is recognised.
func (m DeletionMode) Valid() bool {
	return m == DeletionModeDisable || m == DeletionModeDelete
}

// DisableOptions apply when Mode is disable.
type DisableOptions struct {
	RemoveEmail    bool
	BanEmail       bool
	RemovePassword bool
	// DisabledGroupID is added to the secondary groups when non-zero.
	DisabledGroupID int
}

// DeleteOptions apply when Mode is delete.
type DeleteOptions struct {
	BanEmail bool
}

// DeletionPolicy is the read-only configuration consulted by the deletion
// workflow. It is resolved when needed and never mutated.
type DeletionPolicy struct {
	Mode              DeletionMode
	CoolingOff        time.Duration
	ReminderLead      time.Duration
	RandomiseUsername bool
	Disable           DisableOptions
	Delete            DeleteOptions
}

// BanEmail reports whether the active mode bans the original email address.
func (p DeletionPolicy) BanEmail() bool {
	switch p.Mode {
	case DeletionModeDisable:
		return p.Disable.BanEmail
	case DeletionModeDelete:
		return p.Delete.BanEmail
	}
	return false
}
