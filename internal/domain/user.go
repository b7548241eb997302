package domain

import "time"

// UserState represents lifecycle states for an end-user.
type UserState string

const (
	UserStateValid        UserState = "valid"
	UserStateEmailConfirm UserState = "email_confirm"
	UserStateModerated    UserState = "moderated"
	UserStateDisabled     UserState = "disabled"
)

// User is the domain model for a community member.
type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	State             UserState
	Language          string
	SecondaryGroupIDs []int
	IsBanned          bool
	// SelfDeleteBlocked is set by staff to withdraw self-service deletion.
	SelfDeleteBlocked bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanDeleteSelf reports whether the user may still delete their own account.
// It is evaluated against the live record whenever a deletion fires.
func (u *User) CanDeleteSelf() bool {
	if u == nil {
		return false
	}
	return !u.IsBanned && !u.SelfDeleteBlocked
}

// HasPassword reports whether a local credential is set.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// InSecondaryGroup reports membership of the given group.
func (u *User) InSecondaryGroup(groupID int) bool {
	for _, id := range u.SecondaryGroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
