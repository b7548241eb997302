package domain

import "time"

// BannedEmail is an entry on the banned email list.
type BannedEmail struct {
	Email         string
	Reason        string
	ActorUserID   string
	ActorUsername string
	CreatedAt     time.Time
}
