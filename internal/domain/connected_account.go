package domain

import "time"

// ConnectedAccount links a user to a third-party identity provider.
type ConnectedAccount struct {
	UserID      string
	Provider    string
	ProviderKey string
	CreatedAt   time.Time
}
