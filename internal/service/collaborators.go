package service

import (
	"context"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/notify"
)

// SessionTerminator logs a user out of every active session.
type SessionTerminator interface {
	InvalidateSessions(ctx context.Context, userID string) error
}

// Locker serialises work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Notifier delivers lifecycle emails. Send delivers now; Queue defers delivery
// to the job runner under key, so repeated queueing collapses into one mail.
type Notifier interface {
	Send(ctx context.Context, tmpl notify.Template, to notify.Recipient, vars map[string]any) error
	Queue(ctx context.Context, key string, tmpl notify.Template, to notify.Recipient, vars map[string]any) error
}

// PolicyProvider resolves the deletion policy at the moment it is needed.
type PolicyProvider interface {
	DeletionPolicy() domain.DeletionPolicy
}

// StaticPolicy serves a fixed policy.
type StaticPolicy domain.DeletionPolicy

func (p StaticPolicy) DeletionPolicy() domain.DeletionPolicy {
	return domain.DeletionPolicy(p)
}

// ProviderHandler clears whatever a third-party identity provider holds for a
// linked account.
type ProviderHandler interface {
	ClearProviderData(ctx context.Context, account domain.ConnectedAccount) error
}

func recipientFor(user *domain.User) notify.Recipient {
	return notify.Recipient{Email: user.Email, Name: user.Username, Language: user.Language}
}
