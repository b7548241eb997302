package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/jobs"
)

type fakeCleanups struct {
	mu      sync.Mutex
	renames [][3]string
	deletes []string
}

func (f *fakeCleanups) RenameCleanup(_ context.Context, userID, oldUsername, newUsername string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames = append(f.renames, [3]string{userID, oldUsername, newUsername})
	return nil
}

func (f *fakeCleanups) DeleteCleanup(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, userID)
	return nil
}

func jobWith(t *testing.T, jobType jobs.Type, payload any) jobs.Job {
	t.Helper()
	step, err := jobs.NewStep(jobType, payload)
	require.NoError(t, err)
	return jobs.Job{Key: "k", Type: jobType, Payload: step.Payload}
}

func TestRenameCleanupRewritesUsername(t *testing.T) {
	cleanups := &fakeCleanups{}
	svc := NewCleanupService(cleanups, newFakeAccounts(), nil, nil, zap.NewNop())

	err := svc.HandleRenameCleanup(context.Background(), jobWith(t, jobs.TypeUserRenameCleanup, jobs.RenameCleanupPayload{
		UserID: "u1", OriginalUsername: "alice", NewUsername: "DeletedMember1",
	}))
	require.NoError(t, err)
	assert.Equal(t, [][3]string{{"u1", "alice", "DeletedMember1"}}, cleanups.renames)
}

func TestDeleteCleanupClearsProvidersAndSessions(t *testing.T) {
	cleanups := &fakeCleanups{}
	accounts := newFakeAccounts(domain.ConnectedAccount{UserID: "u1", Provider: "github", ProviderKey: "gh"})
	github := &fakeProvider{}
	sessions := newFakeSessions()
	svc := NewCleanupService(cleanups, accounts, map[string]ProviderHandler{"github": github}, sessions, zap.NewNop())

	err := svc.HandleDeleteCleanup(context.Background(), jobWith(t, jobs.TypeUserDeleteCleanup, jobs.DeleteCleanupPayload{
		UserID: "u1", Username: "alice",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, cleanups.deletes)
	assert.Len(t, github.cleared, 1)
	assert.Equal(t, 1, sessions.count("u1"))
}
