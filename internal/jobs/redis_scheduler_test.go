package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, lease time.Duration) *RedisScheduler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisScheduler(client, "test-jobs", lease)
}

func TestEnqueueAtReplacesExistingKey(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, RunnerKey("u1"), now.Add(48*time.Hour), TypeRunDeletion, UserPayload{UserID: "u1"}))
	require.NoError(t, s.EnqueueAt(ctx, RunnerKey("u1"), now.Add(time.Hour), TypeRunDeletion, UserPayload{UserID: "u1"}))

	job, err := s.Get(ctx, RunnerKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, TypeRunDeletion, job.Type)
	assert.True(t, job.RunAt.Equal(now.Add(time.Hour)))

	claimed, err := s.ClaimDue(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	var payload UserPayload
	require.NoError(t, claimed[0].Decode(&payload))
	assert.Equal(t, "u1", payload.UserID)
}

func TestCancelRemovesJob(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Now()

	require.NoError(t, s.EnqueueAt(ctx, ReminderKey("u1"), now, TypeSendReminder, UserPayload{UserID: "u1"}))
	require.NoError(t, s.Cancel(ctx, ReminderKey("u1")))
	require.NoError(t, s.Cancel(ctx, ReminderKey("missing")))

	_, err := s.Get(ctx, ReminderKey("u1"))
	assert.ErrorIs(t, err, ErrJobNotFound)

	claimed, err := s.ClaimDue(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaimDueSkipsFutureJobsAndRespectsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, "a", now.Add(-2*time.Minute), TypeSendMail, map[string]string{}))
	require.NoError(t, s.EnqueueAt(ctx, "b", now.Add(-time.Minute), TypeSendMail, map[string]string{}))
	require.NoError(t, s.EnqueueAt(ctx, "c", now.Add(time.Minute), TypeSendMail, map[string]string{}))

	claimed, err := s.ClaimDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "a", claimed[0].Key)

	claimed, err = s.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "b", claimed[0].Key)

	_, err = s.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestExpiredLeaseIsRedelivered(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, "k", now, TypeRunDeletion, UserPayload{UserID: "u1"}))

	claimed, err := s.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Still leased: nothing to claim.
	claimed, err = s.ClaimDue(ctx, now.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = s.ClaimDue(ctx, now.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "k", claimed[0].Key)
}

func TestAckReleasesLease(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, "k", now, TypeRunDeletion, UserPayload{UserID: "u1"}))
	claimed, err := s.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, s.Ack(ctx, claimed[0]))

	claimed, err = s.ClaimDue(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestRetryYieldsToNewerRegistration(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, "k", now, TypeRunDeletion, UserPayload{UserID: "old"}))
	claimed, err := s.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, s.EnqueueAt(ctx, "k", now.Add(time.Hour), TypeRunDeletion, UserPayload{UserID: "new"}))

	job := claimed[0]
	job.Attempts++
	require.NoError(t, s.Retry(ctx, job, now.Add(time.Minute)))

	stored, err := s.Get(ctx, "k")
	require.NoError(t, err)
	var payload UserPayload
	require.NoError(t, stored.Decode(&payload))
	assert.Equal(t, "new", payload.UserID)
	assert.Zero(t, stored.Attempts)
}

func TestRetryReschedulesWithAttempts(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.EnqueueAt(ctx, "k", now, TypeRunDeletion, UserPayload{UserID: "u1"}))
	claimed, err := s.ClaimDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	job := claimed[0]
	job.Attempts++
	require.NoError(t, s.Retry(ctx, job, now.Add(30*time.Second)))

	claimed, err = s.ClaimDue(ctx, now.Add(10*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = s.ClaimDue(ctx, now.Add(30*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, 1, claimed[0].Attempts)
}
