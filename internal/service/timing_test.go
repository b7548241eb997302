package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/accountops/account-deletion/internal/domain"
)

func TestNextRemindTime(t *testing.T) {
	policy := domain.DeletionPolicy{CoolingOff: 7 * day, ReminderLead: day}
	pending := &domain.DeletionRequest{Status: domain.DeletionStatusPending, EndDate: testNow.Add(7 * day)}

	at, ok := NextRemindTime(pending, policy, testNow)
	assert.True(t, ok)
	assert.True(t, at.Equal(testNow.Add(6*day)))

	_, ok = NextRemindTime(pending, policy, testNow.Add(6*day+time.Second))
	assert.False(t, ok, "elapsed reminder is not rescheduled into the past")

	sent := *pending
	sent.ReminderSent = true
	_, ok = NextRemindTime(&sent, policy, testNow)
	assert.False(t, ok)

	cancelled := *pending
	cancelled.Status = domain.DeletionStatusCancelled
	_, ok = NextRemindTime(&cancelled, policy, testNow)
	assert.False(t, ok)

	_, ok = NextRemindTime(pending, domain.DeletionPolicy{CoolingOff: 7 * day}, testNow)
	assert.False(t, ok)
}

func TestNextDeletionTime(t *testing.T) {
	pending := &domain.DeletionRequest{Status: domain.DeletionStatusPending, EndDate: testNow.Add(day)}

	at, ok := NextDeletionTime(pending, testNow)
	assert.True(t, ok)
	assert.True(t, at.Equal(testNow.Add(day)))

	at, ok = NextDeletionTime(pending, testNow.Add(2*day))
	assert.True(t, ok)
	assert.True(t, at.Equal(testNow.Add(2*day)))

	complete := *pending
	complete.Status = domain.DeletionStatusComplete
	_, ok = NextDeletionTime(&complete, testNow)
	assert.False(t, ok)
}

func TestUsernameGeneratorIsStablePerUser(t *testing.T) {
	g := NewUsernameGenerator("Gone")
	a := g.Generate(&domain.User{ID: "u1"})
	assert.Equal(t, a, g.Generate(&domain.User{ID: "u1"}))
	assert.NotEqual(t, a, g.Generate(&domain.User{ID: "u2"}))
	assert.Regexp(t, `^Gone[0-9a-f]{12}$`, a)
	assert.LessOrEqual(t, len(a), 50)

	assert.Regexp(t, `^DeletedMember`, NewUsernameGenerator("  ").Generate(&domain.User{ID: "u1"}))
}
