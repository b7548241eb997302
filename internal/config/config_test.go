package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountops/account-deletion/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DELETION_MODE", "")
	t.Setenv("DELETION_COOLING_OFF_DAYS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "account-deletion-service", cfg.App.Name)
	assert.Equal(t, string(domain.DeletionModeDisable), cfg.Deletion.Mode)
	assert.Equal(t, 7, cfg.Deletion.CoolingOffDays)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, []string{"google", "github"}, cfg.Auth.ConnectedProviders)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DELETION_MODE", "delete")
	t.Setenv("DELETION_COOLING_OFF_DAYS", "0")
	t.Setenv("DELETION_DELETE_BAN_EMAIL", "true")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("AUTH_CONNECTED_PROVIDERS", " facebook , ,twitter")

	cfg, err := Load()
	require.NoError(t, err)

	policy := cfg.DeletionPolicy()
	assert.Equal(t, domain.DeletionModeDelete, policy.Mode)
	assert.Zero(t, policy.CoolingOff)
	assert.True(t, policy.Delete.BanEmail)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	assert.Equal(t, []string{"facebook", "twitter"}, cfg.Auth.ConnectedProviders)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("DELETION_MODE", "shred")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELETION_MODE")
}

func TestDeletionPolicyDurations(t *testing.T) {
	cfg := &Config{Deletion: DeletionConfig{
		Mode:                   "disable",
		CoolingOffDays:         7,
		ReminderLeadDays:       1,
		DisableRemoveEmail:     true,
		DisableDisabledGroupID: 5,
	}}

	policy := cfg.DeletionPolicy()
	assert.Equal(t, 7*24*time.Hour, policy.CoolingOff)
	assert.Equal(t, 24*time.Hour, policy.ReminderLead)
	assert.True(t, policy.Disable.RemoveEmail)
	assert.Equal(t, 5, policy.Disable.DisabledGroupID)
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 3, getEnvAsInt("SOME_INT", 3))
}
