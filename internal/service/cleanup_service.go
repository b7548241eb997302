package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/repository"
)

// CleanupService runs the follow-up jobs enqueued after an account was renamed
// or removed.
type CleanupService struct {
	cleanups  repository.CleanupRepository
	accounts  repository.ConnectedAccountRepository
	providers map[string]ProviderHandler
	sessions  SessionTerminator
	logger    *zap.Logger
}

// NewCleanupService builds the service.
func NewCleanupService(cleanups repository.CleanupRepository, accounts repository.ConnectedAccountRepository, providers map[string]ProviderHandler, sessions SessionTerminator, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{
		cleanups:  cleanups,
		accounts:  accounts,
		providers: providers,
		sessions:  sessions,
		logger:    logger,
	}
}

// HandleRenameCleanup rewrites data that still carries the old username.
func (s *CleanupService) HandleRenameCleanup(ctx context.Context, job jobs.Job) error {
	var payload jobs.RenameCleanupPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	if payload.OriginalUsername == payload.NewUsername {
		return nil
	}
	return s.cleanups.RenameCleanup(ctx, payload.UserID, payload.OriginalUsername, payload.NewUsername)
}

// HandleDeleteCleanup removes rows and provider state left behind by a removed
// user and revokes any session still around.
func (s *CleanupService) HandleDeleteCleanup(ctx context.Context, job jobs.Job) error {
	var payload jobs.DeleteCleanupPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	accounts, err := s.accounts.ListByUser(ctx, payload.UserID)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		handler, ok := s.providers[acc.Provider]
		if !ok {
			continue
		}
		if err := handler.ClearProviderData(ctx, acc); err != nil {
			return fmt.Errorf("clear %s state: %w", acc.Provider, err)
		}
	}

	if err := s.cleanups.DeleteCleanup(ctx, payload.UserID); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.InvalidateSessions(ctx, payload.UserID); err != nil {
			return err
		}
	}
	s.logger.Info("user delete cleanup done", zap.String("user_id", payload.UserID), zap.String("username", payload.Username))
	return nil
}
