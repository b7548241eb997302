package service

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/notify"
	"github.com/accountops/account-deletion/internal/repository"
)

const banReason = "Account deleted at the owner's request"

// Outcome describes what an execution did to the account.
type Outcome struct {
	Mode             domain.DeletionMode
	OriginalUsername string
	// NewUsername is empty when no rename happened.
	NewUsername string
	UserRemoved bool
	CompletedAt time.Time
}

// ExecutionEngine applies the terminal action to an expired request.
type ExecutionEngine struct {
	users     repository.UserRepository
	accounts  repository.ConnectedAccountRepository
	bans      repository.BanRepository
	deletions repository.DeletionRepository
	scheduler jobs.Scheduler
	notifier  Notifier
	providers map[string]ProviderHandler
	clock     clock.Clock
	logger    *zap.Logger
}

// EngineDependencies groups the collaborators of the engine.
type EngineDependencies struct {
	Users     repository.UserRepository
	Accounts  repository.ConnectedAccountRepository
	Bans      repository.BanRepository
	Deletions repository.DeletionRepository
	Scheduler jobs.Scheduler
	Notifier  Notifier
	Providers map[string]ProviderHandler
	Clock     clock.Clock
	Logger    *zap.Logger
}

// NewExecutionEngine builds the engine.
func NewExecutionEngine(deps EngineDependencies) *ExecutionEngine {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &ExecutionEngine{
		users:     deps.Users,
		accounts:  deps.Accounts,
		bans:      deps.Bans,
		deletions: deps.Deletions,
		scheduler: deps.Scheduler,
		notifier:  deps.Notifier,
		providers: deps.Providers,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

// Run applies policy to user and completes req. req.Execution must hold the
// snapshot stored before the first attempt; it decides the mode, the new name
// and the address that is notified and banned.
func (e *ExecutionEngine) Run(ctx context.Context, req *domain.DeletionRequest, user *domain.User, policy domain.DeletionPolicy, sendEmail bool) (*Outcome, error) {
	snap := req.Execution
	if snap == nil {
		return nil, ErrExecutionNotStarted
	}
	policy.Mode = snap.Mode
	out := &Outcome{Mode: snap.Mode, OriginalUsername: snap.Username, NewUsername: snap.NewUsername}

	var removeEmail bool
	switch snap.Mode {
	case domain.DeletionModeDisable:
		removeEmail = policy.Disable.RemoveEmail
		if err := e.disable(ctx, user, policy.Disable, snap.NewUsername); err != nil {
			return nil, err
		}
	case domain.DeletionModeDelete:
		if err := e.remove(ctx, user, snap.NewUsername); err != nil {
			return nil, err
		}
		out.UserRemoved = true
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeletionMode, snap.Mode)
	}

	if err := e.finalize(ctx, req, user.ID, snapshotRecipient(snap), out, removeEmail, policy.BanEmail(), sendEmail); err != nil {
		return nil, err
	}
	return out, nil
}

// Resume finishes a delete-mode execution whose earlier attempt removed the
// user record and then failed. Ban, cleanup and completion email are replayed
// from the stored snapshot.
func (e *ExecutionEngine) Resume(ctx context.Context, req *domain.DeletionRequest, policy domain.DeletionPolicy, sendEmail bool) (*Outcome, error) {
	snap := req.Execution
	if snap == nil || snap.Mode != domain.DeletionModeDelete {
		return nil, ErrExecutionNotStarted
	}
	policy.Mode = snap.Mode
	out := &Outcome{
		Mode:             snap.Mode,
		OriginalUsername: snap.Username,
		NewUsername:      snap.NewUsername,
		UserRemoved:      true,
	}
	if err := e.finalize(ctx, req, req.UserID, snapshotRecipient(snap), out, false, policy.BanEmail(), sendEmail); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ExecutionEngine) disable(ctx context.Context, user *domain.User, opts domain.DisableOptions, newUsername string) error {
	if opts.DisabledGroupID != 0 && !user.InSecondaryGroup(opts.DisabledGroupID) {
		user.SecondaryGroupIDs = append(user.SecondaryGroupIDs, opts.DisabledGroupID)
	}
	if opts.RemovePassword {
		user.PasswordHash = ""
	}
	user.State = domain.UserStateDisabled
	if err := e.users.Update(ctx, user); err != nil {
		return fmt.Errorf("disable user: %w", err)
	}

	if opts.RemovePassword {
		if err := e.revokeConnectedAccounts(ctx, user.ID); err != nil {
			return err
		}
	}

	if newUsername != "" && user.Username != newUsername {
		if err := e.users.Rename(ctx, user.ID, newUsername, repository.UserWriteOptions{SkipCleanup: true}); err != nil {
			return fmt.Errorf("rename user: %w", err)
		}
	}
	return nil
}

func (e *ExecutionEngine) revokeConnectedAccounts(ctx context.Context, userID string) error {
	accounts, err := e.accounts.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list connected accounts: %w", err)
	}
	for _, acc := range accounts {
		if handler, ok := e.providers[acc.Provider]; ok {
			if err := handler.ClearProviderData(ctx, acc); err != nil {
				return fmt.Errorf("clear %s state: %w", acc.Provider, err)
			}
		}
		if err := e.accounts.Delete(ctx, userID, acc.Provider); err != nil {
			return fmt.Errorf("revoke %s: %w", acc.Provider, err)
		}
		if err := e.accounts.RemoveFromProfile(ctx, userID, acc.Provider); err != nil {
			return fmt.Errorf("unlink %s from profile: %w", acc.Provider, err)
		}
	}
	return nil
}

func (e *ExecutionEngine) remove(ctx context.Context, user *domain.User, newUsername string) error {
	skip := repository.UserWriteOptions{SkipCleanup: true}
	if newUsername != "" && user.Username != newUsername {
		if err := e.users.Rename(ctx, user.ID, newUsername, skip); err != nil {
			return fmt.Errorf("rename user: %w", err)
		}
	}
	if err := e.users.Delete(ctx, user.ID, skip); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// finalize is safe to repeat. Cleanup is registered before the status write
// so a failure in between leaves a pending request that the next attempt
// finishes; the completion email goes out once the request is complete.
func (e *ExecutionEngine) finalize(ctx context.Context, req *domain.DeletionRequest, userID string, to notify.Recipient, out *Outcome, removeEmail, banEmail, sendEmail bool) error {
	if to.Email != "" && removeEmail && !out.UserRemoved {
		if err := e.users.ClearEmail(ctx, userID); err != nil {
			return fmt.Errorf("clear email: %w", err)
		}
	}

	if to.Email != "" && banEmail {
		banned, err := e.bans.IsEmailBanned(ctx, to.Email)
		if err != nil {
			return fmt.Errorf("check ban list: %w", err)
		}
		if !banned {
			if err := e.bans.BanEmail(ctx, &domain.BannedEmail{
				Email:         to.Email,
				Reason:        banReason,
				ActorUserID:   userID,
				ActorUsername: to.Name,
			}); err != nil {
				return fmt.Errorf("ban email: %w", err)
			}
		}
	}

	if err := e.enqueueCleanup(ctx, userID, out); err != nil {
		return fmt.Errorf("enqueue cleanup: %w", err)
	}

	now := e.clock.Now()
	if err := e.deletions.MarkComplete(ctx, req.ID, now); err != nil {
		return err
	}
	out.CompletedAt = now
	req.Status = domain.DeletionStatusComplete
	req.CompletionDate = &now

	if sendEmail && to.Email != "" {
		err := e.notifier.Send(ctx, notify.TemplateDeletionCompleted, to, map[string]any{
			"username": to.Name,
			"time":     notify.FormatTime(now),
		})
		if err != nil {
			e.logger.Warn("deletion completed email failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

func (e *ExecutionEngine) enqueueCleanup(ctx context.Context, userID string, out *Outcome) error {
	var steps []jobs.Step

	if out.NewUsername != "" {
		step, err := jobs.NewStep(jobs.TypeUserRenameCleanup, jobs.RenameCleanupPayload{
			UserID:           userID,
			OriginalUsername: out.OriginalUsername,
			NewUsername:      out.NewUsername,
		})
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}

	if out.UserRemoved {
		username := out.OriginalUsername
		if out.NewUsername != "" {
			username = out.NewUsername
		}
		step, err := jobs.NewStep(jobs.TypeUserDeleteCleanup, jobs.DeleteCleanupPayload{
			UserID:   userID,
			Username: username,
		})
		if err != nil {
			return err
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil
	}
	return e.scheduler.EnqueueAt(ctx, jobs.CleanupKey(userID), e.clock.Now(), jobs.TypeAtomic, jobs.AtomicPayload{Execute: steps})
}

func snapshotRecipient(snap *domain.ExecutionSnapshot) notify.Recipient {
	return notify.Recipient{Email: snap.Email, Name: snap.Username, Language: snap.Language}
}
