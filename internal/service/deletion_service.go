package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/events"
	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/notify"
	"github.com/accountops/account-deletion/internal/repository"
)

// ScheduleOptions tunes a schedule call.
type ScheduleOptions struct {
	SendEmail bool
	// RunImmediatelyIfDue enqueues the execution right away when the cooling-off
	// period is already over, skipping reminder and scheduled email.
	RunImmediatelyIfDue bool
}

// DeletionStatusView is the caller-facing state of a user's latest request.
type DeletionStatusView struct {
	Request      *domain.DeletionRequest
	NextReminder *time.Time
	NextDeletion *time.Time
}

// DeletionService owns the deletion request lifecycle: schedule, cancel,
// reminder and execution. Every operation holds a per-user lock so that the
// status write and the job (de)registration happen as one unit.
type DeletionService struct {
	deletions  repository.DeletionRepository
	users      repository.UserRepository
	scheduler  jobs.Scheduler
	notifier   Notifier
	locker     Locker
	policy     PolicyProvider
	usernames  UsernameGenerator
	engine     *ExecutionEngine
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
}

// DeletionDependencies groups the collaborators of the service.
type DeletionDependencies struct {
	Deletions  repository.DeletionRepository
	Users      repository.UserRepository
	Scheduler  jobs.Scheduler
	Notifier   Notifier
	Locker     Locker
	Policy     PolicyProvider
	Usernames  UsernameGenerator
	Engine     *ExecutionEngine
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewDeletionService builds the service.
func NewDeletionService(deps DeletionDependencies) *DeletionService {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Usernames == nil {
		deps.Usernames = NewUsernameGenerator("")
	}
	return &DeletionService{
		deletions:  deps.Deletions,
		users:      deps.Users,
		scheduler:  deps.Scheduler,
		notifier:   deps.Notifier,
		locker:     deps.Locker,
		policy:     deps.Policy,
		usernames:  deps.Usernames,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// Schedule creates or refreshes the user's pending request and logs the user
// out. sessions must be non-nil.
func (s *DeletionService) Schedule(ctx context.Context, userID, reason string, sessions SessionTerminator, opts ScheduleOptions) (*domain.DeletionRequest, error) {
	if sessions == nil {
		return nil, ErrInvalidInvocation
	}

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	policy := s.policy.DeletionPolicy()
	now := s.clock.Now()

	req, created, err := s.deletions.GetOrCreatePending(ctx, &domain.DeletionRequest{
		UserID:         user.ID,
		Username:       user.Username,
		Reason:         reason,
		InitiationDate: now,
		EndDate:        now.Add(policy.CoolingOff),
		Status:         domain.DeletionStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("get or create deletion request: %w", err)
	}
	if !created {
		req.Reason = reason
		req.EndDate = req.InitiationDate.Add(policy.CoolingOff)
		if err := s.deletions.Save(ctx, req); err != nil {
			return nil, fmt.Errorf("save deletion request: %w", err)
		}
	}

	if err := sessions.InvalidateSessions(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("invalidate sessions: %w", err)
	}

	if opts.RunImmediatelyIfDue && req.Due(now) {
		if err := s.scheduler.EnqueueAt(ctx, jobs.ImmediateKey(user.ID), now, jobs.TypeRunDeletion, jobs.UserPayload{UserID: user.ID}); err != nil {
			return nil, err
		}
		s.publish(ctx, events.EventDeletionScheduled, req, events.DeletionScheduledPayload{
			EndDate: req.EndDate, Created: created, Immediate: true,
		})
		return req, nil
	}

	if err := s.syncJobs(ctx, req, policy, now); err != nil {
		return nil, err
	}

	if opts.SendEmail {
		s.sendScheduledEmail(ctx, user, req)
	}
	s.publish(ctx, events.EventDeletionScheduled, req, events.DeletionScheduledPayload{
		EndDate: req.EndDate, Created: created,
	})
	return req, nil
}

// Cancel moves the pending request to cancelled. It reports false when there
// was nothing to cancel.
func (s *DeletionService) Cancel(ctx context.Context, userID string, forced, sendEmail bool) (bool, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return false, err
	}
	defer unlock()

	return s.cancelLocked(ctx, userID, forced, sendEmail)
}

func (s *DeletionService) cancelLocked(ctx context.Context, userID string, forced, sendEmail bool) (bool, error) {
	req, err := s.deletions.GetPendingByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.deletions.MarkCancelled(ctx, req.ID); err != nil {
		if errors.Is(err, repository.ErrDeletionNotPending) {
			return false, nil
		}
		return false, err
	}
	req.Status = domain.DeletionStatusCancelled

	if err := s.syncJobs(ctx, req, s.policy.DeletionPolicy(), s.clock.Now()); err != nil {
		return true, err
	}
	if err := s.scheduler.Cancel(ctx, jobs.ImmediateKey(userID)); err != nil {
		return true, err
	}

	if sendEmail {
		s.sendCancelledEmail(ctx, userID, forced)
	}
	s.publish(ctx, events.EventDeletionCancelled, req, events.DeletionCancelledPayload{Forced: forced})
	return true, nil
}

// Execute runs the terminal action for an expired request. Stale or duplicate
// deliveries return nil without changes. A user that is ineligible or gone
// before the execution started gets a forced cancellation instead; once it
// started, every attempt finishes from the stored snapshot.
func (s *DeletionService) Execute(ctx context.Context, userID string, sendEmail bool) (*Outcome, error) {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	req, err := s.deletions.GetPendingByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !req.Due(now) {
		return nil, nil
	}

	policy := s.policy.DeletionPolicy()
	if req.Execution == nil && !policy.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeletionMode, policy.Mode)
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		if req.Execution != nil && req.Execution.Mode == domain.DeletionModeDelete {
			out, err := s.engine.Resume(ctx, req, policy, sendEmail)
			if err != nil {
				return nil, err
			}
			s.publishCompleted(ctx, req, out)
			return out, nil
		}
		s.logger.Info("deletion target no longer exists, cancelling", zap.String("user_id", userID))
		_, err := s.cancelLocked(ctx, userID, true, sendEmail)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if req.Execution == nil {
		if !user.CanDeleteSelf() {
			s.logger.Info("deletion target no longer eligible, cancelling", zap.String("user_id", userID))
			_, err := s.cancelLocked(ctx, userID, true, sendEmail)
			return nil, err
		}
		if err := s.beginExecution(ctx, req, user, policy, now); err != nil {
			return nil, err
		}
	}

	out, err := s.engine.Run(ctx, req, user, policy, sendEmail)
	if err != nil {
		return nil, err
	}
	s.publishCompleted(ctx, req, out)
	return out, nil
}

// beginExecution stores what a retry needs to reach the same end state once
// the account has been renamed or removed.
func (s *DeletionService) beginExecution(ctx context.Context, req *domain.DeletionRequest, user *domain.User, policy domain.DeletionPolicy, now time.Time) error {
	snap := domain.ExecutionSnapshot{
		Mode:      policy.Mode,
		Username:  user.Username,
		Email:     user.Email,
		Language:  user.Language,
		StartedAt: now,
	}
	if policy.RandomiseUsername {
		if name := s.usernames.Generate(user); name != user.Username {
			snap.NewUsername = name
		}
	}
	if err := s.deletions.BeginExecution(ctx, req.ID, snap); err != nil {
		return fmt.Errorf("begin execution: %w", err)
	}
	req.Execution = &snap
	return nil
}

// Resync registers the reminder and execution jobs of every pending request
// again. It recovers requests whose jobs were dropped or lost.
func (s *DeletionService) Resync(ctx context.Context) (int, error) {
	const page = 200
	var synced int
	for offset := 0; ; offset += page {
		batch, err := s.deletions.ListByStatus(ctx, domain.DeletionStatusPending, page, offset)
		if err != nil {
			return synced, fmt.Errorf("list pending deletions: %w", err)
		}
		for i := range batch {
			if err := s.resyncOne(ctx, batch[i].UserID); err != nil {
				return synced, err
			}
			synced++
		}
		if len(batch) < page {
			return synced, nil
		}
	}
}

func (s *DeletionService) resyncOne(ctx context.Context, userID string) error {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	req, err := s.deletions.GetPendingByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.syncJobs(ctx, req, s.policy.DeletionPolicy(), s.clock.Now()); err != nil {
		return fmt.Errorf("resync jobs for %s: %w", userID, err)
	}
	return nil
}

// SendReminder is the reminder tick for one user. The reminder is queued at
// most once per request; users without a deliverable address are skipped.
func (s *DeletionService) SendReminder(ctx context.Context, userID string) error {
	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()

	req, err := s.deletions.GetPendingByUserID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if user.Email == "" || user.State != domain.UserStateValid || req.ReminderSent {
		return nil
	}

	err = s.notifier.Queue(ctx, jobs.ReminderMailKey(userID), notify.TemplateDeletionReminder, recipientFor(user), map[string]any{
		"username": user.Username,
		"end_date": notify.FormatTime(req.EndDate),
	})
	if err != nil {
		return fmt.Errorf("queue reminder: %w", err)
	}

	if err := s.deletions.MarkReminderSent(ctx, req.ID); err != nil {
		if errors.Is(err, repository.ErrDeletionNotPending) {
			return nil
		}
		return err
	}
	req.ReminderSent = true
	s.publish(ctx, events.EventReminderSent, req, nil)
	return nil
}

// Status returns the latest request of the user with its upcoming job times.
func (s *DeletionService) Status(ctx context.Context, userID string) (*DeletionStatusView, error) {
	req, err := s.deletions.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &DeletionStatusView{Request: req}
	now := s.clock.Now()
	if at, ok := NextRemindTime(req, s.policy.DeletionPolicy(), now); ok {
		view.NextReminder = &at
	}
	if at, ok := NextDeletionTime(req, now); ok {
		view.NextDeletion = &at
	}
	return view, nil
}

// List returns requests in the given status, soonest deadline first.
func (s *DeletionService) List(ctx context.Context, status domain.DeletionStatus, limit, offset int) ([]domain.DeletionRequest, error) {
	return s.deletions.ListByStatus(ctx, status, limit, offset)
}

func (s *DeletionService) syncJobs(ctx context.Context, req *domain.DeletionRequest, policy domain.DeletionPolicy, now time.Time) error {
	payload := jobs.UserPayload{UserID: req.UserID}

	if at, ok := NextRemindTime(req, policy, now); ok {
		if err := s.scheduler.EnqueueAt(ctx, jobs.ReminderKey(req.UserID), at, jobs.TypeSendReminder, payload); err != nil {
			return err
		}
	} else if err := s.scheduler.Cancel(ctx, jobs.ReminderKey(req.UserID)); err != nil {
		return err
	}

	if at, ok := NextDeletionTime(req, now); ok {
		return s.scheduler.EnqueueAt(ctx, jobs.RunnerKey(req.UserID), at, jobs.TypeRunDeletion, payload)
	}
	return s.scheduler.Cancel(ctx, jobs.RunnerKey(req.UserID))
}

func (s *DeletionService) lock(ctx context.Context, userID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, "account_delete:"+userID)
}

func (s *DeletionService) sendScheduledEmail(ctx context.Context, user *domain.User, req *domain.DeletionRequest) {
	if user.Email == "" || user.State != domain.UserStateValid {
		return
	}
	err := s.notifier.Send(ctx, notify.TemplateDeletionScheduled, recipientFor(user), map[string]any{
		"username": user.Username,
		"end_date": notify.FormatTime(req.EndDate),
	})
	if err != nil {
		s.logger.Warn("deletion scheduled email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *DeletionService) sendCancelledEmail(ctx context.Context, userID string, forced bool) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("load user for cancelled email", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	if user.Email == "" || user.State != domain.UserStateValid {
		return
	}
	err = s.notifier.Send(ctx, notify.TemplateDeletionCancelled, recipientFor(user), map[string]any{
		"username": user.Username,
		"forced":   forced,
	})
	if err != nil {
		s.logger.Warn("deletion cancelled email failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *DeletionService) publishCompleted(ctx context.Context, req *domain.DeletionRequest, out *Outcome) {
	s.publish(ctx, events.EventDeletionCompleted, req, events.DeletionCompletedPayload{
		Mode:        out.Mode,
		NewUsername: out.NewUsername,
		UserRemoved: out.UserRemoved,
	})
}

func (s *DeletionService) publish(ctx context.Context, eventType events.EventType, req *domain.DeletionRequest, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    req.UserID,
		RequestID: req.ID,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	})
}
