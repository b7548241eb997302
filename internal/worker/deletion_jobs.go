package worker

import (
	"context"

	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/service"
)

// RegisterDeletionJobs binds the account deletion job types to their services.
func RegisterDeletionJobs(r *Runner, deletions *service.DeletionService, cleanup *service.CleanupService, notifications *service.NotificationService) {
	r.Register(jobs.TypeSendReminder, func(ctx context.Context, job jobs.Job) error {
		var payload jobs.UserPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		return deletions.SendReminder(ctx, payload.UserID)
	})

	r.Register(jobs.TypeRunDeletion, func(ctx context.Context, job jobs.Job) error {
		var payload jobs.UserPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		_, err := deletions.Execute(ctx, payload.UserID, true)
		return err
	})

	r.Register(jobs.TypeUserRenameCleanup, cleanup.HandleRenameCleanup)
	r.Register(jobs.TypeUserDeleteCleanup, cleanup.HandleDeleteCleanup)
	r.Register(jobs.TypeSendMail, notifications.HandleSendMail)
}
