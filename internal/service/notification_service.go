package service

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/notify"
)

// NotificationService renders lifecycle emails and hands them to the mailer,
// either immediately or through a send_mail job.
type NotificationService struct {
	renderer  *notify.Renderer
	mailer    notify.Mailer
	scheduler jobs.Scheduler
	clock     clock.Clock
	logger    *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(renderer *notify.Renderer, mailer notify.Mailer, scheduler jobs.Scheduler, clk clock.Clock, logger *zap.Logger) *NotificationService {
	if clk == nil {
		clk = clock.WallClock
	}
	return &NotificationService{
		renderer:  renderer,
		mailer:    mailer,
		scheduler: scheduler,
		clock:     clk,
		logger:    logger,
	}
}

// Send renders and delivers the message now. Recipients without an address
// are skipped.
func (n *NotificationService) Send(ctx context.Context, tmpl notify.Template, to notify.Recipient, vars map[string]any) error {
	if to.Email == "" {
		return nil
	}
	msg, err := n.renderer.Render(tmpl, to, vars)
	if err != nil {
		return err
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", tmpl, err)
	}
	n.logger.Debug("email sent", zap.String("template", string(tmpl)), zap.String("to", to.Email))
	return nil
}

// Queue registers a send_mail job under key for immediate delivery by the
// worker.
func (n *NotificationService) Queue(ctx context.Context, key string, tmpl notify.Template, to notify.Recipient, vars map[string]any) error {
	if to.Email == "" {
		return nil
	}
	return n.scheduler.EnqueueAt(ctx, key, n.clock.Now(), jobs.TypeSendMail, notify.MailPayload{
		Template:  tmpl,
		Recipient: to,
		Vars:      vars,
	})
}

// HandleSendMail delivers a queued message.
func (n *NotificationService) HandleSendMail(ctx context.Context, job jobs.Job) error {
	var payload notify.MailPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return n.Send(ctx, payload.Template, payload.Recipient, payload.Vars)
}
