package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/accountops/account-deletion/internal/api/dto"
	"github.com/accountops/account-deletion/internal/auth"
	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/service"
	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

// DeletionManager is the slice of the deletion service used over HTTP.
type DeletionManager interface {
	Schedule(ctx context.Context, userID, reason string, sessions service.SessionTerminator, opts service.ScheduleOptions) (*domain.DeletionRequest, error)
	Cancel(ctx context.Context, userID string, forced, sendEmail bool) (bool, error)
	Status(ctx context.Context, userID string) (*service.DeletionStatusView, error)
	List(ctx context.Context, status domain.DeletionStatus, limit, offset int) ([]domain.DeletionRequest, error)
}

// PasswordVerifier confirms a user's current password.
type PasswordVerifier interface {
	VerifyUserPassword(ctx context.Context, user *domain.User, password string) error
}

// DeletionHandler exposes self-service account deletion.
type DeletionHandler struct {
	deletions DeletionManager
	passwords PasswordVerifier
	sessions  service.SessionTerminator
}

// NewDeletionHandler constructs handler.
func NewDeletionHandler(deletions DeletionManager, passwords PasswordVerifier, sessions service.SessionTerminator) *DeletionHandler {
	return &DeletionHandler{deletions: deletions, passwords: passwords, sessions: sessions}
}

// Request handles POST /account/deletion. The caller is logged out everywhere
// once the request is recorded.
func (h *DeletionHandler) Request(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req dto.DeletionCreateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if !user.CanDeleteSelf() {
		return apperrors.NewForbidden("account deletion is not available for this account")
	}

	ctx := c.UserContext()
	if err := h.passwords.VerifyUserPassword(ctx, user, req.Password); err != nil {
		return err
	}

	deletion, err := h.deletions.Schedule(ctx, user.ID, req.Reason, h.sessions, service.ScheduleOptions{
		SendEmail:           true,
		RunImmediatelyIfDue: true,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": deletionResponse(deletion)})
}

// Status handles GET /account/deletion.
func (h *DeletionHandler) Status(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	view, err := h.deletions.Status(c.UserContext(), user.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("deletion request", nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DeletionStatusResponse{
		Request:      deletionResponse(view.Request),
		NextReminder: view.NextReminder,
		NextDeletion: view.NextDeletion,
	}})
}

// Cancel handles POST /account/deletion/cancel.
func (h *DeletionHandler) Cancel(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	cancelled, err := h.deletions.Cancel(c.UserContext(), user.ID, false, true)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DeletionCancelResponse{Cancelled: cancelled}})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}

func deletionResponse(d *domain.DeletionRequest) dto.DeletionResponse {
	return dto.DeletionResponse{
		ID:             d.ID,
		UserID:         d.UserID,
		Username:       d.Username,
		Reason:         d.Reason,
		Status:         string(d.Status),
		InitiationDate: d.InitiationDate,
		EndDate:        d.EndDate,
		CompletionDate: d.CompletionDate,
		ReminderSent:   d.ReminderSent,
	}
}
