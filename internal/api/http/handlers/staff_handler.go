package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/accountops/account-deletion/internal/api/dto"
	"github.com/accountops/account-deletion/internal/domain"
	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

// StaffAuth authenticates staff members.
type StaffAuth interface {
	LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error)
}

// StaffHandler exposes staff login and deletion moderation endpoints.
type StaffHandler struct {
	auth      StaffAuth
	deletions DeletionManager
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService StaffAuth, deletions DeletionManager) *StaffHandler {
	return &StaffHandler{auth: authService, deletions: deletions}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	staff, token, exp, err := h.auth.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": staffResponse(staff),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// ListDeletions handles GET /staff/deletions.
func (h *StaffHandler) ListDeletions(c *fiber.Ctx) error {
	var q dto.DeletionListQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	status := domain.DeletionStatusPending
	if q.Status != "" {
		status = domain.DeletionStatus(q.Status)
	}
	if !status.Valid() {
		return apperrors.NewValidationError("invalid request", map[string]any{"status": "oneof"})
	}

	items, err := h.deletions.List(c.UserContext(), status, q.Limit, q.Offset)
	if err != nil {
		return err
	}
	out := make([]dto.DeletionResponse, 0, len(items))
	for i := range items {
		out = append(out, deletionResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// CancelDeletion handles POST /staff/deletions/:userID/cancel. Staff
// cancellations are recorded as forced.
func (h *StaffHandler) CancelDeletion(c *fiber.Ctx) error {
	userID := c.Params("userID")
	if userID == "" {
		return apperrors.NewValidationError("user id required", nil)
	}

	cancelled, err := h.deletions.Cancel(c.UserContext(), userID, true, true)
	if err != nil {
		return err
	}
	if !cancelled {
		return apperrors.NewNotFound("pending deletion request", map[string]any{"user_id": userID})
	}
	return c.JSON(fiber.Map{"data": dto.DeletionCancelResponse{Cancelled: true}})
}

func staffResponse(s *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:    s.ID,
		Name:  s.Name,
		Email: s.Email,
		Role:  string(s.Role),
	}
}
