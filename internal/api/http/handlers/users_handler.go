package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/accountops/account-deletion/internal/api/dto"
	"github.com/accountops/account-deletion/internal/auth"
	"github.com/accountops/account-deletion/internal/domain"
	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

// UserAuth is the end-user side of the auth service.
type UserAuth interface {
	RegisterUser(ctx context.Context, username, email, password, language string) (*domain.User, string, time.Time, error)
	LoginUser(ctx context.Context, email, password string) (*domain.User, string, time.Time, error)
	Logout(ctx context.Context, userID string) error
}

// UsersHandler exposes auth endpoints for end-users.
type UsersHandler struct {
	auth UserAuth
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService UserAuth) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Register handles POST /auth/users/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	user, token, exp, err := h.auth.RegisterUser(c.UserContext(), req.Username, req.Email, req.Password, req.Language)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Login handles POST /auth/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	user, token, exp, err := h.auth.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Logout handles POST /auth/users/logout and revokes every issued token.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.User.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func userResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		State:    string(u.State),
		Language: u.Language,
	}
}
