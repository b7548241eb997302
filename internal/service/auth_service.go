package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/accountops/account-deletion/internal/auth"
	"github.com/accountops/account-deletion/internal/config"
	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/repository"
	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	staff      repository.StaffRepository
	bans       repository.BanRepository
	sessions   SessionTerminator
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo  repository.UserRepository
	StaffRepo repository.StaffRepository
	BanRepo   repository.BanRepository
	Sessions  SessionTerminator
	Tokens    *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	return &AuthService{
		users:      deps.UserRepo,
		staff:      deps.StaffRepo,
		bans:       deps.BanRepo,
		sessions:   deps.Sessions,
		tokenMgr:   tokens,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// RegisterUser creates a new end-user account.
func (s *AuthService) RegisterUser(ctx context.Context, username, email, password, language string) (*domain.User, string, time.Time, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	banned, err := s.bans.IsEmailBanned(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if banned {
		return nil, "", time.Time{}, apperrors.NewForbidden("email address is banned")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		State:        domain.UserStateValid,
		Language:     language,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, domain.SubjectTypeUser, nil)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// LoginUser authenticates an end-user. Disabled accounts and accounts without
// a local password cannot log in.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if user.State == domain.UserStateDisabled || !user.HasPassword() {
		return nil, "", time.Time{}, errInvalidCredentials
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errInvalidCredentials
	}
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, domain.SubjectTypeUser, nil)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// LoginStaff authenticates staff and returns role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error) {
	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if !staff.Active {
		return nil, "", time.Time{}, apperrors.NewForbidden("staff inactive")
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errInvalidCredentials
	}
	token, exp, err := s.tokenMgr.GenerateToken(staff.ID, domain.SubjectTypeStaff, &staff.Role)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return staff, token, exp, nil
}

// VerifyUserPassword confirms the caller knows the account password. Accounts
// without a local password pass, as they authenticate through a provider.
func (s *AuthService) VerifyUserPassword(ctx context.Context, user *domain.User, password string) error {
	if !user.HasPassword() {
		return nil
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return apperrors.NewValidationError("password is incorrect", map[string]any{"field": "password"})
	}
	return nil
}

// Logout revokes every token issued to the user so far.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.InvalidateSessions(ctx, userID)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
