package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/accountops/account-deletion/internal/domain"
	"github.com/accountops/account-deletion/internal/repository"
	apperrors "github.com/accountops/account-deletion/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	User        *domain.User
	Staff       *domain.StaffMember
	Role        *domain.StaffRole
}

// RevocationLookup reports when a user's sessions were last invalidated.
type RevocationLookup interface {
	RevokedAt(ctx context.Context, userID string) (time.Time, bool, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	staff    repository.StaffRepository
	sessions RevocationLookup
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, staff repository.StaffRepository, sessions RevocationLookup) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, staff: staff, sessions: sessions}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	principal := &Principal{SubjectType: claims.Subject, Role: claims.Role}
	ctx := c.UserContext()

	switch claims.Subject {
	case domain.SubjectTypeUser:
		if err := m.checkRevocation(ctx, claims); err != nil {
			return err
		}
		user, err := m.users.GetByID(ctx, claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("user not found")
			}
			return apperrors.MapError(err)
		}
		if user.State == domain.UserStateDisabled {
			return apperrors.NewUnauthorized("account disabled")
		}
		principal.User = user
	case domain.SubjectTypeStaff:
		staff, err := m.staff.GetByID(ctx, claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewUnauthorized("staff not found")
			}
			return apperrors.MapError(err)
		}
		if !staff.Active {
			return apperrors.NewUnauthorized("staff account inactive")
		}
		principal.Staff = staff
	default:
		return apperrors.NewUnauthorized("unknown subject")
	}

	SetPrincipal(c, principal)
	return c.Next()
}

func (m *AuthMiddleware) checkRevocation(ctx context.Context, claims *Claims) error {
	if m.sessions == nil {
		return nil
	}
	revokedAt, ok, err := m.sessions.RevokedAt(ctx, claims.SubjectID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if ok && claims.IssuedAt().Before(revokedAt) {
		return apperrors.NewUnauthorized("session revoked")
	}
	return nil
}

// SetPrincipal attaches the authenticated entity to the request.
func SetPrincipal(c *fiber.Ctx, principal *Principal) {
	c.Locals(principalKey, principal)
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
