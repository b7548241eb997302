package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountops/account-deletion/internal/domain"
)

// BanRepository manages the banned email list.
type BanRepository interface {
	IsEmailBanned(ctx context.Context, email string) (bool, error)
	BanEmail(ctx context.Context, ban *domain.BannedEmail) error
}

type banRepository struct {
	pool *pgxpool.Pool
}

// NewBanRepository returns a Postgres-backed implementation.
func NewBanRepository(pool *pgxpool.Pool) BanRepository {
	return &banRepository{pool: pool}
}

func (r *banRepository) IsEmailBanned(ctx context.Context, email string) (bool, error) {
	var banned bool
	err := r.pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM banned_emails WHERE email=$1)`, normalizeEmail(email)).Scan(&banned)
	return banned, err
}

func (r *banRepository) BanEmail(ctx context.Context, ban *domain.BannedEmail) error {
	const query = `
        INSERT INTO banned_emails (email, reason, actor_user_id, actor_username)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (email) DO NOTHING
        RETURNING created_at`

	ban.Email = normalizeEmail(ban.Email)
	err := r.pool.QueryRow(ctx, query, ban.Email, ban.Reason, ban.ActorUserID, ban.ActorUsername).Scan(&ban.CreatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
