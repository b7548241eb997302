package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CleanupRepository removes or rewrites data derived from a user record after
// a rename or removal.
type CleanupRepository interface {
	RenameCleanup(ctx context.Context, userID, oldUsername, newUsername string) error
	DeleteCleanup(ctx context.Context, userID string) error
}

type cleanupRepository struct {
	pool *pgxpool.Pool
}

// NewCleanupRepository returns a Postgres-backed implementation.
func NewCleanupRepository(pool *pgxpool.Pool) CleanupRepository {
	return &cleanupRepository{pool: pool}
}

func (r *cleanupRepository) RenameCleanup(ctx context.Context, userID, oldUsername, newUsername string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return renameCleanup(ctx, tx, userID, oldUsername, newUsername)
	})
}

func (r *cleanupRepository) DeleteCleanup(ctx context.Context, userID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return deleteCleanup(ctx, tx, userID)
	})
}

func renameCleanup(ctx context.Context, db execer, userID, oldUsername, newUsername string) error {
	if _, err := db.Exec(ctx, `
        UPDATE user_profiles SET display_name=$3
        WHERE user_id=$1 AND display_name=$2`, userID, oldUsername, newUsername); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `
        UPDATE banned_emails SET actor_username=$2
        WHERE actor_user_id=$1`, userID, newUsername)
	return err
}

func deleteCleanup(ctx context.Context, db execer, userID string) error {
	if _, err := db.Exec(ctx, `DELETE FROM user_connected_accounts WHERE user_id=$1`, userID); err != nil {
		return err
	}
	_, err := db.Exec(ctx, `DELETE FROM user_profiles WHERE user_id=$1`, userID)
	return err
}
