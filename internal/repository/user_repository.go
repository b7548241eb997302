package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountops/account-deletion/internal/domain"
)

// UserWriteOptions tunes privileged user writes.
type UserWriteOptions struct {
	// SkipCleanup leaves derived data in place; the caller schedules its own
	// consolidated cleanup instead.
	SkipCleanup bool
}

// UserRepository defines persistence access for end-users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Rename bypasses username validation so reserved names can be assigned.
	Rename(ctx context.Context, id, username string, opts UserWriteOptions) error
	ClearEmail(ctx context.Context, id string) error
	Delete(ctx context.Context, id string, opts UserWriteOptions) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, user_state, language, secondary_group_ids,
        is_banned, self_delete_blocked, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Language == "" {
		user.Language = "en"
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
            INSERT INTO users (id, username, email, password_hash, user_state, language, secondary_group_ids)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING created_at, updated_at`

		if err := tx.QueryRow(ctx, query,
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			user.State,
			user.Language,
			toInt32s(user.SecondaryGroupIDs),
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO user_profiles (user_id, display_name) VALUES ($1, $2)
            ON CONFLICT (user_id) DO NOTHING`, user.ID, user.Username)
		return err
	})
}

// Update writes mutable fields. The username is changed through Rename only.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, password_hash=$2, user_state=$3, language=$4,
            secondary_group_ids=$5, is_banned=$6, self_delete_blocked=$7, updated_at=NOW()
        WHERE id=$8`

	cmd, err := r.pool.Exec(ctx, query,
		user.Email,
		user.PasswordHash,
		user.State,
		user.Language,
		toInt32s(user.SecondaryGroupIDs),
		user.IsBanned,
		user.SelfDeleteBlocked,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1 AND email <> ''`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) Rename(ctx context.Context, id, username string, opts UserWriteOptions) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var oldUsername string
		if err := tx.QueryRow(ctx, `SELECT username FROM users WHERE id=$1 FOR UPDATE`, id).Scan(&oldUsername); err != nil {
			return err
		}
		if oldUsername == username {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE users SET username=$1, updated_at=NOW() WHERE id=$2`, username, id); err != nil {
			return err
		}
		if opts.SkipCleanup {
			return nil
		}
		return renameCleanup(ctx, tx, id, oldUsername, username)
	})
}

func (r *userRepository) ClearEmail(ctx context.Context, id string) error {
	return r.execUser(ctx, `UPDATE users SET email='', updated_at=NOW() WHERE id=$1`, id)
}

func (r *userRepository) Delete(ctx context.Context, id string, opts UserWriteOptions) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if opts.SkipCleanup {
			return nil
		}
		return deleteCleanup(ctx, tx, id)
	})
}

func (r *userRepository) execUser(ctx context.Context, query string, id string) error {
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user   domain.User
		groups []int32
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.State,
		&user.Language,
		&groups,
		&user.IsBanned,
		&user.SelfDeleteBlocked,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, g := range groups {
		user.SecondaryGroupIDs = append(user.SecondaryGroupIDs, int(g))
	}
	return &user, nil
}

func toInt32s(ids []int) []int32 {
	out := make([]int32, 0, len(ids))
	for _, id := range ids {
		out = append(out, int32(id))
	}
	return out
}
