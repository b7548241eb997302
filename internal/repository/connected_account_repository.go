package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountops/account-deletion/internal/domain"
)

// ConnectedAccountRepository manages third-party identity links.
type ConnectedAccountRepository interface {
	ListByUser(ctx context.Context, userID string) ([]domain.ConnectedAccount, error)
	Delete(ctx context.Context, userID, provider string) error
	// RemoveFromProfile drops the provider from the profile-level index.
	RemoveFromProfile(ctx context.Context, userID, provider string) error
}

type connectedAccountRepository struct {
	pool *pgxpool.Pool
}

// NewConnectedAccountRepository returns a Postgres-backed implementation.
func NewConnectedAccountRepository(pool *pgxpool.Pool) ConnectedAccountRepository {
	return &connectedAccountRepository{pool: pool}
}

func (r *connectedAccountRepository) ListByUser(ctx context.Context, userID string) ([]domain.ConnectedAccount, error) {
	const query = `
        SELECT user_id, provider, provider_key, created_at
        FROM user_connected_accounts WHERE user_id=$1
        ORDER BY provider`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ConnectedAccount
	for rows.Next() {
		var acc domain.ConnectedAccount
		if err := rows.Scan(&acc.UserID, &acc.Provider, &acc.ProviderKey, &acc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *connectedAccountRepository) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.pool.Exec(ctx, `
        DELETE FROM user_connected_accounts WHERE user_id=$1 AND provider=$2`, userID, provider)
	return err
}

func (r *connectedAccountRepository) RemoveFromProfile(ctx context.Context, userID, provider string) error {
	_, err := r.pool.Exec(ctx, `
        UPDATE user_profiles SET connected_accounts = connected_accounts - $2::text
        WHERE user_id=$1`, userID, provider)
	return err
}
