package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/accountops/account-deletion/internal/domain"
)

// ErrDeletionNotPending is returned when a write expects a pending request but
// another writer already moved it to a terminal state.
var ErrDeletionNotPending = errors.New("deletion request is not pending")

// DeletionRepository persists account deletion requests.
type DeletionRepository interface {
	// GetOrCreatePending returns the user's pending request, inserting candidate
	// when none exists. created reports which of the two happened.
	GetOrCreatePending(ctx context.Context, candidate *domain.DeletionRequest) (req *domain.DeletionRequest, created bool, err error)
	GetPendingByUserID(ctx context.Context, userID string) (*domain.DeletionRequest, error)
	GetLatestByUserID(ctx context.Context, userID string) (*domain.DeletionRequest, error)
	ListByStatus(ctx context.Context, status domain.DeletionStatus, limit, offset int) ([]domain.DeletionRequest, error)
	Save(ctx context.Context, req *domain.DeletionRequest) error
	MarkCancelled(ctx context.Context, id int64) error
	MarkComplete(ctx context.Context, id int64, at time.Time) error
	MarkReminderSent(ctx context.Context, id int64) error
	// BeginExecution stores the execution snapshot on a pending request.
	BeginExecution(ctx context.Context, id int64, snapshot domain.ExecutionSnapshot) error
}

type deletionRepository struct {
	pool *pgxpool.Pool
}

// NewDeletionRepository returns a Postgres-backed implementation.
func NewDeletionRepository(pool *pgxpool.Pool) DeletionRepository {
	return &deletionRepository{pool: pool}
}

const deletionColumns = `id, user_id, username, reason, initiation_date, end_date, completion_date, status, reminder_sent,
        exec_mode, exec_username, exec_new_username, exec_email, exec_language, exec_started_at`

func (r *deletionRepository) GetOrCreatePending(ctx context.Context, candidate *domain.DeletionRequest) (*domain.DeletionRequest, bool, error) {
	const query = `
        INSERT INTO account_deletions (user_id, username, reason, initiation_date, end_date, status)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, 'pending')
        ON CONFLICT (user_id) WHERE status = 'pending' DO NOTHING
        RETURNING ` + deletionColumns

	req, err := scanDeletion(r.pool.QueryRow(ctx, query,
		candidate.UserID,
		candidate.Username,
		candidate.Reason,
		candidate.InitiationDate,
		candidate.EndDate,
	))
	if err == nil {
		return req, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.GetPendingByUserID(ctx, candidate.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *deletionRepository) GetPendingByUserID(ctx context.Context, userID string) (*domain.DeletionRequest, error) {
	const query = `
        SELECT ` + deletionColumns + `
        FROM account_deletions WHERE user_id=$1 AND status='pending'`
	return scanDeletion(r.pool.QueryRow(ctx, query, userID))
}

func (r *deletionRepository) GetLatestByUserID(ctx context.Context, userID string) (*domain.DeletionRequest, error) {
	const query = `
        SELECT ` + deletionColumns + `
        FROM account_deletions WHERE user_id=$1
        ORDER BY id DESC LIMIT 1`
	return scanDeletion(r.pool.QueryRow(ctx, query, userID))
}

func (r *deletionRepository) ListByStatus(ctx context.Context, status domain.DeletionStatus, limit, offset int) ([]domain.DeletionRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
        SELECT ` + deletionColumns + `
        FROM account_deletions WHERE status=$1
        ORDER BY end_date ASC, id ASC
        LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeletionRequest
	for rows.Next() {
		req, err := scanDeletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *deletionRepository) Save(ctx context.Context, req *domain.DeletionRequest) error {
	const query = `
        UPDATE account_deletions SET reason=NULLIF($1, ''), end_date=$2
        WHERE id=$3 AND status='pending'`

	cmd, err := r.pool.Exec(ctx, query, req.Reason, req.EndDate, req.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDeletionNotPending
	}
	return nil
}

func (r *deletionRepository) MarkCancelled(ctx context.Context, id int64) error {
	const query = `
        UPDATE account_deletions SET status='cancelled'
        WHERE id=$1 AND status='pending'`
	return r.execPending(ctx, query, id)
}

func (r *deletionRepository) MarkComplete(ctx context.Context, id int64, at time.Time) error {
	const query = `
        UPDATE account_deletions SET status='complete', completion_date=$2
        WHERE id=$1 AND status='pending'`
	return r.execPending(ctx, query, id, at)
}

func (r *deletionRepository) MarkReminderSent(ctx context.Context, id int64) error {
	const query = `
        UPDATE account_deletions SET reminder_sent=TRUE
        WHERE id=$1 AND status='pending'`
	return r.execPending(ctx, query, id)
}

func (r *deletionRepository) BeginExecution(ctx context.Context, id int64, snapshot domain.ExecutionSnapshot) error {
	const query = `
        UPDATE account_deletions
        SET exec_mode=$2, exec_username=$3, exec_new_username=NULLIF($4, ''),
            exec_email=$5, exec_language=$6, exec_started_at=$7
        WHERE id=$1 AND status='pending'`
	return r.execPending(ctx, query, id,
		snapshot.Mode,
		snapshot.Username,
		snapshot.NewUsername,
		snapshot.Email,
		snapshot.Language,
		snapshot.StartedAt,
	)
}

func (r *deletionRepository) execPending(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDeletionNotPending
	}
	return nil
}

func scanDeletion(row pgx.Row) (*domain.DeletionRequest, error) {
	var (
		req    domain.DeletionRequest
		reason *string

		execMode        *string
		execUsername    *string
		execNewUsername *string
		execEmail       *string
		execLanguage    *string
		execStartedAt   *time.Time
	)
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.Username,
		&reason,
		&req.InitiationDate,
		&req.EndDate,
		&req.CompletionDate,
		&req.Status,
		&req.ReminderSent,
		&execMode,
		&execUsername,
		&execNewUsername,
		&execEmail,
		&execLanguage,
		&execStartedAt,
	); err != nil {
		return nil, err
	}
	if reason != nil {
		req.Reason = *reason
	}
	if execStartedAt != nil {
		req.Execution = &domain.ExecutionSnapshot{
			Mode:        domain.DeletionMode(deref(execMode)),
			Username:    deref(execUsername),
			NewUsername: deref(execNewUsername),
			Email:       deref(execEmail),
			Language:    deref(execLanguage),
			StartedAt:   *execStartedAt,
		}
	}
	return &req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
