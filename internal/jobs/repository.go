package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigboard/backend/internal/models"
)

// IdempotencyRecord pins the outcome of a job operation so a repeated call
// returns the committed result instead of re-executing side effects. Keyed by
// (job_id, operation); written in the same transaction as the effects.
type IdempotencyRecord struct {
	JobID          uuid.UUID
	Operation      string
	ApplicationID  *uuid.UUID
	TransactionIDs []uuid.UUID
	CreatedAt      time.Time
}

// Operations recorded in idempotency_keys.
const (
	OpAccept   = "accept"
	OpComplete = "complete"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *Repository) Create(ctx context.Context, j *models.Job) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, poster_id, title, description, budget_minor, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, j.ID, j.PosterID, j.Title, j.Description, j.BudgetMinor, j.Currency, j.Status).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := r.pool.QueryRow(ctx, `
		SELECT id, poster_id, title, description, budget_minor, currency, status, fee_minor, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id).Scan(&j.ID, &j.PosterID, &j.Title, &j.Description, &j.BudgetMinor, &j.Currency, &j.Status, &j.FeeMinor, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// GetByIDForUpdate locks the job row. Call within a transaction.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := tx.QueryRow(ctx, `
		SELECT id, poster_id, title, description, budget_minor, currency, status, fee_minor, created_at, updated_at
		FROM jobs WHERE id = $1 FOR UPDATE
	`, id).Scan(&j.ID, &j.PosterID, &j.Title, &j.Description, &j.BudgetMinor, &j.Currency, &j.Status, &j.FeeMinor, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateStatusTx moves the job from one status to another inside the given
// transaction. The conditional WHERE makes the transition first-writer-wins:
// a raced update matches zero rows and returns ErrInvalidTransition.
func (r *Repository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE jobs SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SetFeeTx records the service fee charged at completion.
func (r *Repository) SetFeeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, feeMinor int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET fee_minor = $1, updated_at = now() WHERE id = $2
	`, feeMinor, id)
	return err
}

func (r *Repository) ListOpen(ctx context.Context) ([]*models.Job, error) {
	return r.list(ctx, `
		SELECT id, poster_id, title, description, budget_minor, currency, status, fee_minor, created_at, updated_at
		FROM jobs WHERE status = $1 ORDER BY created_at DESC
	`, models.JobStatusOpen)
}

func (r *Repository) ListByPosterID(ctx context.Context, posterID uuid.UUID) ([]*models.Job, error) {
	return r.list(ctx, `
		SELECT id, poster_id, title, description, budget_minor, currency, status, fee_minor, created_at, updated_at
		FROM jobs WHERE poster_id = $1 ORDER BY created_at DESC
	`, posterID)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.PosterID, &j.Title, &j.Description, &j.BudgetMinor, &j.Currency, &j.Status, &j.FeeMinor, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &j)
	}
	return list, rows.Err()
}

// GetIdempotencyTx fetches the record for (jobID, operation), locking it for
// the rest of the transaction. Returns pgx.ErrNoRows when absent.
func (r *Repository) GetIdempotencyTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, operation string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := tx.QueryRow(ctx, `
		SELECT job_id, operation, application_id, transaction_ids, created_at
		FROM idempotency_keys WHERE job_id = $1 AND operation = $2 FOR UPDATE
	`, jobID, operation).Scan(&rec.JobID, &rec.Operation, &rec.ApplicationID, &rec.TransactionIDs, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotencyTx inserts the record inside the given transaction.
func (r *Repository) CreateIdempotencyTx(ctx context.Context, tx pgx.Tx, rec *IdempotencyRecord) error {
	return tx.QueryRow(ctx, `
		INSERT INTO idempotency_keys (job_id, operation, application_id, transaction_ids)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, rec.JobID, rec.Operation, rec.ApplicationID, rec.TransactionIDs).Scan(&rec.CreatedAt)
}
