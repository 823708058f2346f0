package applications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigboard/backend/internal/models"
)

// Repository is the pgx-backed application store. The partial unique index
// on (job_id) WHERE status = 'accepted' backs up the single-winner invariant
// at the storage layer.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts a pending application. The insert is conditional on the job
// row still being open, so it matches zero rows (pgx.ErrNoRows from Scan) when
// the job left open between the caller's check and the write.
func (r *Repository) Create(ctx context.Context, a *models.Application) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO applications (id, job_id, tasker_id, status, proposed_budget_minor, message)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $2 AND status = $7)
		RETURNING created_at, updated_at
	`, a.ID, a.JobID, a.TaskerID, a.Status, a.ProposedBudgetMinor, a.Message, models.JobStatusOpen).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var a models.Application
	err := r.pool.QueryRow(ctx, `
		SELECT id, job_id, tasker_id, status, proposed_budget_minor, message, created_at, updated_at
		FROM applications WHERE id = $1
	`, id).Scan(&a.ID, &a.JobID, &a.TaskerID, &a.Status, &a.ProposedBudgetMinor, &a.Message, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByIDForUpdate locks the application row. Call within a transaction.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Application, error) {
	var a models.Application
	err := tx.QueryRow(ctx, `
		SELECT id, job_id, tasker_id, status, proposed_budget_minor, message, created_at, updated_at
		FROM applications WHERE id = $1 FOR UPDATE
	`, id).Scan(&a.ID, &a.JobID, &a.TaskerID, &a.Status, &a.ProposedBudgetMinor, &a.Message, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repository) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.Application, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, tasker_id, status, proposed_budget_minor, message, created_at, updated_at
		FROM applications WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Application
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.JobID, &a.TaskerID, &a.Status, &a.ProposedBudgetMinor, &a.Message, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

func (r *Repository) ListByTaskerID(ctx context.Context, taskerID uuid.UUID) ([]*models.Application, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, tasker_id, status, proposed_budget_minor, message, created_at, updated_at
		FROM applications WHERE tasker_id = $1 ORDER BY created_at DESC
	`, taskerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Application
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.JobID, &a.TaskerID, &a.Status, &a.ProposedBudgetMinor, &a.Message, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}

// GetAcceptedByJobID returns the job's accepted application, or pgx.ErrNoRows.
func (r *Repository) GetAcceptedByJobID(ctx context.Context, jobID uuid.UUID) (*models.Application, error) {
	var a models.Application
	err := r.pool.QueryRow(ctx, `
		SELECT id, job_id, tasker_id, status, proposed_budget_minor, message, created_at, updated_at
		FROM applications WHERE job_id = $1 AND status = $2
	`, jobID, models.ApplicationStatusAccepted).Scan(&a.ID, &a.JobID, &a.TaskerID, &a.Status, &a.ProposedBudgetMinor, &a.Message, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// MarkAcceptedTx flips a pending application to accepted inside the given
// transaction. The conditional WHERE means a raced row matches zero rows.
func (r *Repository) MarkAcceptedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE applications SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.ApplicationStatusAccepted, id, models.ApplicationStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkRejectedTx flips a pending application to rejected inside the given
// transaction.
func (r *Repository) MarkRejectedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE applications SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.ApplicationStatusRejected, id, models.ApplicationStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RejectPendingByJobIDTx rejects every pending application on the job except
// exclude. Pass uuid.Nil to reject all pending applications.
func (r *Repository) RejectPendingByJobIDTx(ctx context.Context, tx pgx.Tx, jobID, exclude uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE applications SET status = $1, updated_at = now()
		WHERE job_id = $2 AND status = $3 AND id <> $4
	`, models.ApplicationStatusRejected, jobID, models.ApplicationStatusPending, exclude)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
