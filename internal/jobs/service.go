package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigboard/backend/internal/ledger"
	"github.com/gigboard/backend/internal/locks"
	"github.com/gigboard/backend/internal/models"
)

var (
	// ErrInvalidTransition is returned for any event/state pair outside the
	// job state machine.
	ErrInvalidTransition = errors.New("invalid job state transition")
	// ErrUnauthorized is returned when the acting user is not the required
	// actor for the transition.
	ErrUnauthorized = errors.New("not authorized for this job")
	// ErrAlreadyDecided is returned to the loser of an accept race: another
	// application on the job has already been accepted.
	ErrAlreadyDecided = errors.New("job already has an accepted application")
	// ErrInvalidBudget is returned when creating a job with a non-positive
	// budget.
	ErrInvalidBudget = errors.New("budget must be positive")
)

// Repo is the job store interface used by the service.
type Repo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to string) error
	SetFeeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, feeMinor int64) error
	ListOpen(ctx context.Context) ([]*models.Job, error)
	ListByPosterID(ctx context.Context, posterID uuid.UUID) ([]*models.Job, error)
	GetIdempotencyTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, operation string) (*IdempotencyRecord, error)
	CreateIdempotencyTx(ctx context.Context, tx pgx.Tx, rec *IdempotencyRecord) error
}

// AppStore is the application-registry surface the controller drives inside
// its transactions.
type AppStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Application, error)
	GetAcceptedByJobID(ctx context.Context, jobID uuid.UUID) (*models.Application, error)
	MarkAcceptedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	RejectPendingByJobIDTx(ctx context.Context, tx pgx.Tx, jobID, exclude uuid.UUID) (int64, error)
}

// Ledger is the wallet surface used at completion and for settlement reads.
type Ledger interface {
	TransferEscrow(ctx context.Context, tx pgx.Tx, fromUserID, toUserID uuid.UUID, amountMinor, feeMinor int64, jobID uuid.UUID) (debit, credit, fee *models.Transaction, err error)
	ListByReference(ctx context.Context, referenceID uuid.UUID) ([]*models.Transaction, error)
}

// CompletionResult is the committed outcome of Complete.
type CompletionResult struct {
	Job            *models.Job
	FeeMinor       int64
	TotalMinor     int64
	TransactionIDs []uuid.UUID
}

// Service is the job lifecycle controller. It owns jobs.status: every
// transition runs under the per-job lock and inside one pgx transaction, so
// an accepted application with a still-open job (or the reverse) is never
// observable. Accept and Complete are idempotent via idempotency_keys.
type Service struct {
	repo       Repo
	apps       AppStore
	ledger     Ledger
	jobLocks   *locks.KeyedMutex
	feeRateBps int64
	log        *slog.Logger
}

func NewService(repo Repo, apps AppStore, lg Ledger, jobLocks *locks.KeyedMutex, feeRateBps int64, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, apps: apps, ledger: lg, jobLocks: jobLocks, feeRateBps: feeRateBps, log: log}
}

// CreateJob opens a new job for the poster.
func (s *Service) CreateJob(ctx context.Context, posterID uuid.UUID, title, description string, budgetMinor int64, currency string) (*models.Job, error) {
	if budgetMinor <= 0 {
		return nil, ErrInvalidBudget
	}
	if currency == "" {
		currency = "USD"
	}
	j := &models.Job{
		ID:          uuid.New(),
		PosterID:    posterID,
		Title:       title,
		Description: description,
		BudgetMinor: budgetMinor,
		Currency:    currency,
		Status:      models.JobStatusOpen,
	}
	if err := s.repo.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return s.repo.GetByID(ctx, jobID)
}

func (s *Service) ListOpen(ctx context.Context) ([]*models.Job, error) {
	return s.repo.ListOpen(ctx)
}

func (s *Service) ListByPoster(ctx context.Context, posterID uuid.UUID) ([]*models.Job, error) {
	return s.repo.ListByPosterID(ctx, posterID)
}

// AcceptApplication selects the winning application: it becomes accepted,
// every other pending application on the job becomes rejected, and the job
// moves open -> in_progress, all in one transaction. A repeat call for the
// same application returns the committed result; an accept for a different
// application after a winner exists returns ErrAlreadyDecided.
func (s *Service) AcceptApplication(ctx context.Context, applicationID, actingPosterID uuid.UUID) (*models.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if err := s.jobLocks.Acquire(ctx, app.JobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(app.JobID)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.repo.GetByIDForUpdate(ctx, tx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingPosterID {
		return nil, ErrUnauthorized
	}

	if rec, err := s.repo.GetIdempotencyTx(ctx, tx, job.ID, OpAccept); err == nil {
		if rec.ApplicationID != nil && *rec.ApplicationID == applicationID {
			return s.apps.GetByID(ctx, applicationID)
		}
		return nil, ErrAlreadyDecided
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusOpen:
	case models.JobStatusInProgress:
		return nil, ErrAlreadyDecided
	default:
		return nil, ErrInvalidTransition
	}

	app, err = s.apps.GetByIDForUpdate(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		if app.Status == models.ApplicationStatusAccepted {
			return app, nil
		}
		return nil, ErrAlreadyDecided
	}

	if err := s.apps.MarkAcceptedTx(ctx, tx, applicationID); err != nil {
		return nil, fmt.Errorf("mark accepted: %w", err)
	}
	rejected, err := s.apps.RejectPendingByJobIDTx(ctx, tx, job.ID, applicationID)
	if err != nil {
		return nil, fmt.Errorf("reject pending applications: %w", err)
	}
	if err := s.repo.UpdateStatusTx(ctx, tx, job.ID, models.JobStatusOpen, models.JobStatusInProgress); err != nil {
		return nil, err
	}
	if err := s.repo.CreateIdempotencyTx(ctx, tx, &IdempotencyRecord{
		JobID: job.ID, Operation: OpAccept, ApplicationID: &applicationID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("application accepted", "job_id", job.ID, "application_id", applicationID, "rejected", rejected)
	app.Status = models.ApplicationStatusAccepted
	return app, nil
}

// SubmitWork moves the job in_progress -> ready_for_payment. Only the
// accepted tasker may submit.
func (s *Service) SubmitWork(ctx context.Context, jobID, actingTaskerID uuid.UUID) (*models.Job, error) {
	if err := s.jobLocks.Acquire(ctx, jobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(jobID)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.repo.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusInProgress {
		return nil, ErrInvalidTransition
	}
	accepted, err := s.apps.GetAcceptedByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	if accepted.TaskerID != actingTaskerID {
		return nil, ErrUnauthorized
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, jobID, models.JobStatusInProgress, models.JobStatusReadyForPayment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	job.Status = models.JobStatusReadyForPayment
	return job, nil
}

// Complete settles a ready_for_payment job: fee is computed from the budget,
// budget+fee is debited from the poster, budget credited to the tasker, fee
// credited to the platform, and the job becomes completed, all in one
// transaction. An insufficient poster balance aborts the whole operation and
// leaves the job ready_for_payment. Replays return the committed result.
func (s *Service) Complete(ctx context.Context, jobID, actingPosterID uuid.UUID) (*CompletionResult, error) {
	if err := s.jobLocks.Acquire(ctx, jobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(jobID)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.repo.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingPosterID {
		return nil, ErrUnauthorized
	}

	if rec, err := s.repo.GetIdempotencyTx(ctx, tx, jobID, OpComplete); err == nil {
		fee := int64(0)
		if job.FeeMinor != nil {
			fee = *job.FeeMinor
		}
		return &CompletionResult{
			Job:            job,
			FeeMinor:       fee,
			TotalMinor:     job.BudgetMinor + fee,
			TransactionIDs: rec.TransactionIDs,
		}, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if job.Status != models.JobStatusReadyForPayment {
		return nil, ErrInvalidTransition
	}

	accepted, err := s.apps.GetAcceptedByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("resolve accepted application: %w", err)
	}

	fee, err := ledger.ComputeFee(job.BudgetMinor, s.feeRateBps)
	if err != nil {
		return nil, err
	}

	debit, credit, feeTx, err := s.ledger.TransferEscrow(ctx, tx, job.PosterID, accepted.TaskerID, job.BudgetMinor, fee, jobID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, jobID, models.JobStatusReadyForPayment, models.JobStatusCompleted); err != nil {
		return nil, err
	}
	if err := s.repo.SetFeeTx(ctx, tx, jobID, fee); err != nil {
		return nil, err
	}

	txIDs := []uuid.UUID{debit.ID, credit.ID}
	if feeTx != nil {
		txIDs = append(txIDs, feeTx.ID)
	}
	if err := s.repo.CreateIdempotencyTx(ctx, tx, &IdempotencyRecord{
		JobID: jobID, Operation: OpComplete, TransactionIDs: txIDs,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.log.Info("job completed", "job_id", jobID, "budget_minor", job.BudgetMinor, "fee_minor", fee)
	job.Status = models.JobStatusCompleted
	job.FeeMinor = &fee
	return &CompletionResult{
		Job:            job,
		FeeMinor:       fee,
		TotalMinor:     job.BudgetMinor + fee,
		TransactionIDs: txIDs,
	}, nil
}

// JobTransactions returns the ledger entries produced by settling the job.
// Visible to the poster and the accepted tasker.
func (s *Service) JobTransactions(ctx context.Context, jobID, actingUserID uuid.UUID) ([]*models.Transaction, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingUserID {
		accepted, err := s.apps.GetAcceptedByJobID(ctx, jobID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrUnauthorized
			}
			return nil, err
		}
		if accepted.TaskerID != actingUserID {
			return nil, ErrUnauthorized
		}
	}
	return s.ledger.ListByReference(ctx, jobID)
}

// Cancel moves an open or in_progress job to cancelled and rejects its
// remaining pending applications. No funds are ever held before completion,
// so cancellation never touches the ledger.
func (s *Service) Cancel(ctx context.Context, jobID, actingPosterID uuid.UUID) (*models.Job, error) {
	if err := s.jobLocks.Acquire(ctx, jobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(jobID)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.repo.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingPosterID {
		return nil, ErrUnauthorized
	}
	if job.Terminal() || job.Status == models.JobStatusReadyForPayment {
		return nil, ErrInvalidTransition
	}

	if _, err := s.apps.RejectPendingByJobIDTx(ctx, tx, jobID, uuid.Nil); err != nil {
		return nil, fmt.Errorf("reject pending applications: %w", err)
	}
	if err := s.repo.UpdateStatusTx(ctx, tx, jobID, job.Status, models.JobStatusCancelled); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	job.Status = models.JobStatusCancelled
	return job, nil
}
