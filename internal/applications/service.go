package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gigboard/backend/internal/locks"
	"github.com/gigboard/backend/internal/models"
)

var (
	// ErrDuplicateApplication is returned when a tasker applies twice to the
	// same job.
	ErrDuplicateApplication = errors.New("tasker already applied to this job")
	// ErrJobNotOpen is returned when applying to a job that is no longer open.
	ErrJobNotOpen = errors.New("job is not open for applications")
	// ErrUnauthorized is returned when the acting user is not allowed to
	// perform the operation on this application.
	ErrUnauthorized = errors.New("not authorized for this application")
	// ErrInvalidState is returned when an accept/reject targets an
	// application that already left pending.
	ErrInvalidState = errors.New("application is not pending")
)

// Repo is the application store interface used by the service.
type Repo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, a *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Application, error)
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.Application, error)
	ListByTaskerID(ctx context.Context, taskerID uuid.UUID) ([]*models.Application, error)
	MarkRejectedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// JobGetter resolves jobs without importing the jobs package.
type JobGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// Service is the application registry: submission, poster-driven rejection,
// and listing. Acceptance lives in the jobs service because it transitions
// the job atomically with the fan-out rejection; this service contributes the
// tx-scoped primitives via the repository.
type Service struct {
	repo     Repo
	jobs     JobGetter
	jobLocks *locks.KeyedMutex
}

func NewService(repo Repo, jobs JobGetter, jobLocks *locks.KeyedMutex) *Service {
	return &Service{repo: repo, jobs: jobs, jobLocks: jobLocks}
}

// Submit creates a pending application from taskerID against an open job.
// One application per tasker per job; a poster cannot apply to their own job.
func (s *Service) Submit(ctx context.Context, jobID, taskerID uuid.UUID, proposedBudgetMinor *int64, message string) (*models.Application, error) {
	if proposedBudgetMinor != nil && *proposedBudgetMinor <= 0 {
		return nil, fmt.Errorf("proposed budget must be positive")
	}

	// Serialize against a concurrent accept or cancel on the same job: the
	// status check and the insert must not straddle a fan-out commit, or a
	// pending application could land on a job that already has its winner.
	if err := s.jobLocks.Acquire(ctx, jobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(jobID)

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID == taskerID {
		return nil, ErrUnauthorized
	}
	if job.Status != models.JobStatusOpen {
		return nil, ErrJobNotOpen
	}

	a := &models.Application{
		ID:                  uuid.New(),
		JobID:               jobID,
		TaskerID:            taskerID,
		Status:              models.ApplicationStatusPending,
		ProposedBudgetMinor: proposedBudgetMinor,
		Message:             message,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateApplication
		}
		// The insert itself is conditional on the job row still being open,
		// which backstops the lock across service instances.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotOpen
		}
		return nil, err
	}
	return a, nil
}

// Reject moves a pending application to rejected. Only the job's poster may
// reject; rejecting an already-rejected application is an idempotent no-op.
func (s *Service) Reject(ctx context.Context, applicationID, actingPosterID uuid.UUID) (*models.Application, error) {
	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingPosterID {
		return nil, ErrUnauthorized
	}

	// Serialize against a concurrent accept's fan-out on the same job.
	if err := s.jobLocks.Acquire(ctx, app.JobID); err != nil {
		return nil, err
	}
	defer s.jobLocks.Release(app.JobID)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	app, err = s.repo.GetByIDForUpdate(ctx, tx, applicationID)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case models.ApplicationStatusRejected:
		return app, nil
	case models.ApplicationStatusAccepted:
		return nil, ErrInvalidState
	}

	if err := s.repo.MarkRejectedTx(ctx, tx, applicationID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatusRejected
	return app, nil
}

// ListForJob returns every application on the job. Restricted to the poster.
func (s *Service) ListForJob(ctx context.Context, jobID, actingPosterID uuid.UUID) ([]*models.Application, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingPosterID {
		return nil, ErrUnauthorized
	}
	return s.repo.ListByJobID(ctx, jobID)
}

// ListForTasker returns the tasker's own applications across jobs.
func (s *Service) ListForTasker(ctx context.Context, taskerID uuid.UUID) ([]*models.Application, error) {
	return s.repo.ListByTaskerID(ctx, taskerID)
}

// Get returns a single application, visible to the job's poster and the
// applying tasker.
func (s *Service) Get(ctx context.Context, applicationID, actingUserID uuid.UUID) (*models.Application, error) {
	app, err := s.repo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.TaskerID == actingUserID {
		return app, nil
	}
	job, err := s.jobs.GetByID(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != actingUserID {
		return nil, ErrUnauthorized
	}
	return app, nil
}
