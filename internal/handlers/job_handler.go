package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigboard/backend/internal/jobs"
	"github.com/gigboard/backend/internal/middleware"
	"github.com/gigboard/backend/internal/models"
)

// JobService is the lifecycle controller surface the facade calls into.
type JobService interface {
	CreateJob(ctx context.Context, posterID uuid.UUID, title, description string, budgetMinor int64, currency string) (*models.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ListOpen(ctx context.Context) ([]*models.Job, error)
	ListByPoster(ctx context.Context, posterID uuid.UUID) ([]*models.Job, error)
	SubmitWork(ctx context.Context, jobID, actingTaskerID uuid.UUID) (*models.Job, error)
	Complete(ctx context.Context, jobID, actingPosterID uuid.UUID) (*jobs.CompletionResult, error)
	Cancel(ctx context.Context, jobID, actingPosterID uuid.UUID) (*models.Job, error)
	JobTransactions(ctx context.Context, jobID, actingUserID uuid.UUID) ([]*models.Transaction, error)
}

// JobHandler serves the job lifecycle endpoints. It validates request shape
// only; all business rules live in the services.
type JobHandler struct {
	Svc    JobService
	Logger *slog.Logger
}

type createJobRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	BudgetMinor int64  `json:"budget_minor"`
	Currency    string `json:"currency"`
}

// CreateJob handles POST /api/v1/jobs.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.BudgetMinor <= 0 {
		writeError(w, http.StatusBadRequest, "budget_minor must be > 0")
		return
	}

	job, err := h.Svc.CreateJob(r.Context(), user.ID, req.Title, req.Description, req.BudgetMinor, req.Currency)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// ListJobs handles GET /api/v1/jobs. Posters see their own jobs; everyone
// else sees the open board.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var (
		list []*models.Job
		err  error
	)
	if r.URL.Query().Get("mine") == "true" {
		list, err = h.Svc.ListByPoster(r.Context(), user.ID)
	} else {
		list, err = h.Svc.ListOpen(r.Context())
	}
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.Svc.GetJob(r.Context(), jobID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// SubmitWork handles PUT /api/v1/jobs/{id}/submit-work.
func (h *JobHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.Svc.SubmitWork(r.Context(), jobID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type completeJobResponse struct {
	Job            *models.Job `json:"job"`
	FeeMinor       int64       `json:"fee_minor"`
	TotalMinor     int64       `json:"total_minor"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
}

// Complete handles PUT /api/v1/jobs/{id}/complete.
func (h *JobHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	res, err := h.Svc.Complete(r.Context(), jobID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, completeJobResponse{
		Job:            res.Job,
		FeeMinor:       res.FeeMinor,
		TotalMinor:     res.TotalMinor,
		TransactionIDs: res.TransactionIDs,
	})
}

// Cancel handles PUT /api/v1/jobs/{id}/cancel.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.Svc.Cancel(r.Context(), jobID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListJobTransactions handles GET /api/v1/jobs/{id}/transactions, the
// settlement audit trail for a completed job.
func (h *JobHandler) ListJobTransactions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	list, err := h.Svc.JobTransactions(r.Context(), jobID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// pathUUID parses a UUID path segment registered as {name} on the mux.
func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
