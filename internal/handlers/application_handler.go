package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigboard/backend/internal/middleware"
	"github.com/gigboard/backend/internal/models"
)

// ApplicationRegistry is the registry surface the facade calls into.
type ApplicationRegistry interface {
	Submit(ctx context.Context, jobID, taskerID uuid.UUID, proposedBudgetMinor *int64, message string) (*models.Application, error)
	Reject(ctx context.Context, applicationID, actingPosterID uuid.UUID) (*models.Application, error)
	ListForJob(ctx context.Context, jobID, actingPosterID uuid.UUID) ([]*models.Application, error)
	ListForTasker(ctx context.Context, taskerID uuid.UUID) ([]*models.Application, error)
}

// Accepter is the controller-side accept operation (acceptance transitions
// the job, so it lives on the lifecycle controller).
type Accepter interface {
	AcceptApplication(ctx context.Context, applicationID, actingPosterID uuid.UUID) (*models.Application, error)
}

// ApplicationHandler serves the application endpoints.
type ApplicationHandler struct {
	Registry ApplicationRegistry
	Accept   Accepter
	Logger   *slog.Logger
}

type applyRequest struct {
	ProposedBudgetMinor *int64 `json:"proposed_budget_minor,omitempty"`
	Message             string `json:"message"`
}

// Apply handles POST /api/v1/jobs/{id}/applications.
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
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

	var req applyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	app, err := h.Registry.Submit(r.Context(), jobID, user.ID, req.ProposedBudgetMinor, req.Message)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ListForJob handles GET /api/v1/jobs/{id}/applications (poster only).
func (h *ApplicationHandler) ListForJob(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.Registry.ListForJob(r.Context(), jobID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Application{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ListMine handles GET /api/v1/applications (the tasker's own applications).
func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Registry.ListForTasker(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Application{}
	}
	writeJSON(w, http.StatusOK, list)
}

// AcceptApplication handles PUT /api/v1/applications/{id}/accept.
func (h *ApplicationHandler) AcceptApplication(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	appID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return
	}
	app, err := h.Accept.AcceptApplication(r.Context(), appID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// RejectApplication handles PUT /api/v1/applications/{id}/reject.
func (h *ApplicationHandler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	appID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid application id")
		return
	}
	app, err := h.Registry.Reject(r.Context(), appID, user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
