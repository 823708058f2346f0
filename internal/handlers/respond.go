package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/gigboard/backend/internal/applications"
	"github.com/gigboard/backend/internal/jobs"
	"github.com/gigboard/backend/internal/ledger"
	"github.com/gigboard/backend/internal/locks"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondDomainError maps domain errors to stable response codes. Busy (503)
// is the only code a client should retry automatically.
func respondDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, locks.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "resource busy, retry later")
	case errors.Is(err, jobs.ErrUnauthorized), errors.Is(err, applications.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, jobs.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, "job already has an accepted application")
	case errors.Is(err, jobs.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid job state transition")
	case errors.Is(err, applications.ErrDuplicateApplication):
		writeError(w, http.StatusConflict, "already applied to this job")
	case errors.Is(err, applications.ErrJobNotOpen):
		writeError(w, http.StatusConflict, "job is not open for applications")
	case errors.Is(err, applications.ErrInvalidState):
		writeError(w, http.StatusConflict, "application is not pending")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, "insufficient funds")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, jobs.ErrInvalidBudget):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
