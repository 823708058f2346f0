package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigboard/backend/internal/middleware"
	"github.com/gigboard/backend/internal/models"
)

// WalletLedger is the ledger surface the facade calls into.
type WalletLedger interface {
	Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, refID *uuid.UUID) (*models.Transaction, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WalletHandler serves the wallet read endpoints and top-up.
type WalletHandler struct {
	Pool   TxBeginner
	Ledger WalletLedger
	Logger *slog.Logger
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	wallet, err := h.Ledger.Wallet(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Ledger.ListTransactions(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if list == nil {
		list = []*models.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

type topupRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

// Topup handles POST /api/v1/wallet/topup. It credits the caller's wallet;
// in production this would sit behind a payment provider callback.
func (h *WalletHandler) Topup(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.AmountMinor <= 0 {
		writeError(w, http.StatusBadRequest, "amount_minor must be > 0")
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin topup tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer tx.Rollback(r.Context())

	txn, err := h.Ledger.Credit(r.Context(), tx, user.ID, req.AmountMinor, models.TxRefTopup, nil)
	if err != nil {
		respondDomainError(w, h.Logger, err)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit topup tx", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}
