package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigboard/backend/internal/ledger"
	"github.com/gigboard/backend/internal/models"
)

// --- WalletLedger stub ---

type stubWalletLedger struct {
	wallet *models.Wallet
	txns   []*models.Transaction
	err    error

	credited int64
	refType  string
}

func (s *stubWalletLedger) Wallet(context.Context, uuid.UUID) (*models.Wallet, error) {
	return s.wallet, s.err
}

func (s *stubWalletLedger) ListTransactions(context.Context, uuid.UUID) ([]*models.Transaction, error) {
	return s.txns, s.err
}

func (s *stubWalletLedger) Credit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, _ *uuid.UUID) (*models.Transaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.credited = amountMinor
	s.refType = refType
	return &models.Transaction{
		ID: uuid.New(), WalletUserID: userID, TxType: models.TxTypeCredit,
		AmountMinor: amountMinor, ReferenceType: refType, Status: models.TxStatusCompleted,
	}, nil
}

func TestGetWallet(t *testing.T) {
	user := uuid.New()
	lg := &stubWalletLedger{wallet: &models.Wallet{UserID: user, BalanceMinor: 1234, Currency: "USD"}}
	h := &WalletHandler{Pool: mockPool{}, Ledger: lg, Logger: testLogger()}

	w := httptest.NewRecorder()
	h.GetWallet(w, authedRequest(http.MethodGet, "/api/v1/wallet", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.Wallet
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BalanceMinor != 1234 {
		t.Fatalf("balance = %d, want 1234", resp.BalanceMinor)
	}

	w = httptest.NewRecorder()
	h.GetWallet(w, httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", w.Code)
	}
}

func TestListTransactionsEmpty(t *testing.T) {
	h := &WalletHandler{Pool: mockPool{}, Ledger: &stubWalletLedger{}, Logger: testLogger()}

	w := httptest.NewRecorder()
	h.ListTransactions(w, authedRequest(http.MethodGet, "/api/v1/wallet/transactions", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	// nil slice must serialize as [], not null.
	if body := w.Body.String(); body != "[]\n" {
		t.Fatalf("body = %q, want []", body)
	}
}

func TestTopup(t *testing.T) {
	lg := &stubWalletLedger{}
	h := &WalletHandler{Pool: mockPool{}, Ledger: lg, Logger: testLogger()}

	w := httptest.NewRecorder()
	h.Topup(w, authedRequest(http.MethodPost, "/api/v1/wallet/topup", `{"amount_minor":5000}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if lg.credited != 5000 || lg.refType != models.TxRefTopup {
		t.Fatalf("credited %d as %q", lg.credited, lg.refType)
	}

	for _, body := range []string{`{"amount_minor":0}`, `{"amount_minor":-10}`, `junk`} {
		w = httptest.NewRecorder()
		h.Topup(w, authedRequest(http.MethodPost, "/api/v1/wallet/topup", body))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestTopupInvalidAmountFromLedger(t *testing.T) {
	h := &WalletHandler{Pool: mockPool{}, Ledger: &stubWalletLedger{err: ledger.ErrInvalidAmount}, Logger: testLogger()}

	w := httptest.NewRecorder()
	h.Topup(w, authedRequest(http.MethodPost, "/api/v1/wallet/topup", `{"amount_minor":100}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
