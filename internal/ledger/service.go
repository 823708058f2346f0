package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigboard/backend/internal/locks"
	"github.com/gigboard/backend/internal/models"
)

// ErrInsufficientFunds is returned when a wallet balance is too low for the
// requested debit.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrInvalidAmount is returned when a debit or credit amount is not strictly
// positive.
var ErrInvalidAmount = errors.New("amount must be positive")

// WalletRepo is the minimal wallet store interface for the ledger service.
type WalletRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// DeductBalance subtracts amount if the balance covers it, returning
	// pgx.ErrNoRows otherwise. Call within a transaction.
	DeductBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64) (newBalance int64, err error)
	AddBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64) (newBalance int64, err error)
}

// TransactionRepo is the minimal transaction store interface for the ledger
// service. Rows are append-only.
type TransactionRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	ListByWalletUserID(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
	ListByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*models.Transaction, error)
}

// Service is the wallet ledger: every balance change pairs with exactly one
// transaction row, written in the caller's pgx transaction. Per-wallet
// serialization uses the shared keyed mutex; TransferEscrow acquires all
// involved wallets in deterministic order.
type Service struct {
	wallets WalletRepo
	txns    TransactionRepo
	locks   *locks.KeyedMutex
}

func NewService(wallets WalletRepo, txns TransactionRepo, km *locks.KeyedMutex) *Service {
	return &Service{wallets: wallets, txns: txns, locks: km}
}

// GetBalance returns the user's current balance in minor units.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.BalanceMinor, nil
}

// Wallet returns the user's wallet record.
func (s *Service) Wallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

// ListTransactions returns the user's transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	return s.txns.ListByWalletUserID(ctx, userID)
}

// ListByReference returns every ledger entry tied to one reference, e.g. the
// debit/credit/fee trio produced by settling a job.
func (s *Service) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]*models.Transaction, error) {
	return s.txns.ListByReferenceID(ctx, referenceID)
}

// Debit removes amountMinor from the wallet and records a debit transaction.
// Returns ErrInsufficientFunds without mutating anything when the balance is
// too low. The caller holds the enclosing pgx transaction.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, refID *uuid.UUID) (*models.Transaction, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.locks.Acquire(ctx, userID); err != nil {
		return nil, err
	}
	defer s.locks.Release(userID)
	return s.debitLocked(ctx, tx, userID, amountMinor, refType, refID)
}

// Credit adds amountMinor to the wallet and records a credit transaction.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, refID *uuid.UUID) (*models.Transaction, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.locks.Acquire(ctx, userID); err != nil {
		return nil, err
	}
	defer s.locks.Release(userID)
	return s.creditLocked(ctx, tx, userID, amountMinor, refType, refID)
}

// TransferEscrow moves a completed job's funds in one atomic step: debit
// budget+fee from the poster, credit budget to the tasker, credit fee to the
// platform account. All three wallets are locked in ascending UUID order
// before any mutation, and the poster debit runs first so an insufficient
// balance aborts before anything has changed.
func (s *Service) TransferEscrow(ctx context.Context, tx pgx.Tx, fromUserID, toUserID uuid.UUID, amountMinor, feeMinor int64, jobID uuid.UUID) (debit, credit, fee *models.Transaction, err error) {
	if amountMinor <= 0 || feeMinor < 0 {
		return nil, nil, nil, ErrInvalidAmount
	}

	keys := []uuid.UUID{fromUserID, toUserID, models.PlatformAccountID}
	if err := s.locks.AcquireAll(ctx, keys...); err != nil {
		return nil, nil, nil, err
	}
	defer s.locks.ReleaseAll(keys...)

	total := amountMinor + feeMinor

	debit, err = s.debitLocked(ctx, tx, fromUserID, total, models.TxRefJobPayment, &jobID)
	if err != nil {
		return nil, nil, nil, err
	}
	credit, err = s.creditLocked(ctx, tx, toUserID, amountMinor, models.TxRefJobPayment, &jobID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("credit tasker: %w", err)
	}
	if feeMinor > 0 {
		fee, err = s.creditLocked(ctx, tx, models.PlatformAccountID, feeMinor, models.TxRefFee, &jobID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("credit platform fee: %w", err)
		}
	}
	return debit, credit, fee, nil
}

func (s *Service) debitLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, refID *uuid.UUID) (*models.Transaction, error) {
	if _, err := s.wallets.DeductBalance(ctx, tx, userID, amountMinor); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	t := &models.Transaction{
		ID:            uuid.New(),
		WalletUserID:  userID,
		TxType:        models.TxTypeDebit,
		AmountMinor:   amountMinor,
		ReferenceType: refType,
		ReferenceID:   refID,
		Status:        models.TxStatusCompleted,
	}
	if err := s.txns.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) creditLocked(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64, refType string, refID *uuid.UUID) (*models.Transaction, error) {
	if _, err := s.wallets.AddBalance(ctx, tx, userID, amountMinor); err != nil {
		return nil, err
	}
	t := &models.Transaction{
		ID:            uuid.New(),
		WalletUserID:  userID,
		TxType:        models.TxTypeCredit,
		AmountMinor:   amountMinor,
		ReferenceType: refType,
		ReferenceID:   refID,
		Status:        models.TxStatusCompleted,
	}
	if err := s.txns.CreateTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}
