package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigboard/backend/internal/models"
)

// Repository is the pgx-backed wallet and transaction store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, balance_minor, currency, updated_at
		FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.BalanceMinor, &w.Currency, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateTxWallet inserts a wallet row inside the given transaction. Used at
// registration so the user and their wallet commit together.
func (r *Repository) CreateTxWallet(ctx context.Context, tx pgx.Tx, w *models.Wallet) error {
	return tx.QueryRow(ctx, `
		INSERT INTO wallets (user_id, balance_minor, currency)
		VALUES ($1, $2, $3)
		RETURNING updated_at
	`, w.UserID, w.BalanceMinor, w.Currency).Scan(&w.UpdatedAt)
}

// DeductBalance atomically deducts amount if the balance covers it. The
// conditional UPDATE matches zero rows when funds are insufficient, which
// surfaces as pgx.ErrNoRows from Scan.
func (r *Repository) DeductBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_minor = balance_minor - $1, updated_at = now()
		WHERE user_id = $2 AND balance_minor >= $1
		RETURNING balance_minor
	`, amountMinor, userID).Scan(&newBalance)
	return newBalance, err
}

// AddBalance adds amount to the wallet and returns the new balance.
func (r *Repository) AddBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amountMinor int64) (newBalance int64, err error) {
	err = tx.QueryRow(ctx, `
		UPDATE wallets SET balance_minor = balance_minor + $1, updated_at = now()
		WHERE user_id = $2
		RETURNING balance_minor
	`, amountMinor, userID).Scan(&newBalance)
	return newBalance, err
}

// CreateTx inserts a transaction row inside the given transaction.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, wallet_user_id, tx_type, amount_minor, reference_type, reference_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.WalletUserID, t.TxType, t.AmountMinor, t.ReferenceType, t.ReferenceID, t.Status).Scan(&t.CreatedAt)
}

func (r *Repository) ListByWalletUserID(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_user_id, tx_type, amount_minor, reference_type, reference_id, status, created_at
		FROM transactions WHERE wallet_user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletUserID, &t.TxType, &t.AmountMinor, &t.ReferenceType, &t.ReferenceID, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

func (r *Repository) ListByReferenceID(ctx context.Context, referenceID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_user_id, tx_type, amount_minor, reference_type, reference_id, status, created_at
		FROM transactions WHERE reference_id = $1 ORDER BY created_at DESC
	`, referenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletUserID, &t.TxType, &t.AmountMinor, &t.ReferenceType, &t.ReferenceID, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// FailStalePending marks pending transactions older than cutoff as failed.
// A committed operation always writes its transactions as completed, so a
// lingering pending row means its enclosing transaction never finished.
func (r *Repository) FailStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1
		WHERE status = $2 AND created_at < $3
	`, models.TxStatusFailed, models.TxStatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
