package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gigboard/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- UserStore mock ---

type mockUserStore struct {
	byEmail map[string]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{byEmail: make(map[string]*models.User)}
}

func (m *mockUserStore) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func (m *mockUserStore) CreateTx(_ context.Context, _ pgx.Tx, u *models.User) error {
	if _, ok := m.byEmail[u.Email]; ok {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return nil
}

func (m *mockUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// --- WalletCreator mock ---

type mockWalletCreator struct {
	created []uuid.UUID
	err     error
}

func (m *mockWalletCreator) CreateTxWallet(_ context.Context, _ pgx.Tx, w *models.Wallet) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, w.UserID)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestRegisterAndLogin(t *testing.T) {
	store := newMockUserStore()
	wallets := &mockWalletCreator{}
	svc := NewService(store, wallets, "test-secret")
	ctx := context.Background()

	u, err := svc.Register(ctx, "pat@example.com", "hunter22", "Pat", models.RoleTasker)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != models.RoleTasker {
		t.Fatalf("role = %s", u.Role)
	}
	if len(wallets.created) != 1 || wallets.created[0] != u.ID {
		t.Fatalf("wallet not provisioned for %s: %v", u.ID, wallets.created)
	}

	token, err := svc.Login(ctx, "pat@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != u.ID || role != models.RoleTasker {
		t.Fatalf("token claims = (%s, %s), want (%s, %s)", id, role, u.ID, models.RoleTasker)
	}
}

func TestRegisterInvalidRole(t *testing.T) {
	svc := NewService(newMockUserStore(), &mockWalletCreator{}, "s")
	if _, err := svc.Register(context.Background(), "x@example.com", "pw", "X", "admin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	svc := NewService(newMockUserStore(), &mockWalletCreator{}, "s")
	ctx := context.Background()

	u, err := svc.Register(ctx, "pat@example.com", "pw", "Pat", models.RolePoster)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := svc.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.ID != u.ID || got.Email != "pat@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := svc.GetUser(ctx, uuid.New()); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("unknown id: expected pgx.ErrNoRows, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMockUserStore(), &mockWalletCreator{}, "s")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "dup@example.com", "pw", "A", models.RolePoster); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "pw", "B", models.RolePoster); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc := NewService(newMockUserStore(), &mockWalletCreator{}, "s")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "pat@example.com", "correct", "Pat", models.RolePoster); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "pat@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	store := newMockUserStore()
	svc := NewService(store, &mockWalletCreator{}, "right")
	other := NewService(store, &mockWalletCreator{}, "wrong")
	ctx := context.Background()

	if _, err := svc.Register(ctx, "pat@example.com", "pw", "Pat", models.RolePoster); err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.Login(ctx, "pat@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := other.ValidateToken(ctx, token); err == nil {
		t.Fatal("token validated with wrong secret")
	}
}

func TestRegisterWalletFailureAborts(t *testing.T) {
	store := newMockUserStore()
	wallets := &mockWalletCreator{err: errors.New("wallet insert failed")}
	svc := NewService(store, wallets, "s")

	if _, err := svc.Register(context.Background(), "pat@example.com", "pw", "Pat", models.RolePoster); err == nil {
		t.Fatal("expected registration to fail when wallet provisioning fails")
	}
}
