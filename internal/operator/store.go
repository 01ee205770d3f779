package operator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an account lookup matches no row.
var ErrNotFound = errors.New("operator: account not found")

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("operator: email already registered")

// Store persists operator accounts in PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Create inserts a new account with role "operator" by default.
func (s *Store) Create(ctx context.Context, email, passwordHash string) (*Account, error) {
	acct := &Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         "operator",
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO operator_accounts (id, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.ID, acct.Email, acct.PasswordHash, acct.Role, acct.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return acct, nil
}

// ByEmail looks up an account by email.
func (s *Store) ByEmail(ctx context.Context, email string) (*Account, error) {
	var acct Account
	err := s.db.QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at FROM operator_accounts WHERE email = $1`,
		email,
	).Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.Role, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// ByID looks up an account by ID.
func (s *Store) ByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	var acct Account
	err := s.db.QueryRow(ctx,
		`SELECT id, email, password_hash, role, created_at FROM operator_accounts WHERE id = $1`,
		id,
	).Scan(&acct.ID, &acct.Email, &acct.PasswordHash, &acct.Role, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// EnsureFromSSO finds or provisions an account for an operator authenticating
// via OAuth, where there is no local password to check.
func (s *Store) EnsureFromSSO(ctx context.Context, email string) (*Account, error) {
	acct, err := s.ByEmail(ctx, email)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.Create(ctx, email, "")
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
