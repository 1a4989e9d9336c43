package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, password_hash, is_active, created_at, updated_at`

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		 WHERE username = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *AccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		 WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts the account and fills in its generated id and timestamps.
// An empty PasswordHash is stored as NULL.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query :=
		`INSERT INTO accounts (username, password_hash, is_active)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`

	hash := sql.NullString{String: account.PasswordHash, Valid: account.PasswordHash != ""}
	err := r.db.QueryRowContext(ctx, query, account.Username, hash, account.IsActive).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query :=
		`UPDATE accounts SET password_hash = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	var (
		a    domain.Account
		hash sql.NullString
	)
	err := row.Scan(&a.ID, &a.Username, &hash, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	a.PasswordHash = hash.String
	return &a, nil
}
