package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avcrm/identity/internal/core/domain"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var accountCols = []string{"id", "username", "password_hash", "is_active", "created_at", "updated_at"}

func TestAccountRepository_FindByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	id := uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*username,.*FROM\s+accounts\s+WHERE\s+username\s*=\s*\$1$`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(id.String(), "alice", "$2a$10$hash", true, created, created))

	got, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
	assert.True(t, got.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_FindByUsername_NullPassword(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`FROM\s+accounts`).
		WithArgs("svc").
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(uuid.NewString(), "svc", nil, true, time.Now(), time.Now()))

	got, err := repo.FindByUsername(context.Background(), "svc")
	require.NoError(t, err)
	assert.False(t, got.HasCredentials())
}

func TestAccountRepository_FindByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`FROM\s+accounts\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountRepository_FindByID_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`FROM\s+accounts`).WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestAccountRepository_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+accounts\s*\(username,\s*password_hash,\s*is_active\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at,\s*updated_at$`).
		WithArgs("bob", "hash", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id.String(), now, now))

	got, err := repo.Create(context.Background(), &domain.Account{Username: "bob", PasswordHash: "hash", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, now, got.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create_WithoutPassword(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+accounts`).
		WithArgs("svc", nil, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.NewString(), time.Now(), time.Now()))

	_, err := repo.Create(context.Background(), &domain.Account{Username: "svc"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+accounts`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &domain.Account{Username: "bob", PasswordHash: "h"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	id := uuid.New()
	mock.ExpectExec(`(?s)^UPDATE\s+accounts\s+SET\s+password_hash\s*=\s*\$2`).
		WithArgs(id, "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), id, "new-hash"))

	mock.ExpectExec(`UPDATE\s+accounts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), uuid.New(), "x"), domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
