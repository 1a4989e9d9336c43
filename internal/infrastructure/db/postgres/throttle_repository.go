package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

// errNoChange aborts the transaction when the mutator asks not to persist.
var errNoChange = errors.New("no change")

// ThrottleRepository keeps one login_throttle row per account. Update holds
// a row lock for the whole read-modify-write so concurrent logins for the
// same account are applied one after another.
type ThrottleRepository struct {
	db *sql.DB
}

func NewThrottleRepository(db *sql.DB) *ThrottleRepository {
	return &ThrottleRepository{db: db}
}

func (r *ThrottleRepository) Update(ctx context.Context, accountID uuid.UUID, now time.Time, fn ports.ThrottleMutator) (*domain.LoginThrottleState, error) {
	var out *domain.LoginThrottleState

	err := WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		insert :=
			`INSERT INTO login_throttle (account_id, attempts, last_attempt_at)
			 VALUES ($1, 0, $2)
			 ON CONFLICT (account_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, accountID, now); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		lock :=
			`SELECT attempts, last_attempt_at, blocked_until FROM login_throttle
			 WHERE account_id = $1
			 FOR UPDATE`
		st, err := scanThrottle(tx.QueryRowContext(ctx, lock, accountID), accountID)
		if err != nil {
			return err
		}

		persist, err := fn(st)
		if err != nil {
			return err
		}
		out = st
		if !persist {
			return errNoChange
		}

		update :=
			`UPDATE login_throttle
			 SET attempts = $2, last_attempt_at = $3, blocked_until = $4
			 WHERE account_id = $1`
		if _, err := tx.ExecContext(ctx, update, accountID, st.Attempts, st.LastAttemptAt, nullTime(st.BlockedUntil)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return nil, err
	}
	return out, nil
}

// Get returns domain.ErrAccountNotFound when the account never attempted a login.
func (r *ThrottleRepository) Get(ctx context.Context, accountID uuid.UUID) (*domain.LoginThrottleState, error) {
	query :=
		`SELECT attempts, last_attempt_at, blocked_until FROM login_throttle
		 WHERE account_id = $1`
	return scanThrottle(r.db.QueryRowContext(ctx, query, accountID), accountID)
}

func scanThrottle(row *sql.Row, accountID uuid.UUID) (*domain.LoginThrottleState, error) {
	st := &domain.LoginThrottleState{AccountID: accountID}
	var blocked sql.NullTime
	if err := row.Scan(&st.Attempts, &st.LastAttemptAt, &blocked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	st.LastAttemptAt = st.LastAttemptAt.UTC()
	if blocked.Valid {
		t := blocked.Time.UTC()
		st.BlockedUntil = &t
	}
	return st, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
