package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

const maxWatchRetries = 16

// ErrContention is returned when an update keeps losing the optimistic
// WATCH race.
var ErrContention = errors.New("throttle: too much contention")

// ThrottleStore keeps login throttle state in Redis hashes.
// Key format: login_throttle:<account_id>
type ThrottleStore struct {
	client *redis.Client
}

func NewThrottleStore(client *redis.Client) *ThrottleStore {
	return &ThrottleStore{client: client}
}

// Update runs fn under WATCH/MULTI and retries when another writer touched
// the key in between. fn may therefore run more than once.
func (s *ThrottleStore) Update(ctx context.Context, accountID uuid.UUID, now time.Time, fn ports.ThrottleMutator) (*domain.LoginThrottleState, error) {
	key := s.key(accountID)
	var out *domain.LoginThrottleState

	txf := func(tx *redis.Tx) error {
		st, err := s.read(ctx, tx, key, accountID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			st = &domain.LoginThrottleState{AccountID: accountID, LastAttemptAt: now}
		} else if err != nil {
			return err
		}

		persist, err := fn(st)
		if err != nil {
			return err
		}
		out = st
		if !persist {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				"attempts", st.Attempts,
				"last_attempt_at", st.LastAttemptAt.UnixNano(),
			)
			if st.BlockedUntil != nil {
				pipe.HSet(ctx, key, "blocked_until", st.BlockedUntil.UnixNano())
			} else {
				pipe.HDel(ctx, key, "blocked_until")
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("throttle update: %w", err)
	}
	return nil, ErrContention
}

// Get returns domain.ErrAccountNotFound when no state is stored.
func (s *ThrottleStore) Get(ctx context.Context, accountID uuid.UUID) (*domain.LoginThrottleState, error) {
	return s.read(ctx, s.client, s.key(accountID), accountID)
}

func (s *ThrottleStore) read(ctx context.Context, c redis.Cmdable, key string, accountID uuid.UUID) (*domain.LoginThrottleState, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("throttle read: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrAccountNotFound
	}

	st := &domain.LoginThrottleState{AccountID: accountID}
	if st.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("throttle read: attempts: %w", err)
	}
	last, err := strconv.ParseInt(fields["last_attempt_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("throttle read: last_attempt_at: %w", err)
	}
	st.LastAttemptAt = time.Unix(0, last).UTC()

	if raw, ok := fields["blocked_until"]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("throttle read: blocked_until: %w", err)
		}
		t := time.Unix(0, n).UTC()
		st.BlockedUntil = &t
	}
	return st, nil
}

func (s *ThrottleStore) key(accountID uuid.UUID) string {
	return "login_throttle:" + accountID.String()
}
