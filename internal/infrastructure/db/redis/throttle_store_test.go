package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avcrm/identity/internal/core/domain"
)

func setupThrottleStore(t *testing.T) (*ThrottleStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewThrottleStore(client), mr
}

func TestThrottleStore_CreatesOnFirstUpdate(t *testing.T) {
	store, mr := setupThrottleStore(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	st, err := store.Update(ctx, id, now, func(st *domain.LoginThrottleState) (bool, error) {
		assert.Equal(t, 0, st.Attempts)
		assert.Equal(t, now, st.LastAttemptAt)
		st.Attempts = 1
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Attempts)

	assert.Equal(t, "1", mr.HGet("login_throttle:"+id.String(), "attempts"))

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, now, got.LastAttemptAt)
	assert.Nil(t, got.BlockedUntil)
}

func TestThrottleStore_BlockRoundTrip(t *testing.T) {
	store, mr := setupThrottleStore(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	_, err := store.Update(ctx, id, now, func(st *domain.LoginThrottleState) (bool, error) {
		st.Attempts = 3
		st.BlockedUntil = &until
		return true, nil
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.BlockedUntil)
	assert.Equal(t, until, *got.BlockedUntil)

	_, err = store.Update(ctx, id, now, func(st *domain.LoginThrottleState) (bool, error) {
		st.Attempts = 0
		st.BlockedUntil = nil
		return true, nil
	})
	require.NoError(t, err)
	assert.Empty(t, mr.HGet("login_throttle:"+id.String(), "blocked_until"))

	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts)
	assert.Nil(t, got.BlockedUntil)
}

func TestThrottleStore_NoPersist(t *testing.T) {
	store, _ := setupThrottleStore(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now().UTC()

	st, err := store.Update(ctx, id, now, func(st *domain.LoginThrottleState) (bool, error) {
		st.Attempts = 42
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, st.Attempts)

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestThrottleStore_MutatorError(t *testing.T) {
	store, _ := setupThrottleStore(t)
	boom := errors.New("boom")

	_, err := store.Update(context.Background(), uuid.New(), time.Now(), func(*domain.LoginThrottleState) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestThrottleStore_CorruptState(t *testing.T) {
	store, mr := setupThrottleStore(t)
	id := uuid.New()
	mr.HSet("login_throttle:"+id.String(), "attempts", "many", "last_attempt_at", "0")

	_, err := store.Get(context.Background(), id)
	assert.ErrorContains(t, err, "attempts")
}

func TestThrottleStore_ServerDown(t *testing.T) {
	store, mr := setupThrottleStore(t)
	mr.Close()

	_, err := store.Update(context.Background(), uuid.New(), time.Now(), func(*domain.LoginThrottleState) (bool, error) {
		return true, nil
	})
	assert.Error(t, err)
}

func TestThrottleStore_ConcurrentIncrements(t *testing.T) {
	store, _ := setupThrottleStore(t)
	ctx := context.Background()
	id := uuid.New()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, id, time.Now(), func(st *domain.LoginThrottleState) (bool, error) {
				st.Attempts++
				return true, nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, n, got.Attempts)
}
