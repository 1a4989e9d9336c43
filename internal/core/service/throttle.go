package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avcrm/identity/internal/api/metrics"
	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

const (
	defaultMaxLoginAttempts = 3
	defaultBlockTime        = 5 * time.Minute
	defaultAttemptsPeriod   = 15 * time.Minute
)

// ThrottleOptions configures the lockout policy.
type ThrottleOptions struct {
	// MaxAttempts is the attempt count at which a lockout is considered.
	MaxAttempts int
	// BlockTime is multiplied by the current attempt count to get the block length.
	BlockTime time.Duration
	// Period is how recent the previous attempt (or block end) must be for
	// the counter to keep accumulating.
	Period time.Duration
}

func (o ThrottleOptions) withDefaults() ThrottleOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxLoginAttempts
	}
	if o.BlockTime <= 0 {
		o.BlockTime = defaultBlockTime
	}
	if o.Period <= 0 {
		o.Period = defaultAttemptsPeriod
	}
	return o
}

// Verdict is the outcome of an admission check.
type Verdict int

const (
	Proceed Verdict = iota
	Blocked
)

func (v Verdict) String() string {
	if v == Blocked {
		return "blocked"
	}
	return "proceed"
}

// Decision is returned by Admit. State is set for Proceed; RetryAfterMinutes
// for Blocked. Triggered is true when this very attempt applied the block.
type Decision struct {
	Verdict           Verdict
	State             *domain.LoginThrottleState
	RetryAfterMinutes int
	Triggered         bool
}

// LoginThrottle decides whether a login attempt may proceed to the password
// check. It is the only writer of LoginThrottleState.
type LoginThrottle struct {
	repo ports.ThrottleRepository
	opts ThrottleOptions
	log  zerolog.Logger
}

func NewLoginThrottle(repo ports.ThrottleRepository, opts ThrottleOptions, log zerolog.Logger) *LoginThrottle {
	return &LoginThrottle{repo: repo, opts: opts.withDefaults(), log: log}
}

// Admit counts the attempt and decides whether it may proceed. The attempt
// is counted before the password is checked so that aborting the request
// early does not buy a free retry.
func (t *LoginThrottle) Admit(ctx context.Context, accountID uuid.UUID, now time.Time) (Decision, error) {
	var dec Decision
	state, err := t.repo.Update(ctx, accountID, now, func(st *domain.LoginThrottleState) (bool, error) {
		var persist bool
		dec, persist = t.evaluate(st, now)
		return persist, nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("admit login attempt: %w", err)
	}

	if dec.Verdict == Proceed {
		dec.State = state
		return dec, nil
	}

	if dec.Triggered {
		metrics.LockoutsTotal.Inc()
		t.log.Warn().
			Str("account_id", accountID.String()).
			Int("attempts", state.Attempts).
			Int("retry_after_minutes", dec.RetryAfterMinutes).
			Msg("account locked after repeated login failures")
	}
	return dec, nil
}

// evaluate applies the lockout policy to st in place. The returned flag says
// whether st must be persisted; attempts made during an active block are
// rejected without touching the stored record.
func (t *LoginThrottle) evaluate(st *domain.LoginThrottleState, now time.Time) (Decision, bool) {
	prevLast := st.LastAttemptAt
	prevBlocked := st.BlockedUntil

	st.Attempts++
	st.LastAttemptAt = now

	if st.IsBlocked(now) {
		return Decision{Verdict: Blocked, RetryAfterMinutes: ceilMinutes(st.BlockedUntil.Sub(now))}, false
	}

	if st.Attempts >= t.opts.MaxAttempts {
		ref := prevLast
		if prevBlocked != nil && prevBlocked.After(ref) {
			ref = *prevBlocked
		}
		if now.Sub(ref) <= t.opts.Period {
			block := t.opts.BlockTime * time.Duration(st.Attempts)
			until := now.Add(block)
			st.BlockedUntil = &until
			return Decision{Verdict: Blocked, RetryAfterMinutes: ceilMinutes(block), Triggered: true}, true
		}
		// The previous failures are older than the window.
		st.Attempts = 1
	}

	return Decision{Verdict: Proceed}, true
}

// RecordFailure is called after a wrong password. The failure was already
// counted by Admit, so the stored state is left as is.
func (t *LoginThrottle) RecordFailure(_ context.Context, state *domain.LoginThrottleState) error {
	if state == nil {
		return nil
	}
	t.log.Debug().
		Str("account_id", state.AccountID.String()).
		Int("attempts", state.Attempts).
		Msg("login attempt failed")
	return nil
}

// RecordSuccess clears the counter and any block after valid credentials.
func (t *LoginThrottle) RecordSuccess(ctx context.Context, state *domain.LoginThrottleState) error {
	if state == nil {
		return nil
	}
	_, err := t.repo.Update(ctx, state.AccountID, state.LastAttemptAt, func(st *domain.LoginThrottleState) (bool, error) {
		st.Attempts = 0
		st.BlockedUntil = nil
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("reset login throttle: %w", err)
	}
	return nil
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
