// Package retry models the delivery retry/backoff policy as an explicit
// tagged state machine with pure transition functions, so the policy can be
// unit-tested without a database and the sweep driver stays free of ad hoc
// field mutations.
//
// Transitions:
//
//	Ready        --failure--> Backoff(1)
//	Backoff(n)   --failure--> Backoff(n+1)   while n < MaxAttempts
//	Backoff(max) --failure--> Deactivated
//	Backoff(n)   --success--> Ready
//	Ready        --success--> Ready
//
// Deactivated is terminal; only an external CRUD re-activation leaves it.
package retry

import (
	"time"

	"rollcall/internal/types"
)

// Phase tags the retry state of a recipient.
type Phase string

const (
	PhaseReady       Phase = "ready"
	PhaseBackoff     Phase = "backoff"
	PhaseDeactivated Phase = "deactivated"
)

// BackoffSchedule maps the Nth consecutive failure (1-based) to the delay
// before the next retry: 2h, then 6h, then 24h. A failure beyond the
// schedule deactivates the recipient.
var BackoffSchedule = []time.Duration{
	2 * time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// MaxAttempts is the retry ceiling. The failure after the final scheduled
// retry (the fourth consecutive failure) deactivates the recipient.
var MaxAttempts = len(BackoffSchedule)

// State is the explicit retry state of a recipient. It is a value type;
// transitions return a new State and never mutate the input.
type State struct {
	Phase       Phase
	Attempts    int
	NextRetryAt *time.Time
	LastSent    *time.Time
	Active      bool
}

// FromRecipient derives the tagged state from a recipient's persisted fields.
func FromRecipient(r *types.Recipient) State {
	s := State{
		Attempts:    r.RetryAttempts,
		NextRetryAt: r.NextRetryAt,
		LastSent:    r.LastSent,
		Active:      r.Active,
	}
	switch {
	case !r.Active:
		s.Phase = PhaseDeactivated
	case r.RetryAttempts > 0:
		s.Phase = PhaseBackoff
	default:
		s.Phase = PhaseReady
	}
	return s
}

// Apply writes the state back onto a recipient's persisted fields.
func (s State) Apply(r *types.Recipient) {
	r.RetryAttempts = s.Attempts
	r.NextRetryAt = s.NextRetryAt
	r.LastSent = s.LastSent
	r.Active = s.Active
}

// OnSuccess resets the retry state after a successful send: counter pinned at
// zero, nextRetryAt cleared, lastSent advanced to now. Idempotent: applying
// it twice with the same now yields the same state. LastSent is monotonically
// non-decreasing; a stale now never rewinds it.
func OnSuccess(s State, now time.Time) State {
	last := now
	if s.LastSent != nil && s.LastSent.After(now) {
		last = *s.LastSent
	}
	return State{
		Phase:       PhaseReady,
		Attempts:    0,
		NextRetryAt: nil,
		LastSent:    &last,
		Active:      s.Active,
	}
}

// OnFailure advances the retry state after a failed send. While the attempt
// count is within the schedule, the recipient enters (or stays in) Backoff
// with nextRetryAt strictly in the future relative to now. Once the count
// exceeds the schedule, the recipient is deactivated and nextRetryAt cleared.
func OnFailure(s State, now time.Time) State {
	attempts := s.Attempts + 1

	if attempts > MaxAttempts {
		return State{
			Phase:       PhaseDeactivated,
			Attempts:    attempts,
			NextRetryAt: nil,
			LastSent:    s.LastSent,
			Active:      false,
		}
	}

	next := now.Add(BackoffSchedule[attempts-1])
	return State{
		Phase:       PhaseBackoff,
		Attempts:    attempts,
		NextRetryAt: &next,
		LastSent:    s.LastSent,
		Active:      s.Active,
	}
}

// WaitingForRetry reports whether the recipient is parked in backoff: a
// nextRetryAt is set and has not yet been reached.
func WaitingForRetry(r *types.Recipient, now time.Time) bool {
	return r.NextRetryAt != nil && now.Before(*r.NextRetryAt)
}
