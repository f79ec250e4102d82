package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/types"
)

var evalTime = time.Date(2024, time.March, 10, 7, 0, 0, 0, time.UTC)

func freshState() State {
	return State{Phase: PhaseReady, Active: true}
}

func TestOnFailure_BackoffLadder(t *testing.T) {
	// Three consecutive failures from a fresh state produce 2h, 6h, 24h
	// delays; the fourth deactivates.
	s := freshState()

	wantDelays := []time.Duration{2 * time.Hour, 6 * time.Hour, 24 * time.Hour}
	for i, want := range wantDelays {
		s = OnFailure(s, evalTime)

		assert.Equal(t, PhaseBackoff, s.Phase, "failure %d", i+1)
		assert.Equal(t, i+1, s.Attempts)
		assert.True(t, s.Active)
		require.NotNil(t, s.NextRetryAt)
		assert.Equal(t, evalTime.Add(want), *s.NextRetryAt, "failure %d", i+1)
		assert.True(t, s.NextRetryAt.After(evalTime), "nextRetryAt must be strictly in the future")
	}

	s = OnFailure(s, evalTime)
	assert.Equal(t, PhaseDeactivated, s.Phase)
	assert.False(t, s.Active)
	assert.Nil(t, s.NextRetryAt)
}

func TestOnSuccess_ResetsRetryState(t *testing.T) {
	s := freshState()
	s = OnFailure(s, evalTime)
	s = OnFailure(s, evalTime)
	require.Equal(t, 2, s.Attempts)

	s = OnSuccess(s, evalTime)

	assert.Equal(t, PhaseReady, s.Phase)
	assert.Equal(t, 0, s.Attempts)
	assert.Nil(t, s.NextRetryAt)
	require.NotNil(t, s.LastSent)
	assert.Equal(t, evalTime, *s.LastSent)
	assert.True(t, s.Active)
}

func TestOnSuccess_Idempotent(t *testing.T) {
	// Applying OnSuccess twice with the same now yields the same state.
	s := OnSuccess(freshState(), evalTime)
	again := OnSuccess(s, evalTime)

	assert.Equal(t, s.Phase, again.Phase)
	assert.Equal(t, s.Attempts, again.Attempts)
	assert.Equal(t, s.NextRetryAt, again.NextRetryAt)
	assert.Equal(t, *s.LastSent, *again.LastSent)
}

func TestOnSuccess_LastSentMonotonic(t *testing.T) {
	later := evalTime.Add(time.Hour)
	s := OnSuccess(freshState(), later)

	// A stale clock reading must not rewind lastSent.
	s = OnSuccess(s, evalTime)
	require.NotNil(t, s.LastSent)
	assert.Equal(t, later, *s.LastSent)
}

func TestOnFailure_DoesNotTouchLastSent(t *testing.T) {
	sent := evalTime.Add(-24 * time.Hour)
	s := freshState()
	s.LastSent = &sent

	s = OnFailure(s, evalTime)
	require.NotNil(t, s.LastSent)
	assert.Equal(t, sent, *s.LastSent)
}

func TestFromRecipientApplyRoundTrip(t *testing.T) {
	next := evalTime.Add(6 * time.Hour)
	sent := evalTime.Add(-7 * 24 * time.Hour)
	r := &types.Recipient{
		RetryAttempts: 2,
		NextRetryAt:   &next,
		LastSent:      &sent,
		Active:        true,
	}

	s := FromRecipient(r)
	assert.Equal(t, PhaseBackoff, s.Phase)

	s = OnSuccess(s, evalTime)
	s.Apply(r)

	assert.Equal(t, 0, r.RetryAttempts)
	assert.Nil(t, r.NextRetryAt)
	require.NotNil(t, r.LastSent)
	assert.Equal(t, evalTime, *r.LastSent)
	assert.True(t, r.Active)
}

func TestFromRecipient_Phases(t *testing.T) {
	tests := []struct {
		name string
		r    types.Recipient
		want Phase
	}{
		{"active no retries", types.Recipient{Active: true}, PhaseReady},
		{"active with retries", types.Recipient{Active: true, RetryAttempts: 1}, PhaseBackoff},
		{"inactive", types.Recipient{Active: false}, PhaseDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromRecipient(&tt.r).Phase)
		})
	}
}

func TestWaitingForRetry(t *testing.T) {
	future := evalTime.Add(time.Hour)
	past := evalTime.Add(-time.Hour)

	assert.True(t, WaitingForRetry(&types.Recipient{NextRetryAt: &future}, evalTime))
	assert.False(t, WaitingForRetry(&types.Recipient{NextRetryAt: &past}, evalTime))
	assert.False(t, WaitingForRetry(&types.Recipient{}, evalTime))
	// Boundary: retry due exactly at nextRetryAt.
	assert.False(t, WaitingForRetry(&types.Recipient{NextRetryAt: &evalTime}, evalTime))
}
