package retrypolicy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePolicy_NextTime(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := NewDefaultPolicy()

	next, ok := policy.NextTime(created, 0)
	require.True(t, ok)
	assert.True(t, next.Equal(created))

	next, ok = policy.NextTime(created, 1)
	require.True(t, ok)
	assert.True(t, next.Equal(created.Add(60*time.Second)))

	next, ok = policy.NextTime(created, 2)
	require.True(t, ok)
	assert.True(t, next.Equal(created.Add(300*time.Second)))

	next, ok = policy.NextTime(created, 5)
	require.True(t, ok)
	assert.True(t, next.Equal(created.Add(21600*time.Second)))

	_, ok = policy.NextTime(created, 6)
	assert.False(t, ok)
}

func TestTablePolicy_NextTime_NegativeAttemptsIsTerminal(t *testing.T) {
	policy := NewDefaultPolicy()
	_, ok := policy.NextTime(time.Now(), -1)
	assert.False(t, ok)
}

func TestTablePolicy_MaxAttempts(t *testing.T) {
	policy := NewDefaultPolicy()
	assert.Equal(t, 5, policy.MaxAttempts())
}

func TestTablePolicy_NextTime_NeverDriftsOnWallClock(t *testing.T) {
	// NextTime must depend only on createdAt and attemptsCompleted, never on
	// when it happens to be called (§3 invariant 4).
	policy := NewDefaultPolicy()
	created := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	a, ok := policy.NextTime(created, 3)
	require.True(t, ok)
	time.Sleep(time.Millisecond)
	b, ok := policy.NextTime(created, 3)
	require.True(t, ok)
	assert.True(t, a.Equal(b))
}

func TestNewTablePolicy_CopiesTable(t *testing.T) {
	table := []time.Duration{0, time.Second}
	policy := NewTablePolicy(table)
	table[1] = time.Hour // mutate the caller's slice after construction

	created := time.Now()
	next, ok := policy.NextTime(created, 1)
	require.True(t, ok)
	assert.True(t, next.Equal(created.Add(time.Second)), "policy must not alias the caller's table")
}
