package limits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"looper/internal/models"
)

func TestParseMaxDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2h30m", 2*time.Hour + 30*time.Minute, false},
		{"90m", 90 * time.Minute, false},
		{"1h", time.Hour, false},
		{"45s", 45 * time.Second, false},
		{"1h2m3s", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"", 0, false},
		{"2d", 0, true},
		{"500ms", 0, true},
		{"90", 0, true},
		{"h", 0, true},
		{"-1h", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMaxDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func newSession(iteration int, cost float64, started time.Time) *models.Session {
	return &models.Session{
		Iteration:    iteration,
		TotalCostUSD: cost,
		StartedAt:    started,
	}
}

func TestEvaluate_IterationLimit(t *testing.T) {
	l := Limits{MaxIterations: 3}
	now := time.Now().UTC()

	ok, reason := evaluateAt(newSession(2, 0, now), l, now)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	ok, reason = evaluateAt(newSession(3, 0, now), l, now)
	assert.False(t, ok)
	assert.Equal(t, ReasonIterations, reason)
}

func TestEvaluate_DurationLimit(t *testing.T) {
	started := time.Now().UTC()
	l := Limits{MaxIterations: 100, MaxDuration: time.Minute}

	ok, reason := evaluateAt(newSession(1, 0, started), l, started.Add(30*time.Second))
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)

	// Elapsed equal to the budget stops the loop.
	ok, reason = evaluateAt(newSession(1, 0, started), l, started.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, ReasonDuration, reason)
}

func TestEvaluate_NoDurationConfigured(t *testing.T) {
	started := time.Now().UTC().Add(-24 * time.Hour)
	l := Limits{MaxIterations: 100}

	ok, reason := evaluateAt(newSession(1, 0, started), l, time.Now().UTC())
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestEvaluate_CostLimit(t *testing.T) {
	now := time.Now().UTC()
	l := Limits{MaxIterations: 100, MaxCostUSD: 5}

	ok, _ := evaluateAt(newSession(1, 4.99, now), l, now)
	assert.True(t, ok)

	ok, reason := evaluateAt(newSession(1, 5, now), l, now)
	assert.False(t, ok)
	assert.Equal(t, ReasonCost, reason)
}

func TestEvaluate_CostLimitIgnoredWithoutData(t *testing.T) {
	// No cost observed yet: nothing to compare against, check passes.
	now := time.Now().UTC()
	l := Limits{MaxIterations: 100, MaxCostUSD: 0.01}

	ok, reason := evaluateAt(newSession(10, 0, now), l, now)
	assert.True(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestEvaluate_IterationLimitCheckedFirst(t *testing.T) {
	started := time.Now().UTC().Add(-time.Hour)
	l := Limits{MaxIterations: 1, MaxDuration: time.Minute}

	_, reason := evaluateAt(newSession(1, 0, started), l, time.Now().UTC())
	assert.Equal(t, ReasonIterations, reason)
}
