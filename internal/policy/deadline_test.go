package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opencourt/pairing-settlement/internal/policy"
)

func intPtr(v int) *int { return &v }

func TestClampDeadlineHours(t *testing.T) {
	tests := []struct {
		name       string
		configured *int
		want       int
	}{
		{"unset falls back to default", nil, policy.DefaultDeadlineHours},
		{"in range kept", intPtr(24), 24},
		{"minimum kept", intPtr(policy.MinDeadlineHours), policy.MinDeadlineHours},
		{"maximum kept", intPtr(policy.MaxDeadlineHours), policy.MaxDeadlineHours},
		{"below range falls back", intPtr(1), policy.DefaultDeadlineHours},
		{"zero falls back", intPtr(0), policy.DefaultDeadlineHours},
		{"negative falls back", intPtr(-5), policy.DefaultDeadlineHours},
		{"above range falls back", intPtr(999), policy.DefaultDeadlineHours},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ClampDeadlineHours(tt.configured))
		})
	}
}

func TestComputeSplitDeadlineAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("deadline is hours before event start", func(t *testing.T) {
		start := now.Add(60 * time.Hour)
		deadline, ok := policy.ComputeSplitDeadlineAt(now, start, 24)
		assert.True(t, ok)
		assert.Equal(t, start.Add(-24*time.Hour), deadline)
	})

	t.Run("far-future event is capped relative to now", func(t *testing.T) {
		start := now.Add(30 * 24 * time.Hour)
		deadline, ok := policy.ComputeSplitDeadlineAt(now, start, 24)
		assert.True(t, ok)
		assert.True(t, deadline.Before(start.Add(-24*time.Hour)))
		assert.True(t, deadline.After(now))
	})

	t.Run("already past is flagged, never silently returned", func(t *testing.T) {
		start := now.Add(12 * time.Hour)
		deadline, ok := policy.ComputeSplitDeadlineAt(now, start, 24)
		assert.False(t, ok)
		assert.False(t, deadline.After(now))
	})

	t.Run("deadline exactly now counts as passed", func(t *testing.T) {
		start := now.Add(24 * time.Hour)
		_, ok := policy.ComputeSplitDeadlineAt(now, start, 24)
		assert.False(t, ok)
	})
}

func TestComputeGraceUntil(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(policy.GraceWindow), policy.ComputeGraceUntil(now))
}
