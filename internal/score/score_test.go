package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatretro/issueflow/internal/types"
)

func TestPriorityKnownValues(t *testing.T) {
	now := time.Now()

	// high severity, frequency 3, small fix, 8 days old:
	// 3 * log2(4) * 3 * 1.0 = 18.0
	got := Priority(types.SeverityHigh, 3, types.ComplexitySmall, now.Add(-8*24*time.Hour), now)
	assert.InDelta(t, 18.0, got, 1e-9)

	// critical, frequency 1, trivial fix, created today:
	// 4 * log2(2) * 4 * 1.5 = 24.0
	got = Priority(types.SeverityCritical, 1, types.ComplexityTrivial, now, now)
	assert.InDelta(t, 24.0, got, 1e-9)
}

func TestPriorityRecencyBoundary(t *testing.T) {
	now := time.Now()

	inside := Priority(types.SeverityMedium, 1, types.ComplexityMedium, now.Add(-6*24*time.Hour), now)
	outside := Priority(types.SeverityMedium, 1, types.ComplexityMedium, now.Add(-8*24*time.Hour), now)

	assert.InDelta(t, RecencyBoost, inside/outside, 1e-9)
}

func TestPriorityFrequencyMonotonic(t *testing.T) {
	now := time.Now()
	created := now.Add(-30 * 24 * time.Hour)

	prev := 0.0
	for freq := 1; freq <= 16; freq *= 2 {
		got := Priority(types.SeverityLow, freq, types.ComplexityLarge, created, now)
		assert.Greater(t, got, prev, "score must grow with frequency (freq=%d)", freq)
		prev = got
	}
}

func TestPriorityUnknownInputsScoreZero(t *testing.T) {
	now := time.Now()

	assert.Zero(t, Priority("", 5, types.ComplexitySmall, now, now))
	assert.Zero(t, Priority(types.SeverityHigh, 5, "", now, now))
}

func TestPriorityClampsFrequency(t *testing.T) {
	now := time.Now()

	zero := Priority(types.SeverityHigh, 0, types.ComplexitySmall, now, now)
	one := Priority(types.SeverityHigh, 1, types.ComplexitySmall, now, now)
	assert.Equal(t, one, zero)
}

func TestAggregateIsMaxMemberScore(t *testing.T) {
	s1, s2 := 4.5, 12.0
	members := []*types.Issue{
		{ID: "a", PriorityScore: &s1},
		{ID: "b", PriorityScore: &s2},
		{ID: "c"}, // unscored member contributes zero
	}

	assert.Equal(t, 12.0, Aggregate(members))
	assert.Zero(t, Aggregate(nil))
}

func TestComputable(t *testing.T) {
	i := &types.Issue{ID: "x", Severity: types.SeverityHigh, FixComplexity: types.ComplexitySmall}
	assert.True(t, Computable(i))

	i.FixComplexity = ""
	assert.False(t, Computable(i))
}

func TestMaxPriorityIsScaleCeiling(t *testing.T) {
	now := time.Now()
	got := Priority(types.SeverityCritical, 1, types.ComplexityTrivial, now, now)
	assert.InDelta(t, MaxPriority, got, 1e-9)
}
