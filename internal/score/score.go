// Package score computes priority rankings for issues and clusters.
//
// The scoring function is pure and reproducible: the prioritization agent
// may propose scores, but this package is the ground truth whenever the
// inputs (severity, frequency, complexity, age) are known.
package score

import (
	"math"
	"time"

	"github.com/chatretro/issueflow/internal/types"
)

// RecencyWindow is the age under which an issue earns the recency boost.
const RecencyWindow = 7 * 24 * time.Hour

// RecencyBoost multiplies the score of recently created issues.
const RecencyBoost = 1.5

// MaxPriority is the ceiling of the scale for a freshly reported issue:
// critical severity, trivial fix, frequency 1, created today.
// Fast-tracked clusters are pinned to at least this value.
const MaxPriority = 24.0 // 4 * log2(2) * 4 * 1.5

// severityWeight maps severity to its scoring weight. Unknown severities
// weigh zero, which keeps unscorable issues at the bottom of the ranking.
func severityWeight(s types.Severity) float64 {
	switch s {
	case types.SeverityCritical:
		return 4
	case types.SeverityHigh:
		return 3
	case types.SeverityMedium:
		return 2
	case types.SeverityLow:
		return 1
	}
	return 0
}

// complexityInverse maps fix complexity to its scoring weight: cheaper
// fixes rank higher.
func complexityInverse(c types.Complexity) float64 {
	switch c {
	case types.ComplexityTrivial:
		return 4
	case types.ComplexitySmall:
		return 3
	case types.ComplexityMedium:
		return 2
	case types.ComplexityLarge:
		return 1
	}
	return 0
}

// Priority computes the score for the given inputs at time now.
//
//	severity_weight × log2(frequency+1) × complexity_inverse × recency
func Priority(severity types.Severity, frequency int, complexity types.Complexity, created, now time.Time) float64 {
	if frequency < 1 {
		frequency = 1
	}
	recency := 1.0
	if now.Sub(created) < RecencyWindow {
		recency = RecencyBoost
	}
	return severityWeight(severity) *
		math.Log2(float64(frequency)+1) *
		complexityInverse(complexity) *
		recency
}

// Computable reports whether the issue carries enough data for Priority to
// produce a meaningful (non-zero-weighted) score.
func Computable(i *types.Issue) bool {
	return i.Severity.IsValid() && i.FixComplexity.IsValid()
}

// Issue scores a single issue at time now.
func Issue(i *types.Issue, now time.Time) float64 {
	return Priority(i.Severity, i.Frequency, i.FixComplexity, i.Created, now)
}

// Aggregate returns the cluster-level priority: the maximum score among
// member issues. Issues without a score contribute zero.
func Aggregate(members []*types.Issue) float64 {
	max := 0.0
	for _, m := range members {
		if m.PriorityScore != nil && *m.PriorityScore > max {
			max = *m.PriorityScore
		}
	}
	return max
}
