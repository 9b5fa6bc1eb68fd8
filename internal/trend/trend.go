package trend

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/pattern"
)

// Type is the longitudinal classification of a pattern.
type Type string

const (
	Stable      Type = "stable"
	Fluctuating Type = "fluctuating"
	Improving   Type = "improving"
)

// MinSessions is the smallest window that yields trends.
const MinSessions = 3

// Summary is a regenerable cache row, one per (learner, pattern).
type Summary struct {
	LearnerID    uuid.UUID `json:"learner_id"`
	PatternName  string    `json:"pattern_name"`
	TrendType    Type      `json:"trend_type"`
	SessionCount int       `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// Result is either Insufficient or a set of summaries.
type Result struct {
	Insufficient bool
	SessionCount int
	Summaries    []Summary
}

// Aggregate classifies every pattern seen in the snapshots. Snapshots must
// belong to one learner; they are re-sorted by creation time so callers do
// not have to guarantee order.
func Aggregate(learnerID uuid.UUID, snapshots []pattern.Snapshot, now time.Time) Result {
	n := len(snapshots)
	if n < MinSessions {
		return Result{Insufficient: true, SessionCount: n}
	}

	ordered := make([]pattern.Snapshot, n)
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var names []string
	seen := make(map[string]bool)
	for _, s := range ordered {
		if !seen[s.PatternName] {
			seen[s.PatternName] = true
			names = append(names, s.PatternName)
		}
	}
	sort.Strings(names)

	res := Result{SessionCount: n}
	for _, name := range names {
		present := make([]bool, n)
		count := 0
		for i, s := range ordered {
			if s.PatternName == name {
				present[i] = true
				count++
			}
		}
		res.Summaries = append(res.Summaries, Summary{
			LearnerID:    learnerID,
			PatternName:  name,
			TrendType:    Classify(present),
			SessionCount: count,
			UpdatedAt:    now.UTC(),
		})
	}
	return res
}

// Classify applies the fixed rule order to one pattern's presence vector.
//
//  1. presence alternates every session                  -> fluctuating
//  2. seen in more earlier-half than later-half sessions -> improving
//  3. present in strictly more than 70% of sessions      -> stable
//  4. anything else, including exactly 30% or 70%        -> fluctuating
//
// Halves are the first and last floor(n/2) sessions; the middle session of an
// odd window belongs to neither. Every session counts once whatever the
// confidence of its snapshot. All arithmetic is on integers.
func Classify(present []bool) Type {
	n := len(present)
	half := n / 2

	var earlier, later, count int
	for i := 0; i < n; i++ {
		if !present[i] {
			continue
		}
		count++
		switch {
		case i < half:
			earlier++
		case i >= n-half:
			later++
		}
	}

	if alternates(present) {
		return Fluctuating
	}
	if earlier > later {
		return Improving
	}
	if count*10 > n*7 {
		return Stable
	}
	return Fluctuating
}

func alternates(present []bool) bool {
	if len(present) < MinSessions {
		return false
	}
	for i := 1; i < len(present); i++ {
		if present[i] == present[i-1] {
			return false
		}
	}
	return true
}
