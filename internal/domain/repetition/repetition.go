// Package repetition implements the fixed-interval spaced repetition rule
// applied to a queue item each time it is answered.
package repetition

import (
	"time"

	"github.com/okian/leakcoach/internal/domain/model"
)

// Scores written to an item after an answer.
const (
	CorrectScore   = 100
	IncorrectScore = 0
)

// RetryDelay is how soon a missed item comes back.
const RetryDelay = 10 * time.Minute

// intervalDays is indexed by repetition count after increment, minus one.
// Repetitions past the end reuse the last entry.
var intervalDays = []int{1, 2, 3, 5, 8, 13, 14}

// Interval returns the wait after reaching repetition rep (rep >= 1).
func Interval(rep int) time.Duration {
	idx := rep - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(intervalDays) {
		idx = len(intervalDays) - 1
	}
	return time.Duration(intervalDays[idx]) * 24 * time.Hour
}

// Apply returns item advanced (correct) or reset (incorrect) at time now.
// The input is not modified.
func Apply(item model.QueueItem, correct bool, now time.Time) model.QueueItem {
	next := item
	if correct {
		next.Repetition = item.Repetition + 1
		next.DueAt = now.Add(Interval(next.Repetition))
		next.Status = model.StatusScheduled
		score := CorrectScore
		next.LastScore = &score
		return next
	}

	next.Repetition = 0
	next.DueAt = now.Add(RetryDelay)
	next.Status = model.StatusDue
	score := IncorrectScore
	next.LastScore = &score
	return next
}
