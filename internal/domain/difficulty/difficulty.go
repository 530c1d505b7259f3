// Package difficulty maps a per-tag skill snapshot to a content tier.
package difficulty

import (
	"time"

	"github.com/okian/leakcoach/internal/domain/model"
)

const (
	easyMaxRating  = 40
	hardMinRating  = 70
	hardMinStreak  = 3
	staleAfterDays = 14
)

// Classify returns the tier for a learner on one tag. Staleness can lower
// the tier but never raises it to hard.
func Classify(rating float64, streakCorrect int, lastPracticeAt *time.Time, now time.Time) model.Difficulty {
	if lastPracticeAt == nil {
		return model.Medium
	}

	if now.Sub(*lastPracticeAt) > staleAfterDays*24*time.Hour {
		if rating <= easyMaxRating {
			return model.Easy
		}
		return model.Medium
	}

	switch {
	case rating <= easyMaxRating:
		return model.Easy
	case rating >= hardMinRating && streakCorrect >= hardMinStreak:
		return model.Hard
	default:
		return model.Medium
	}
}

// ForSnapshot classifies a snapshot row.
func ForSnapshot(s model.SkillSnapshot, now time.Time) model.Difficulty {
	return Classify(s.Rating, s.StreakCorrect, s.LastPracticeAt, now)
}
