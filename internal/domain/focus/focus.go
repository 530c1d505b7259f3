// Package focus ranks leak tags by practice need and picks the weekly focus.
package focus

import (
	"time"

	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

// Need score constants.
const (
	maxRating              = 100
	minAttemptsForAccuracy = 5
	uncertainDeficit       = 0.15
	neverPracticedBonus    = 0.25
	staleBonus             = 0.20
	lowVolumeAttempts      = 3
	lowVolumeBonusValue    = 0.10
	staleAfter             = 14 * 24 * time.Hour
)

// Score is the need breakdown for one snapshot row.
type Score struct {
	Tag             leaktag.Tag `json:"tag"`
	Base            float64     `json:"base"`
	AccuracyDeficit float64     `json:"accuracy_deficit"`
	RecencyBonus    float64     `json:"recency_bonus"`
	LowVolumeBonus  float64     `json:"low_volume_bonus"`
	Total           float64     `json:"total"`
}

// Selection is the outcome of weekly focus selection.
type Selection struct {
	Primary   leaktag.Tag `json:"primary"`
	Secondary leaktag.Tag `json:"secondary"`
	Scores    []Score     `json:"scores,omitempty"`
}

// NeedScore computes how much a tag needs practice at time now. Higher is
// more urgent. Tags that do not enforce to a vocabulary member are scored
// as fundamentals.
func NeedScore(s model.SkillSnapshot, now time.Time) Score {
	sc := Score{
		Tag:  leaktag.OrFundamentals(leaktag.Enforce(s.Tag)),
		Base: (maxRating - s.Rating) / maxRating,
	}

	if s.Attempts7d >= minAttemptsForAccuracy {
		sc.AccuracyDeficit = 1 - float64(s.Correct7d)/float64(s.Attempts7d)
	} else {
		sc.AccuracyDeficit = uncertainDeficit
	}

	switch {
	case s.LastPracticeAt == nil:
		sc.RecencyBonus = neverPracticedBonus
	case now.Sub(*s.LastPracticeAt) > staleAfter:
		sc.RecencyBonus = staleBonus
	}

	if s.Attempts7d < lowVolumeAttempts {
		sc.LowVolumeBonus = lowVolumeBonusValue
	}

	sc.Total = sc.Base + sc.AccuracyDeficit + sc.RecencyBonus + sc.LowVolumeBonus
	return sc
}

// SelectWeeklyFocus picks the primary tag (highest need, first row wins ties)
// and the best-scoring secondary tag that differs from it. An empty input
// selects fundamentals for both.
func SelectWeeklyFocus(snaps []model.SkillSnapshot, now time.Time) Selection {
	sel := Selection{Primary: leaktag.Fundamentals, Secondary: leaktag.Fundamentals}
	if len(snaps) == 0 {
		return sel
	}

	sel.Scores = make([]Score, len(snaps))
	best := 0
	for i, s := range snaps {
		sel.Scores[i] = NeedScore(s, now)
		if sel.Scores[i].Total > sel.Scores[best].Total {
			best = i
		}
	}
	sel.Primary = sel.Scores[best].Tag

	second := -1
	for i, sc := range sel.Scores {
		if i == best || sc.Tag == sel.Primary {
			continue
		}
		if second < 0 || sc.Total > sel.Scores[second].Total {
			second = i
		}
	}
	if second >= 0 {
		sel.Secondary = sel.Scores[second].Tag
	}
	return sel
}

// SnapshotFor returns the first row whose tag enforces to tag.
func SnapshotFor(snaps []model.SkillSnapshot, tag leaktag.Tag) (model.SkillSnapshot, bool) {
	for _, s := range snaps {
		if leaktag.OrFundamentals(leaktag.Enforce(s.Tag)) == tag {
			return s, true
		}
	}
	return model.SkillSnapshot{}, false
}
