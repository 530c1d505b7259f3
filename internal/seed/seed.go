// Package seed generates plausible skill rows for local runs and demos.
package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

// Generation ranges.
const (
	minTagsPerLearner = 3
	maxAttempts7d     = 20
	maxStreak         = 6
	maxIdleDays       = 30
	neverPracticedPct = 15
	messyLabelPct     = 20
)

// Learner is one learner and their skill rows.
type Learner struct {
	ID     string
	Skills []model.SkillSnapshot
}

// Generate returns n learners with random skill rows. The same seed yields
// the same learners. Some labels are written the way an upstream tagger
// would, e.g. "Chasing-Draws", so canonicalization gets exercised.
func Generate(n int, seed uint64, now time.Time) []Learner {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // demo data
	tags := leaktag.All()[1:] // fundamentals is the fallback, not a tracked skill

	out := make([]Learner, 0, n)
	for i := 0; i < n; i++ {
		l := Learner{ID: fmt.Sprintf("learner-%03d", i+1)}
		count := minTagsPerLearner + r.IntN(len(tags)-minTagsPerLearner+1)
		for _, idx := range r.Perm(len(tags))[:count] {
			l.Skills = append(l.Skills, snapshot(r, tags[idx], now))
		}
		out = append(out, l)
	}
	return out
}

func snapshot(r *rand.Rand, tag leaktag.Tag, now time.Time) model.SkillSnapshot {
	attempts := r.IntN(maxAttempts7d + 1)
	correct := 0
	if attempts > 0 {
		correct = r.IntN(attempts + 1)
	}
	s := model.SkillSnapshot{
		Tag:           label(r, tag),
		Rating:        float64(r.IntN(101)),
		Attempts7d:    attempts,
		Correct7d:     correct,
		StreakCorrect: r.IntN(maxStreak + 1),
	}
	if r.IntN(100) >= neverPracticedPct {
		last := now.Add(-time.Duration(r.Int64N(int64(maxIdleDays * 24 * time.Hour))))
		s.LastPracticeAt = &last
	}
	return s
}

func label(r *rand.Rand, tag leaktag.Tag) string {
	name := tag.String()
	if r.IntN(100) >= messyLabelPct {
		return name
	}
	parts := strings.Split(name, "_")
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return " " + strings.Join(parts, "-") + " "
}
