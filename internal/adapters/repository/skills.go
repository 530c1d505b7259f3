package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/leakcoach/internal/domain/model"
)

type skillRow struct {
	UserID         string        `db:"user_id"`
	Tag            string        `db:"tag"`
	Rating         float64       `db:"rating"`
	Attempts7d     int           `db:"attempts_7d"`
	Correct7d      int           `db:"correct_7d"`
	StreakCorrect  int           `db:"streak_correct"`
	LastPracticeAt sql.NullInt64 `db:"last_practice_at"`
}

func (r skillRow) snapshot() model.SkillSnapshot {
	s := model.SkillSnapshot{
		Tag:           r.Tag,
		Rating:        r.Rating,
		Attempts7d:    r.Attempts7d,
		Correct7d:     r.Correct7d,
		StreakCorrect: r.StreakCorrect,
	}
	if r.LastPracticeAt.Valid {
		t := fromMillis(r.LastPracticeAt.Int64)
		s.LastPracticeAt = &t
	}
	return s
}

// SkillSnapshots returns the learner's skill rows ordered by tag.
func (s *Store) SkillSnapshots(ctx context.Context, userID string) (snaps []model.SkillSnapshot, err error) {
	defer func(start time.Time) { observe("skill_snapshots", start, err) }(time.Now())

	var rows []skillRow
	q := s.db.Rebind(`SELECT user_id, tag, rating, attempts_7d, correct_7d, streak_correct, last_practice_at
		FROM skills WHERE user_id = ? ORDER BY tag`)
	if err = s.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("skill snapshots: %w", err)
	}
	snaps = make([]model.SkillSnapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, r.snapshot())
	}
	return snaps, nil
}

// UpsertSkill writes one skill row. Ratings are owned by the external
// aggregator; this is its write path.
func (s *Store) UpsertSkill(ctx context.Context, userID string, snap model.SkillSnapshot) (err error) {
	defer func(start time.Time) { observe("upsert_skill", start, err) }(time.Now())

	row := skillRow{
		UserID:        userID,
		Tag:           snap.Tag,
		Rating:        snap.Rating,
		Attempts7d:    snap.Attempts7d,
		Correct7d:     snap.Correct7d,
		StreakCorrect: snap.StreakCorrect,
	}
	if snap.LastPracticeAt != nil {
		row.LastPracticeAt = sql.NullInt64{Int64: toMillis(*snap.LastPracticeAt), Valid: true}
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO skills
		(user_id, tag, rating, attempts_7d, correct_7d, streak_correct, last_practice_at)
		VALUES (:user_id, :tag, :rating, :attempts_7d, :correct_7d, :streak_correct, :last_practice_at)
		ON CONFLICT (user_id, tag) DO UPDATE SET
			rating = excluded.rating,
			attempts_7d = excluded.attempts_7d,
			correct_7d = excluded.correct_7d,
			streak_correct = excluded.streak_correct,
			last_practice_at = excluded.last_practice_at`, row)
	if err != nil {
		return fmt.Errorf("upsert skill: %w", err)
	}
	return nil
}
