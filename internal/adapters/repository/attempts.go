package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

type attemptRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	QueueItemID   string         `db:"queue_item_id"`
	LeakTag       leaktag.Tag    `db:"leak_tag"`
	DrillType     string         `db:"drill_type"`
	Scenario      sql.NullString `db:"scenario"`
	ChosenAction  string         `db:"chosen_action"`
	CorrectAction string         `db:"correct_action"`
	Correct       int            `db:"correct"`
	MistakeTag    leaktag.Tag    `db:"mistake_tag"`
	MistakeReason sql.NullString `db:"mistake_reason"`
	CreatedAt     int64          `db:"created_at"`
	ItemRep       int            `db:"item_repetition"`
	ItemDueAt     int64          `db:"item_due_at"`
}

// RecordAttempt appends an immutable attempt record. A second record for the
// same item state returns ErrDuplicateAttempt.
func (s *Store) RecordAttempt(ctx context.Context, a model.Attempt) (err error) {
	defer func(start time.Time) { observe("record_attempt", start, err) }(time.Now())

	row := attemptRow{
		ID:            a.ID,
		UserID:        a.UserID,
		QueueItemID:   a.QueueItemID,
		LeakTag:       a.LeakTag,
		DrillType:     string(a.DrillType),
		Scenario:      nullString(string(a.Scenario)),
		ChosenAction:  a.ChosenAction,
		CorrectAction: a.CorrectAction,
		MistakeTag:    a.MistakeTag,
		MistakeReason: nullString(a.MistakeReason),
		CreatedAt:     toMillis(a.CreatedAt),
		ItemRep:       a.ItemRepetition,
		ItemDueAt:     toMillis(a.ItemDueAt),
	}
	if a.Correct {
		row.Correct = 1
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO attempts
		(id, user_id, queue_item_id, leak_tag, drill_type, scenario, chosen_action,
		 correct_action, correct, mistake_tag, mistake_reason, created_at, item_repetition, item_due_at)
		VALUES (:id, :user_id, :queue_item_id, :leak_tag, :drill_type, :scenario, :chosen_action,
		 :correct_action, :correct, :mistake_tag, :mistake_reason, :created_at, :item_repetition, :item_due_at)`, row)
	if isUniqueViolation(err) {
		return ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// MistakeHistory aggregates the learner's attempts on tag since the given time.
func (s *Store) MistakeHistory(ctx context.Context, userID string, tag leaktag.Tag, since time.Time) (h *model.MistakeHistory, err error) {
	defer func(start time.Time) { observe("mistake_history", start, err) }(time.Now())

	var row struct {
		DecisionAttempts     int `db:"decision_attempts"`
		DecisionMistakes     int `db:"decision_mistakes"`
		SizingAttempts       int `db:"sizing_attempts"`
		SizingMistakes       int `db:"sizing_mistakes"`
		SizingReasonMistakes int `db:"sizing_reason_mistakes"`
	}
	q := s.db.Rebind(`SELECT
		COALESCE(SUM(CASE WHEN drill_type = ? THEN 1 ELSE 0 END), 0) AS decision_attempts,
		COALESCE(SUM(CASE WHEN drill_type = ? AND correct = 0 THEN 1 ELSE 0 END), 0) AS decision_mistakes,
		COALESCE(SUM(CASE WHEN drill_type = ? THEN 1 ELSE 0 END), 0) AS sizing_attempts,
		COALESCE(SUM(CASE WHEN drill_type = ? AND correct = 0 THEN 1 ELSE 0 END), 0) AS sizing_mistakes,
		COALESCE(SUM(CASE WHEN correct = 0 AND mistake_reason = ? THEN 1 ELSE 0 END), 0) AS sizing_reason_mistakes
		FROM attempts WHERE user_id = ? AND leak_tag = ? AND created_at >= ?`)
	err = s.db.GetContext(ctx, &row, q,
		string(model.ActionDecision), string(model.ActionDecision),
		string(model.RaiseSizing), string(model.RaiseSizing),
		model.ReasonSizing, userID, tag.String(), toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("mistake history: %w", err)
	}
	return &model.MistakeHistory{
		DecisionAttempts:     row.DecisionAttempts,
		DecisionMistakes:     row.DecisionMistakes,
		SizingAttempts:       row.SizingAttempts,
		SizingMistakes:       row.SizingMistakes,
		SizingReasonMistakes: row.SizingReasonMistakes,
	}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
