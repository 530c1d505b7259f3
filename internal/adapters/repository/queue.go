package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
)

const itemColumns = `id, user_id, batch_id, position, leak_tag, drill_type, difficulty, status,
	due_at, repetition, last_score, scenario, created_at`

type queueRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	BatchID    string         `db:"batch_id"`
	Position   int            `db:"position"`
	LeakTag    leaktag.Tag    `db:"leak_tag"`
	DrillType  string         `db:"drill_type"`
	Difficulty string         `db:"difficulty"`
	Status     string         `db:"status"`
	DueAt      int64          `db:"due_at"`
	Repetition int            `db:"repetition"`
	LastScore  sql.NullInt64  `db:"last_score"`
	Scenario   sql.NullString `db:"scenario"`
	CreatedAt  int64          `db:"created_at"`
}

func toQueueRow(it model.QueueItem) queueRow {
	r := queueRow{
		ID:         it.ID,
		UserID:     it.UserID,
		BatchID:    it.BatchID,
		Position:   it.Position,
		LeakTag:    it.LeakTag,
		DrillType:  string(it.DrillType),
		Difficulty: string(it.Difficulty),
		Status:     string(it.Status),
		DueAt:      toMillis(it.DueAt),
		Repetition: it.Repetition,
		Scenario:   nullString(string(it.Scenario)),
		CreatedAt:  toMillis(it.CreatedAt),
	}
	if it.LastScore != nil {
		r.LastScore = sql.NullInt64{Int64: int64(*it.LastScore), Valid: true}
	}
	return r
}

func (r queueRow) item() model.QueueItem {
	it := model.QueueItem{
		ID:         r.ID,
		UserID:     r.UserID,
		BatchID:    r.BatchID,
		Position:   r.Position,
		LeakTag:    r.LeakTag,
		DrillType:  model.DrillType(r.DrillType),
		Difficulty: model.Difficulty(r.Difficulty),
		Status:     model.Status(r.Status),
		DueAt:      fromMillis(r.DueAt),
		Repetition: r.Repetition,
		CreatedAt:  fromMillis(r.CreatedAt),
	}
	if r.LastScore.Valid {
		score := int(r.LastScore.Int64)
		it.LastScore = &score
	}
	if r.Scenario.Valid {
		it.Scenario = json.RawMessage(r.Scenario.String)
	}
	return it
}

// HasPending reports whether the learner has any due or scheduled item.
func (s *Store) HasPending(ctx context.Context, userID string) (pending bool, err error) {
	defer func(start time.Time) { observe("has_pending", start, err) }(time.Now())

	n, err := countPending(ctx, s.db, userID)
	if err != nil {
		return false, fmt.Errorf("has pending: %w", err)
	}
	return n > 0, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func countPending(ctx context.Context, q queryer, userID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, q.Rebind(
		`SELECT COUNT(*) FROM queue_items WHERE user_id = ? AND status IN (?, ?)`),
		userID, string(model.StatusDue), string(model.StatusScheduled))
	return n, err
}

// InsertBatch stores a freshly built batch. The pending check, the batch
// generation claim and the item inserts share one transaction; a concurrent
// builder that loses the (user_id, generation) key gets ErrBatchExists.
func (s *Store) InsertBatch(ctx context.Context, userID string, focusTag leaktag.Tag, items []model.QueueItem) (err error) {
	defer func(start time.Time) { observe("insert_batch", start, err) }(time.Now())

	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert batch: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	n, err := countPending(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("insert batch: pending: %w", err)
	}
	if n > 0 {
		return ErrBatchExists
	}

	var generation int
	err = tx.GetContext(ctx, &generation, tx.Rebind(
		`SELECT COALESCE(MAX(generation), 0) + 1 FROM queue_batches WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("insert batch: generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(
		`INSERT INTO queue_batches (id, user_id, generation, focus_tag, created_at) VALUES (?, ?, ?, ?, ?)`),
		items[0].BatchID, userID, generation, focusTag, toMillis(items[0].CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBatchExists
		}
		return fmt.Errorf("insert batch: claim: %w", err)
	}

	rows := make([]queueRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, toQueueRow(it))
	}
	_, err = tx.NamedExecContext(ctx, `INSERT INTO queue_items (`+itemColumns+`)
		VALUES (:id, :user_id, :batch_id, :position, :leak_tag, :drill_type, :difficulty, :status,
		:due_at, :repetition, :last_score, :scenario, :created_at)`, rows)
	if err != nil {
		return fmt.Errorf("insert batch: items: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("insert batch: commit: %w", err)
	}
	return nil
}

// GetItem loads an item owned by userID. Items of other learners are
// reported as ErrNotFound.
func (s *Store) GetItem(ctx context.Context, userID, itemID string) (it model.QueueItem, err error) {
	defer func(start time.Time) { observe("get_item", start, err) }(time.Now())

	var row queueRow
	err = s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT `+itemColumns+` FROM queue_items WHERE id = ? AND user_id = ?`), itemID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.QueueItem{}, ErrNotFound
	}
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("get item: %w", err)
	}
	return row.item(), nil
}

// UpdateSchedule writes next only if the stored item still matches prev's
// repetition and due time. A lost race returns ErrConflict.
func (s *Store) UpdateSchedule(ctx context.Context, prev, next model.QueueItem) (err error) {
	defer func(start time.Time) { observe("update_schedule", start, err) }(time.Now())

	row := toQueueRow(next)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE queue_items
		SET status = ?, due_at = ?, repetition = ?, last_score = ?
		WHERE id = ? AND user_id = ? AND repetition = ? AND due_at = ?`),
		row.Status, row.DueAt, row.Repetition, row.LastScore,
		prev.ID, prev.UserID, prev.Repetition, toMillis(prev.DueAt))
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// DueItems lists the learner's items due at or before now, oldest first.
// Items due together keep the order they were built in.
func (s *Store) DueItems(ctx context.Context, userID string, now time.Time, limit int) (items []model.QueueItem, err error) {
	defer func(start time.Time) { observe("due_items", start, err) }(time.Now())

	var rows []queueRow
	err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+itemColumns+` FROM queue_items
		WHERE user_id = ? AND due_at <= ? ORDER BY due_at, created_at, position, id LIMIT ?`),
		userID, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("due items: %w", err)
	}
	items = make([]model.QueueItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item())
	}
	return items, nil
}

// AttachScenario stores drill content on an item owned by userID.
func (s *Store) AttachScenario(ctx context.Context, userID, itemID string, scenario json.RawMessage) (err error) {
	defer func(start time.Time) { observe("attach_scenario", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE queue_items SET scenario = ? WHERE id = ? AND user_id = ?`),
		string(scenario), itemID, userID)
	if err != nil {
		return fmt.Errorf("attach scenario: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach scenario: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UsersWithoutPending lists learners with skill rows and no queued items.
func (s *Store) UsersWithoutPending(ctx context.Context) (users []string, err error) {
	defer func(start time.Time) { observe("users_without_pending", start, err) }(time.Now())

	err = s.db.SelectContext(ctx, &users, s.db.Rebind(`SELECT DISTINCT user_id FROM skills
		WHERE user_id NOT IN (SELECT user_id FROM queue_items WHERE status IN (?, ?))
		ORDER BY user_id`), string(model.StatusDue), string(model.StatusScheduled))
	if err != nil {
		return nil, fmt.Errorf("users without pending: %w", err)
	}
	return users, nil
}

// CountDue counts items across all learners due at or before now.
func (s *Store) CountDue(ctx context.Context, now time.Time) (n int, err error) {
	defer func(start time.Time) { observe("count_due", start, err) }(time.Now())

	err = s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM queue_items WHERE due_at <= ?`), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("count due: %w", err)
	}
	return n, nil
}
