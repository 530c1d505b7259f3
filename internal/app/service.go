// Package service provides the scheduler operations used by the HTTP API and
// the background jobs.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/leakcoach/internal/adapters/repository"
	"github.com/okian/leakcoach/internal/domain/batch"
	"github.com/okian/leakcoach/internal/domain/focus"
	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/model"
	"github.com/okian/leakcoach/internal/domain/repetition"
	"github.com/okian/leakcoach/pkg/logger"
	"github.com/okian/leakcoach/pkg/metrics"
)

// HistoryWindow is how far back mistake history is aggregated.
const HistoryWindow = 30 * 24 * time.Hour

// Store is the persistence the scheduler reads and writes.
type Store interface {
	SkillSnapshots(ctx context.Context, userID string) ([]model.SkillSnapshot, error)
	MistakeHistory(ctx context.Context, userID string, tag leaktag.Tag, since time.Time) (*model.MistakeHistory, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	InsertBatch(ctx context.Context, userID string, focusTag leaktag.Tag, items []model.QueueItem) error
	GetItem(ctx context.Context, userID, itemID string) (model.QueueItem, error)
	UpdateSchedule(ctx context.Context, prev, next model.QueueItem) error
	DueItems(ctx context.Context, userID string, now time.Time, limit int) ([]model.QueueItem, error)
	AttachScenario(ctx context.Context, userID, itemID string, scenario json.RawMessage) error
	UsersWithoutPending(ctx context.Context) ([]string, error)
}

// AttemptRecorder appends attempt records. Failures are logged and ignored.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a model.Attempt) error
}

// AnswerSummary is returned after an answer is scheduled.
type AnswerSummary struct {
	Correct    bool      `json:"correct"`
	NextDueAt  time.Time `json:"next_due_at"`
	Repetition int       `json:"repetition"`
}

// Service implements the scheduler operations.
type Service struct {
	store    Store
	attempts AttemptRecorder
	now      func() time.Time
	newID    func() string
	dueLimit int
	workers  int
	logger   logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides UUID generation for items, batches and attempts.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithAttemptRecorder routes attempt records somewhere other than the store.
func WithAttemptRecorder(r AttemptRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.attempts = r
		}
	}
}

// WithDueLimit caps DueItems results.
func WithDueLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dueLimit = n
		}
	}
}

// WithRefillWorkers sets how many learners RefillIdle builds concurrently.
func WithRefillWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New constructs a Service over store. If store also implements
// AttemptRecorder it is used for attempt records.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      time.Now,
		newID:    uuid.NewString,
		dueLimit: 50,
		workers:  defaultRefillWorkers,
		logger:   logger.Nop(),
	}
	if r, ok := store.(AttemptRecorder); ok {
		s.attempts = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildQueue creates the next batch for a learner with no queued items.
// Skill and history read failures fall back to defaults; a learner with
// pending work, including one who lost a concurrent build, gets a skipped
// summary and no error.
func (s *Service) BuildQueue(ctx context.Context, userID string) (batch.Summary, error) {
	if userID == "" {
		return batch.Summary{}, invalid("user id is required")
	}
	now := s.now().UTC()

	pending, err := s.store.HasPending(ctx, userID)
	if err != nil {
		// InsertBatch re-checks inside its transaction.
		s.logger.Warn(ctx, "pending check failed, continuing", logger.String("user", userID), logger.Error(err))
		metrics.RecordDegradedRead("pending")
		pending = false
	}
	if pending {
		metrics.RecordBatchSkipped(batch.SkipPending)
		s.logger.Debug(ctx, "learner has pending items", logger.String("user", userID))
		return batch.Summary{Skipped: batch.SkipPending}, nil
	}

	snaps, err := s.store.SkillSnapshots(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "skill snapshots unavailable, using empty set", logger.String("user", userID), logger.Error(err))
		metrics.RecordDegradedRead("skills")
		snaps = nil
	}

	res := batch.Build(batch.Input{
		UserID:    userID,
		Snapshots: snaps,
		History:   s.historyFor(ctx, userID, now),
		Now:       now,
		NewID:     s.newID,
	})

	err = s.store.InsertBatch(ctx, userID, res.Summary.FocusTag, res.Items)
	if errors.Is(err, repository.ErrBatchExists) {
		metrics.RecordBatchSkipped(batch.SkipPending)
		s.logger.Info(ctx, "concurrent build already queued items", logger.String("user", userID))
		return batch.Summary{Skipped: batch.SkipPending}, nil
	}
	if err != nil {
		return batch.Summary{}, fmt.Errorf("build queue: %w", err)
	}

	metrics.RecordBatchBuilt()
	metrics.RecordFocusMix(string(res.Summary.FocusMix.Mode))
	perDrill := map[model.DrillType]int{}
	for _, it := range res.Items {
		perDrill[it.DrillType]++
	}
	for d, n := range perDrill {
		metrics.RecordItemsCreated(string(d), n)
	}

	s.logger.Debug(ctx, "queue built",
		logger.String("user", userID),
		logger.String("batch", res.Summary.BatchID),
		logger.String("focus", res.Summary.FocusTag.String()),
		logger.String("secondary", res.Summary.SecondaryTag.String()),
		logger.String("mix", string(res.Summary.FocusMix.Mode)),
		logger.Int("created", res.Summary.CreatedCount),
	)
	return res.Summary, nil
}

func (s *Service) historyFor(ctx context.Context, userID string, now time.Time) batch.HistoryFunc {
	return func(tag leaktag.Tag) *model.MistakeHistory {
		h, err := s.store.MistakeHistory(ctx, userID, tag, now.Add(-HistoryWindow))
		if err != nil {
			s.logger.Warn(ctx, "mistake history unavailable, assuming insufficient data",
				logger.String("user", userID), logger.String("tag", tag.String()), logger.Error(err))
			metrics.RecordDegradedRead("history")
			return nil
		}
		return h
	}
}

// SubmitAnswer grades action against the item's scenario, appends an
// attempt record and reschedules the item.
func (s *Service) SubmitAnswer(ctx context.Context, userID, itemID, action string) (AnswerSummary, error) {
	switch {
	case userID == "":
		return AnswerSummary{}, invalid("user id is required")
	case itemID == "":
		return AnswerSummary{}, invalid("item id is required")
	case action == "":
		return AnswerSummary{}, invalid("action is required")
	}

	item, err := s.store.GetItem(ctx, userID, itemID)
	if err != nil {
		return AnswerSummary{}, fmt.Errorf("submit answer: %w", err)
	}
	if !item.DrillType.Accepts(action) {
		return AnswerSummary{}, invalid("action %q is not valid for %s", action, item.DrillType)
	}
	sc, err := decodeScenario(item.Scenario)
	if err != nil {
		return AnswerSummary{}, err
	}

	now := s.now().UTC()
	correct := action == sc.CorrectAction
	s.recordAttempt(ctx, item, action, sc.CorrectAction, correct, now)

	next := repetition.Apply(item, correct, now)
	if err := s.store.UpdateSchedule(ctx, item, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordScheduleConflict()
		}
		return AnswerSummary{}, fmt.Errorf("submit answer: %w", err)
	}
	metrics.RecordAnswer(correct)

	s.logger.Debug(ctx, "answer scheduled",
		logger.String("user", userID),
		logger.String("item", itemID),
		logger.Bool("correct", correct),
		logger.Int("repetition", next.Repetition),
		logger.Time("next_due_at", next.DueAt),
	)
	return AnswerSummary{Correct: correct, NextDueAt: next.DueAt, Repetition: next.Repetition}, nil
}

func (s *Service) recordAttempt(ctx context.Context, item model.QueueItem, chosen, correctAction string, correct bool, now time.Time) {
	if s.attempts == nil {
		return
	}
	a := model.Attempt{
		ID:            s.newID(),
		UserID:        item.UserID,
		QueueItemID:   item.ID,
		LeakTag:       leaktag.OrFundamentals(item.LeakTag),
		DrillType:     item.DrillType,
		Scenario:      item.Scenario,
		ChosenAction:  chosen,
		CorrectAction: correctAction,
		Correct:       correct,
		CreatedAt:     now,

		ItemRepetition: item.Repetition,
		ItemDueAt:      item.DueAt,
	}
	if !correct {
		a.MistakeTag = a.LeakTag
		a.MistakeReason = model.MistakeReason(item.DrillType, chosen, correctAction)
	}
	err := s.attempts.RecordAttempt(ctx, a)
	if errors.Is(err, repository.ErrDuplicateAttempt) {
		s.logger.Debug(ctx, "attempt already recorded for item state",
			logger.String("user", item.UserID), logger.String("item", item.ID))
		return
	}
	if err != nil {
		metrics.RecordAttemptRecordError()
		s.logger.Warn(ctx, "attempt record dropped",
			logger.String("user", item.UserID), logger.String("item", item.ID), logger.Error(err))
	}
}

func decodeScenario(raw json.RawMessage) (model.Scenario, error) {
	if len(raw) == 0 {
		return model.Scenario{}, ErrScenarioMissing
	}
	var sc model.Scenario
	if err := json.Unmarshal(raw, &sc); err != nil || sc.CorrectAction == "" {
		return model.Scenario{}, ErrScenarioMissing
	}
	return sc, nil
}

// WeeklyFocus returns the primary and secondary tags with their scores.
// A failed skill read yields the fundamentals fallback.
func (s *Service) WeeklyFocus(ctx context.Context, userID string) (focus.Selection, error) {
	if userID == "" {
		return focus.Selection{}, invalid("user id is required")
	}
	snaps, err := s.store.SkillSnapshots(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "skill snapshots unavailable, using empty set", logger.String("user", userID), logger.Error(err))
		metrics.RecordDegradedRead("skills")
		snaps = nil
	}
	return focus.SelectWeeklyFocus(snaps, s.now().UTC()), nil
}

// DueItems lists items due now, capped at limit or the configured maximum.
func (s *Service) DueItems(ctx context.Context, userID string, limit int) ([]model.QueueItem, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	if limit < 0 {
		return nil, invalid("limit must not be negative")
	}
	if limit == 0 || limit > s.dueLimit {
		limit = s.dueLimit
	}
	items, err := s.store.DueItems(ctx, userID, s.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("due items: %w", err)
	}
	return items, nil
}

// AttachScenario stores drill content on an item. The payload must be a JSON
// object whose correct_action belongs to the item's answer set.
func (s *Service) AttachScenario(ctx context.Context, userID, itemID string, payload json.RawMessage) error {
	if userID == "" || itemID == "" {
		return invalid("user id and item id are required")
	}
	item, err := s.store.GetItem(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("attach scenario: %w", err)
	}
	var sc model.Scenario
	if err := json.Unmarshal(payload, &sc); err != nil {
		return invalid("scenario must be a JSON object: %v", err)
	}
	if !item.DrillType.Accepts(sc.CorrectAction) {
		return invalid("correct_action %q is not valid for %s", sc.CorrectAction, item.DrillType)
	}
	if err := s.store.AttachScenario(ctx, userID, itemID, payload); err != nil {
		return fmt.Errorf("attach scenario: %w", err)
	}
	return nil
}
