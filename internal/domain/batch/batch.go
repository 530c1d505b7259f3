// Package batch composes focus selection, drill mix and difficulty into a
// concrete batch of queue items for a learner with no pending work.
package batch

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leakcoach/internal/domain/difficulty"
	"github.com/okian/leakcoach/internal/domain/focus"
	"github.com/okian/leakcoach/internal/domain/leaktag"
	"github.com/okian/leakcoach/internal/domain/mix"
	"github.com/okian/leakcoach/internal/domain/model"
)

// Batch composition.
const (
	Size       = 10
	FocusShare = 0.7
)

// SkipPending is the summary reason when the learner still has work queued.
const SkipPending = "pending_items"

// HistoryFunc returns the 30-day mistake history for tag, or nil when it
// could not be read.
type HistoryFunc func(tag leaktag.Tag) *model.MistakeHistory

// Input is everything Build needs. History may be nil.
type Input struct {
	UserID     string
	HasPending bool
	Snapshots  []model.SkillSnapshot
	History    HistoryFunc
	Now        time.Time

	// NewID overrides ID generation; defaults to random UUIDs.
	NewID func() string
}

// Breakdown counts items per slot group.
type Breakdown struct {
	Focus int `json:"focus"`
	Other int `json:"other"`
}

// Summary describes a built (or skipped) batch.
type Summary struct {
	BatchID      string      `json:"batch_id,omitempty"`
	FocusTag     leaktag.Tag `json:"focus_tag"`
	SecondaryTag leaktag.Tag `json:"secondary_tag"`
	CreatedCount int         `json:"created_count"`
	Breakdown    Breakdown   `json:"breakdown"`
	FocusMix     mix.Result  `json:"focus_mix"`
	Skipped      string      `json:"skipped,omitempty"`
}

// Result holds the items ready for insertion and their summary.
type Result struct {
	Items   []model.QueueItem
	Summary Summary
}

// FocusSlots is the number of slots given to the primary tag.
func FocusSlots() int {
	return int(math.Round(Size * FocusShare))
}

// Build produces the next batch. It returns no items when the learner
// already has pending work.
func Build(in Input) Result {
	if in.HasPending {
		return Result{Summary: Summary{Skipped: SkipPending}}
	}

	newID := in.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	sel := focus.SelectWeeklyFocus(in.Snapshots, in.Now)

	var hist *model.MistakeHistory
	if in.History != nil {
		hist = in.History(sel.Primary)
	}

	focusSlots := FocusSlots()
	otherSlots := Size - focusSlots
	m := mix.Infer(hist, focusSlots)

	focusLevel := levelFor(in.Snapshots, sel.Primary, in.Now)
	otherLevel := levelFor(in.Snapshots, sel.Secondary, in.Now)

	batchID := newID()
	items := make([]model.QueueItem, 0, Size)
	add := func(tag leaktag.Tag, drill model.DrillType, level model.Difficulty) {
		items = append(items, model.QueueItem{
			ID:         newID(),
			UserID:     in.UserID,
			BatchID:    batchID,
			Position:   len(items),
			LeakTag:    tag,
			DrillType:  drill,
			Difficulty: level,
			Status:     model.StatusDue,
			DueAt:      in.Now,
			Repetition: 0,
			CreatedAt:  in.Now,
		})
	}

	for i := 0; i < m.SizingCount; i++ {
		add(sel.Primary, model.RaiseSizing, focusLevel)
	}
	for i := 0; i < m.DecisionCount; i++ {
		add(sel.Primary, model.ActionDecision, focusLevel)
	}
	for i := 0; i < otherSlots; i++ {
		drill := model.ActionDecision
		if i%2 == 1 {
			drill = model.RaiseSizing
		}
		add(sel.Secondary, drill, otherLevel)
	}

	return Result{
		Items: items,
		Summary: Summary{
			BatchID:      batchID,
			FocusTag:     sel.Primary,
			SecondaryTag: sel.Secondary,
			CreatedCount: len(items),
			Breakdown:    Breakdown{Focus: focusSlots, Other: otherSlots},
			FocusMix:     m,
		},
	}
}

func levelFor(snaps []model.SkillSnapshot, tag leaktag.Tag, now time.Time) model.Difficulty {
	s, ok := focus.SnapshotFor(snaps, tag)
	if !ok {
		return model.Medium
	}
	return difficulty.ForSnapshot(s, now)
}
