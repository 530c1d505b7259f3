// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"time"

	"github.com/okian/leakcoach/internal/domain/leaktag"
)

// DrillType is one of the two practice formats trained per leak tag.
type DrillType string

// Drill sub-types.
const (
	ActionDecision DrillType = "action_decision"
	RaiseSizing    DrillType = "raise_sizing"
)

// Status is the scheduling state of a queue item.
type Status string

// Queue item states. Items cycle between them indefinitely.
const (
	StatusDue       Status = "due"
	StatusScheduled Status = "scheduled"
)

// Difficulty is the content tier served for an item.
type Difficulty string

// Difficulty tiers.
const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Mistake reasons recorded on incorrect attempts.
const (
	ReasonSizing = "sizing"
	ReasonAction = "action"
)

var answers = map[DrillType]map[string]struct{}{
	ActionDecision: set("fold", "check", "call", "bet", "raise", "all_in"),
	RaiseSizing:    set("size_33", "size_50", "size_75", "size_100", "size_150", "overbet"),
}

var aggressive = set("bet", "raise", "all_in")

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}

// Valid reports whether d is a known drill type.
func (d DrillType) Valid() bool {
	_, ok := answers[d]
	return ok
}

// Accepts reports whether action is in the answer set of d.
func (d DrillType) Accepts(action string) bool {
	_, ok := answers[d][action]
	return ok
}

// MistakeReason classifies an incorrect answer. Wrong sizing drills and
// picking the wrong aggressive action are sizing failures; everything else
// is an action failure.
func MistakeReason(d DrillType, chosen, correct string) string {
	if d == RaiseSizing {
		return ReasonSizing
	}
	_, chosenAgg := aggressive[chosen]
	_, correctAgg := aggressive[correct]
	if chosenAgg && correctAgg {
		return ReasonSizing
	}
	return ReasonAction
}

// SkillSnapshot is the per user and tag skill row maintained by the external
// aggregator. Tag is the raw stored label.
type SkillSnapshot struct {
	Tag            string
	Rating         float64
	Attempts7d     int
	Correct7d      int
	StreakCorrect  int
	LastPracticeAt *time.Time
}

// MistakeHistory summarizes a rolling 30-day attempt window for one tag.
type MistakeHistory struct {
	DecisionAttempts     int
	DecisionMistakes     int
	SizingAttempts       int
	SizingMistakes       int
	SizingReasonMistakes int
}

// TotalAttempts returns attempts across both drill types.
func (h MistakeHistory) TotalAttempts() int { return h.DecisionAttempts + h.SizingAttempts }

// TotalMistakes returns incorrect attempts across both drill types.
func (h MistakeHistory) TotalMistakes() int { return h.DecisionMistakes + h.SizingMistakes }

// QueueItem is one schedulable unit of practice.
type QueueItem struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	BatchID    string          `json:"batch_id"`
	Position   int             `json:"position"`
	LeakTag    leaktag.Tag     `json:"leak_tag"`
	DrillType  DrillType       `json:"drill_type"`
	Difficulty Difficulty      `json:"difficulty"`
	Status     Status          `json:"status"`
	DueAt      time.Time       `json:"due_at"`
	Repetition int             `json:"repetition"`
	LastScore  *int            `json:"last_score"`
	Scenario   json.RawMessage `json:"scenario,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Scenario is the part of the drill payload the core reads.
type Scenario struct {
	CorrectAction string `json:"correct_action"`
}

// Attempt is the immutable record of one answered item.
type Attempt struct {
	ID            string
	UserID        string
	QueueItemID   string
	LeakTag       leaktag.Tag
	DrillType     DrillType
	Scenario      json.RawMessage
	ChosenAction  string
	CorrectAction string
	Correct       bool
	MistakeTag    leaktag.Tag // None when correct
	MistakeReason string      // empty when correct
	CreatedAt     time.Time

	// Item state that was answered. One attempt is kept per state.
	ItemRepetition int
	ItemDueAt      time.Time
}
