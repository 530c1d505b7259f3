// Package mix decides the ratio of sizing to decision drills for the focus
// slots from the learner's recent mistake statistics.
package mix

import (
	"math"

	"github.com/okian/leakcoach/internal/domain/model"
)

// Mode names the rule that produced a mix.
type Mode string

// Mix modes.
const (
	InsufficientData Mode = "insufficient_data"
	SizingHeavy      Mode = "sizing_heavy"
	ActionHeavy      Mode = "action_heavy"
	Balanced         Mode = "balanced"
)

// Inference thresholds.
const (
	minEvidenceAttempts = 10
	rateGap             = 0.10
	minReasonMistakes   = 6
	sizingReasonHigh    = 0.45
	sizingReasonLow     = 0.15

	balancedShare     = 0.5
	sizingHeavyShare  = 0.7
	actionHeavyShare  = 0.3
	reinforcedSizing  = 0.8
	reinforcedActions = 0.2

	// epsilon absorbs float error so 0.30-0.20 lands on the 0.10 boundary.
	epsilon = 1e-9
)

// Diagnostics are informational and never feed back into the decision.
type Diagnostics struct {
	DecisionAttempts  int     `json:"decision_attempts"`
	SizingAttempts    int     `json:"sizing_attempts"`
	DecisionRate      float64 `json:"decision_mistake_rate"`
	SizingRate        float64 `json:"sizing_mistake_rate"`
	SizingReasonShare float64 `json:"sizing_reason_share"`
	Reinforced        bool    `json:"reinforced"`
}

// Result is the drill-type split for the focus slots.
type Result struct {
	Mode          Mode        `json:"mode"`
	SizingShare   float64     `json:"sizing_share"`
	SizingCount   int         `json:"sizing_count"`
	DecisionCount int         `json:"decision_count"`
	Diagnostics   Diagnostics `json:"diagnostics"`
}

// Infer computes the mix for focusSlots slots. A nil history means the
// history could not be read and is treated as insufficient data.
func Infer(h *model.MistakeHistory, focusSlots int) Result {
	if focusSlots < 0 {
		focusSlots = 0
	}

	if h == nil || h.TotalAttempts() < minEvidenceAttempts {
		res := Result{Mode: InsufficientData, SizingShare: balancedShare}
		if h != nil {
			res.Diagnostics.DecisionAttempts = h.DecisionAttempts
			res.Diagnostics.SizingAttempts = h.SizingAttempts
		}
		return split(res, focusSlots)
	}

	d := Diagnostics{
		DecisionAttempts: h.DecisionAttempts,
		SizingAttempts:   h.SizingAttempts,
		DecisionRate:     rate(h.DecisionMistakes, h.DecisionAttempts),
		SizingRate:       rate(h.SizingMistakes, h.SizingAttempts),
	}

	res := Result{Mode: Balanced, SizingShare: balancedShare}
	delta := d.SizingRate - d.DecisionRate
	switch {
	case delta >= rateGap-epsilon:
		res.Mode, res.SizingShare = SizingHeavy, sizingHeavyShare
	case -delta >= rateGap-epsilon:
		res.Mode, res.SizingShare = ActionHeavy, actionHeavyShare
	}

	if mistakes := h.TotalMistakes(); mistakes >= minReasonMistakes {
		d.SizingReasonShare = float64(h.SizingReasonMistakes) / float64(mistakes)
		switch {
		case d.SizingReasonShare >= sizingReasonHigh-epsilon:
			res.Mode = SizingHeavy
			res.SizingShare = math.Max(res.SizingShare, reinforcedSizing)
			d.Reinforced = true
		case d.SizingReasonShare <= sizingReasonLow+epsilon:
			res.Mode = ActionHeavy
			res.SizingShare = math.Min(res.SizingShare, reinforcedActions)
			d.Reinforced = true
		}
	}

	res.Diagnostics = d
	return split(res, focusSlots)
}

func split(res Result, slots int) Result {
	res.SizingCount = int(math.Round(float64(slots) * res.SizingShare))
	if res.SizingCount > slots {
		res.SizingCount = slots
	}
	res.DecisionCount = slots - res.SizingCount
	return res
}

func rate(mistakes, attempts int) float64 {
	if attempts < 1 {
		attempts = 1
	}
	return float64(mistakes) / float64(attempts)
}
