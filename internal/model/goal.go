package model

import (
	"math"
	"time"
)

// GoalOperator defines how a goal's current value is compared to its target.
type GoalOperator string

const (
	GoalGTE   GoalOperator = "gte"
	GoalLTE   GoalOperator = "lte"
	GoalEQ    GoalOperator = "eq"
	GoalRange GoalOperator = "range"
)

// Goal is a per-client, per-metric target. Progress and CurrentValue are
// refreshed by a separate calculation pass.
type Goal struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"client_id"`
	Metric       string       `json:"metric"`
	Operator     GoalOperator `json:"operator"`
	Target       float64      `json:"target"`
	TargetMax    *float64     `json:"target_max,omitempty"`
	Period       string       `json:"period"`
	Progress     float64      `json:"progress"`
	CurrentValue float64      `json:"current_value"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// eqTolerance is the relative slack accepted by GoalEQ.
const eqTolerance = 0.05

// Evaluate returns the progress (0..1, capped) and whether the goal is met
// for the given current value.
func (g Goal) Evaluate(current float64) (progress float64, met bool) {
	switch g.Operator {
	case GoalLTE:
		if current <= g.Target {
			return 1, true
		}
		if current == 0 {
			return 0, false
		}
		return clamp01(g.Target / current), false
	case GoalEQ:
		if g.Target == 0 {
			return boolProgress(current == 0)
		}
		diff := math.Abs(current-g.Target) / math.Abs(g.Target)
		return clamp01(1 - diff), diff <= eqTolerance
	case GoalRange:
		max := g.Target
		if g.TargetMax != nil {
			max = *g.TargetMax
		}
		if current >= g.Target && current <= max {
			return 1, true
		}
		if current < g.Target {
			if g.Target == 0 {
				return 0, false
			}
			return clamp01(current / g.Target), false
		}
		return clamp01(max / current), false
	default:
		if g.Target == 0 {
			return 1, true
		}
		return clamp01(current / g.Target), current >= g.Target
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func boolProgress(ok bool) (float64, bool) {
	if ok {
		return 1, true
	}
	return 0, false
}
