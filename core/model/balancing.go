package model

import "time"

// BalancingPlan is the external request for a periodic full-charge-and-hold
// cycle used to calibrate the battery cells. The planner consumes it
// read-only; a malformed plan is ignored with a warning, never an error.
type BalancingPlan struct {
	HoldingStart       time.Time   `json:"holding_start"`
	HoldingEnd         time.Time   `json:"holding_end"`
	PreferredIntervals []time.Time `json:"preferred_intervals,omitempty"`
	Reason             string      `json:"reason,omitempty"`
	Mode               Mode        `json:"mode"`
	TargetSoCPercent   float64     `json:"target_soc_percent"`
}

// Deadline returns the time by which the battery must be fully charged,
// which is the start of the holding window.
func (p BalancingPlan) Deadline() time.Time { return p.HoldingStart }

// StrategyBalancingPlan is the balancing request normalized to slot indices
// of the current planning grid.
type StrategyBalancingPlan struct {
	ChargingIntervals map[int]struct{}
	HoldingIntervals  map[int]struct{}
	ModeOverrides     map[int]Mode
	Active            bool
}

// EmptyStrategyBalancingPlan returns an inactive plan with initialized sets.
func EmptyStrategyBalancingPlan() StrategyBalancingPlan {
	return StrategyBalancingPlan{
		ChargingIntervals: make(map[int]struct{}),
		HoldingIntervals:  make(map[int]struct{}),
		ModeOverrides:     make(map[int]Mode),
	}
}

// IsCharging reports whether slot i is a forced balancing charge slot.
func (p StrategyBalancingPlan) IsCharging(i int) bool {
	_, ok := p.ChargingIntervals[i]
	return ok
}

// IsHolding reports whether slot i falls inside the holding window.
func (p StrategyBalancingPlan) IsHolding(i int) bool {
	_, ok := p.HoldingIntervals[i]
	return ok
}

// Override returns the forced mode for slot i, if any.
func (p StrategyBalancingPlan) Override(i int) (Mode, bool) {
	m, ok := p.ModeOverrides[i]
	return m, ok
}

// Protected reports whether slot i must not be touched by smoothing.
func (p StrategyBalancingPlan) Protected(i int) bool {
	return p.Active && (p.IsCharging(i) || p.IsHolding(i))
}
