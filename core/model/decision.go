package model

import "time"

// Reason codes attached to interval decisions. They explain why a slot ended
// up in its mode and are surfaced on dashboards and MQTT payloads.
const (
	ReasonDefault       = "default"
	ReasonScored        = "scored"
	ReasonGridCharge    = "grid_charge"
	ReasonPriceBandHold = "price_band_hold"
	ReasonNegativePrice = "negative_price"
	ReasonBalancing     = "balancing"
	ReasonHolding       = "holding"
	ReasonGuardLock     = "guard_lock"
)

// IntervalDecision is the planner output for one slot. Decisions are created
// fresh on every planning run and never mutated after the run returns.
type IntervalDecision struct {
	Index         int       `json:"index"`
	Start         time.Time `json:"start"`
	Mode          Mode      `json:"mode"`
	Reason        string    `json:"reason"`
	BatteryEnd    float64   `json:"battery_end"`
	GridImport    float64   `json:"grid_import"`
	GridExport    float64   `json:"grid_export"`
	Cost          float64   `json:"cost"`
	Balancing     bool      `json:"balancing,omitempty"`
	Holding       bool      `json:"holding,omitempty"`
	NegativePrice bool      `json:"negative_price,omitempty"`
}

// PlanResult aggregates the per-slot decisions of one planning run.
type PlanResult struct {
	Decisions     []IntervalDecision `json:"decisions"`
	TotalCost     float64            `json:"total_cost"`
	BaselineCost  float64            `json:"baseline_cost"`
	Savings       float64            `json:"savings"`
	FinalBattery  float64            `json:"final_battery"`
	ModeCounts    map[Mode]int       `json:"mode_counts"`
	Feasible      bool               `json:"feasible"`
	Infeasibility string             `json:"infeasibility,omitempty"`
}

// CountModes tallies the per-mode slot counts of a decision list.
func CountModes(decisions []IntervalDecision) map[Mode]int {
	counts := make(map[Mode]int, len(Modes))
	for _, d := range decisions {
		counts[d.Mode]++
	}
	return counts
}
