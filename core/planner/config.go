package planner

import "fmt"

// NegativePriceStrategy selects the behavior for slots with a negative spot
// price.
type NegativePriceStrategy string

const (
	// NegativeAuto charges if capacity remains, otherwise curtails solar or
	// maximizes consumption.
	NegativeAuto NegativePriceStrategy = "auto"
	// NegativeChargeFromGrid charges from the grid while being paid for it.
	NegativeChargeFromGrid NegativePriceStrategy = "charge"
	// NegativeCurtail avoids exporting at a loss by sending solar to the
	// battery.
	NegativeCurtail NegativePriceStrategy = "curtail"
	// NegativeConsume maximizes direct consumption of solar.
	NegativeConsume NegativePriceStrategy = "consume"
)

// Valid reports whether the strategy is one of the known values.
func (s NegativePriceStrategy) Valid() bool {
	switch s {
	case NegativeAuto, NegativeChargeFromGrid, NegativeCurtail, NegativeConsume:
		return true
	}
	return false
}

// ChargingStrategy selects how grid-charging slots are picked.
type ChargingStrategy string

const (
	// ChargingCheapestOnly picks only the cheapest slots needed to satisfy
	// the floor and target.
	ChargingCheapestOnly ChargingStrategy = "cheapest"
	// ChargingBelowThreshold allows any slot under the price ceiling.
	ChargingBelowThreshold ChargingStrategy = "below_threshold"
	// ChargingOpportunistic additionally lets the mode scorer pick modes for
	// slots the charge planner left free.
	ChargingOpportunistic ChargingStrategy = "opportunistic"
	// ChargingDisabled turns off discretionary grid charging; only floor
	// recovery still charges.
	ChargingDisabled ChargingStrategy = "disabled"
)

// Valid reports whether the strategy is one of the known values.
func (s ChargingStrategy) Valid() bool {
	switch s {
	case ChargingCheapestOnly, ChargingBelowThreshold, ChargingOpportunistic, ChargingDisabled:
		return true
	}
	return false
}

// HybridConfig holds the planning parameters. It is immutable per run.
type HybridConfig struct {
	// PlanningMinimumPercent is the soft floor as a percentage of capacity.
	PlanningMinimumPercent float64 `json:"planning_minimum_percent"`
	// TargetPercent is the desired level at horizon end.
	TargetPercent float64 `json:"target_percent"`
	// PriceCeiling is the maximum acceptable price for forced grid charging.
	PriceCeiling float64 `json:"price_ceiling"`
	// CheapPercentile marks prices in the lowest quantile as charge-worthy.
	CheapPercentile float64 `json:"cheap_percentile"`
	// MinArbitrageSpread is the minimum expected gain before the scorer
	// flags a slot as charge-worthy.
	MinArbitrageSpread float64 `json:"min_arbitrage_spread"`

	NegativePrice NegativePriceStrategy `json:"negative_price_strategy"`
	Charging      ChargingStrategy      `json:"charging_strategy"`

	// MinModeSlots and MinUPSSlots are the smoothing dwell minimums.
	MinModeSlots int `json:"min_mode_slots"`
	MinUPSSlots  int `json:"min_ups_slots"`
	// SmoothingPenalty is the per-switch cost used by the mode scorer.
	SmoothingPenalty float64 `json:"smoothing_penalty"`

	// LookaheadSlots bounds the forward window for price statistics.
	LookaheadSlots int `json:"lookahead_slots"`
	// PreNightSlots is the length of the pre-night preparation window.
	PreNightSlots int `json:"pre_night_slots"`

	// ExportPriceFactor scales the spot price into an export price.
	ExportPriceFactor float64 `json:"export_price_factor"`
	// SafetyBufferKWh is added to the floor during repair.
	SafetyBufferKWh float64 `json:"safety_buffer_kwh"`
}

// SetDefaults applies the defaults used by a typical installation.
func (c *HybridConfig) SetDefaults() {
	if c.PlanningMinimumPercent == 0 {
		c.PlanningMinimumPercent = 33
	}
	if c.TargetPercent == 0 {
		c.TargetPercent = 80
	}
	if c.PriceCeiling == 0 {
		c.PriceCeiling = 0.40
	}
	if c.CheapPercentile == 0 {
		c.CheapPercentile = 0.25
	}
	if c.MinArbitrageSpread == 0 {
		c.MinArbitrageSpread = 0.05
	}
	if c.NegativePrice == "" {
		c.NegativePrice = NegativeAuto
	}
	if c.Charging == "" {
		c.Charging = ChargingCheapestOnly
	}
	if c.MinModeSlots == 0 {
		c.MinModeSlots = 2
	}
	if c.MinUPSSlots == 0 {
		c.MinUPSSlots = 2
	}
	if c.LookaheadSlots == 0 {
		c.LookaheadSlots = 12
	}
	if c.PreNightSlots == 0 {
		c.PreNightSlots = 4
	}
	if c.ExportPriceFactor == 0 {
		c.ExportPriceFactor = 1
	}
	if c.SafetyBufferKWh == 0 {
		c.SafetyBufferKWh = 0.2
	}
}

// Validate checks parameter ranges.
func (c HybridConfig) Validate() error {
	if c.PlanningMinimumPercent < 0 || c.PlanningMinimumPercent > 100 {
		return fmt.Errorf("planning_minimum_percent must be in [0,100]")
	}
	if c.TargetPercent < c.PlanningMinimumPercent || c.TargetPercent > 100 {
		return fmt.Errorf("target_percent must be in [planning_minimum_percent,100]")
	}
	if c.CheapPercentile < 0 || c.CheapPercentile > 1 {
		return fmt.Errorf("cheap_percentile must be in [0,1]")
	}
	if !c.NegativePrice.Valid() {
		return fmt.Errorf("unknown negative_price_strategy %q", c.NegativePrice)
	}
	if !c.Charging.Valid() {
		return fmt.Errorf("unknown charging_strategy %q", c.Charging)
	}
	if c.MinModeSlots < 1 || c.MinUPSSlots < 1 {
		return fmt.Errorf("minimum dwell lengths must be at least 1 slot")
	}
	return nil
}

// FloorKWh returns the planning minimum in kWh for the given capacity.
func (c HybridConfig) FloorKWh(capacityKWh float64) float64 {
	return capacityKWh * c.PlanningMinimumPercent / 100
}

// TargetKWh returns the target level in kWh for the given capacity.
func (c HybridConfig) TargetKWh(capacityKWh float64) float64 {
	return capacityKWh * c.TargetPercent / 100
}
