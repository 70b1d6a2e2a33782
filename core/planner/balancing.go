package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wattplan/wattplan/core/logger"
	"github.com/wattplan/wattplan/core/model"
	"github.com/wattplan/wattplan/core/simulator"
)

// balancingCoverage is the fraction of the required energy that must be
// coverable by selected slots for the balancing plan to count as feasible.
const balancingCoverage = 0.95

// ResolveBalancingPlan normalizes an external full-charge-and-hold request
// to the slot grid of the current horizon. A malformed or unmatchable plan
// is swallowed: the returned plan is inactive and the warning explains why.
// An active plan whose required energy cannot be covered before the deadline
// keeps its slots but carries a warning; the caller downgrades the run to
// infeasible.
func ResolveBalancingPlan(bp *model.BalancingPlan, spots []model.SpotPrice, batteryStart float64, simCfg simulator.Config, log logger.Logger) (model.StrategyBalancingPlan, string) {
	plan := model.EmptyStrategyBalancingPlan()
	if bp == nil {
		return plan, ""
	}
	if bp.HoldingStart.IsZero() || !bp.HoldingEnd.After(bp.HoldingStart) {
		return plan, "balancing plan ignored: holding window is malformed"
	}
	if len(spots) == 0 {
		return plan, "balancing plan ignored: empty slot grid"
	}

	startIdx, endIdx := holdingWindow(bp, spots)
	if startIdx == -1 {
		return plan, fmt.Sprintf("balancing plan ignored: holding window %s outside horizon", bp.HoldingStart.Format(time.RFC3339))
	}

	plan.Active = true
	holdMode := bp.Mode
	if holdMode == model.ModeHomeI || !holdMode.Valid() {
		// HomeI would discharge the calibration charge away.
		holdMode = model.ModeHomeUPS
	}
	for i := startIdx; i <= endIdx; i++ {
		plan.HoldingIntervals[i] = struct{}{}
		plan.ModeOverrides[i] = holdMode
	}

	// The plan's own preferred pre-deadline slots are consumed first.
	deadline := bp.Deadline()
	for _, ts := range bp.PreferredIntervals {
		if !ts.Before(deadline) {
			continue
		}
		for i, s := range spots {
			if i >= startIdx {
				break
			}
			if s.Timestamp.Equal(ts) {
				plan.ChargingIntervals[i] = struct{}{}
				plan.ModeOverrides[i] = model.ModeHomeUPS
				break
			}
		}
	}

	targetPct := bp.TargetSoCPercent
	if targetPct <= 0 {
		targetPct = 100
	}
	required := simCfg.MaxCapacityKWh*targetPct/100 - clampFloat(batteryStart, 0, simCfg.MaxCapacityKWh)
	if required < 0 {
		required = 0
	}
	perSlot := simCfg.MaxGridChargePerSlotKWh()
	needed := required - float64(len(plan.ChargingIntervals))*perSlot

	if needed > 0 && perSlot > 0 {
		extra := int(math.Ceil(needed / perSlot))
		candidates := make([]int, 0, startIdx)
		for i := 0; i < startIdx; i++ {
			if _, ok := plan.ChargingIntervals[i]; ok {
				continue
			}
			candidates = append(candidates, i)
		}
		sort.Slice(candidates, func(a, b int) bool {
			return spots[candidates[a]].Price < spots[candidates[b]].Price
		})
		if extra > len(candidates) {
			extra = len(candidates)
		}
		for _, i := range candidates[:extra] {
			plan.ChargingIntervals[i] = struct{}{}
			plan.ModeOverrides[i] = model.ModeHomeUPS
		}
	}

	coverable := float64(len(plan.ChargingIntervals)) * perSlot
	if required > 0 && coverable < balancingCoverage*required {
		warn := fmt.Sprintf(
			"balancing plan short on energy: %.2f kWh coverable of %.2f kWh required before %s",
			coverable, required, deadline.Format(time.RFC3339))
		log.Warnf("%s", warn)
		return plan, warn
	}
	log.Debugw("balancing plan resolved", map[string]any{
		"charging_slots": len(plan.ChargingIntervals),
		"holding_slots":  len(plan.HoldingIntervals),
		"required_kwh":   required,
	})
	return plan, ""
}

// holdingWindow locates the slot range covered by the holding window via
// linear scan. Returns (-1, -1) when the window misses the horizon.
func holdingWindow(bp *model.BalancingPlan, spots []model.SpotPrice) (int, int) {
	start, end := -1, -1
	for i, s := range spots {
		if start == -1 && !s.Timestamp.Before(bp.HoldingStart) {
			start = i
		}
		if s.Timestamp.Before(bp.HoldingEnd) {
			end = i
		}
	}
	if start == -1 || end < start {
		return -1, -1
	}
	return start, end
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
