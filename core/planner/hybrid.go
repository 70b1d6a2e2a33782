package planner

import (
	"strings"

	"github.com/wattplan/wattplan/core/logger"
	"github.com/wattplan/wattplan/core/model"
	"github.com/wattplan/wattplan/core/simulator"
)

// HybridStrategy is the top-level planner. It selects the charging set,
// synthesizes per-slot decisions with priority rules, smooths short mode
// runs and recomputes all totals from a full re-simulation. It never returns
// an error for unmet constraints: the best achievable plan is returned with
// a feasibility flag.
type HybridStrategy struct {
	sim *simulator.IntervalSimulator
	cfg HybridConfig
	log logger.Logger
}

// NewHybridStrategy builds a planner from the simulator and planning
// configuration.
func NewHybridStrategy(simCfg simulator.Config, cfg HybridConfig, log logger.Logger) *HybridStrategy {
	return &HybridStrategy{sim: simulator.New(simCfg), cfg: cfg, log: log}
}

// Simulator exposes the planner's interval simulator.
func (h *HybridStrategy) Simulator() *simulator.IntervalSimulator { return h.sim }

// Config returns the planning configuration.
func (h *HybridStrategy) Config() HybridConfig { return h.cfg }

// slotPlan is the mode assignment for one slot before simulation.
type slotPlan struct {
	Mode      model.Mode
	Reason    string
	Balancing bool
	Holding   bool
	Negative  bool
}

// Plan computes the decision list for the horizon. Input slices may differ
// in length; the horizon is truncated to the shortest.
func (h *HybridStrategy) Plan(spots []model.SpotPrice, solar, load []float64, batteryStart float64, bp *model.BalancingPlan) model.PlanResult {
	n := len(spots)
	if len(solar) < n {
		n = len(solar)
	}
	if len(load) < n {
		n = len(load)
	}
	if n != len(spots) {
		h.log.Warnf("forecast arrays differ in length, truncating horizon to %d slots", n)
	}
	if n == 0 {
		return model.PlanResult{Feasible: true, ModeCounts: map[model.Mode]int{}}
	}
	spots = spots[:n]
	solar = solar[:n]
	load = load[:n]
	prices := model.Prices(spots)

	balancing, balancingWarn := ResolveBalancingPlan(bp, spots, batteryStart, h.sim.Config(), h.log)
	charge := newChargePlanner(h.sim, h.cfg, h.log).plan(prices, solar, load, batteryStart)
	sc := newScorer(h.sim, h.cfg, prices, solar, load)

	slots := h.synthesizeModes(prices, solar, load, batteryStart, charge, balancing, sc)

	// Required charge slots are load-bearing for the floor; smoothing them
	// away would re-open the violation they were selected to fix.
	protected := func(i int) bool {
		return slots[i].Balancing || slots[i].Holding || slots[i].Reason == model.ReasonGridCharge
	}
	h.smooth(slots, protected)

	// Totals are never trusted after a structural edit: the final decision
	// list always comes from one full re-simulation.
	decisions := h.simulateSlots(spots, solar, load, batteryStart, slots)
	result := summarize(decisions)
	result.BaselineCost = h.baselineCost(spots, solar, load, batteryStart)
	result.Savings = result.BaselineCost - result.TotalCost

	var reasons []string
	if charge.Infeasibility != "" {
		reasons = append(reasons, charge.Infeasibility)
	}
	if balancingWarn != "" {
		reasons = append(reasons, balancingWarn)
	}
	result.Feasible = charge.Infeasibility == "" && !(balancing.Active && balancingWarn != "")
	result.Infeasibility = strings.Join(reasons, "; ")

	h.log.Debugw("plan computed", map[string]any{
		"slots":    n,
		"cost":     result.TotalCost,
		"baseline": result.BaselineCost,
		"feasible": result.Feasible,
	})
	return result
}

// synthesizeModes resolves the mode for every slot by priority: balancing
// and holding overrides, then negative-price handling, then charging-set
// membership, then the default discharge mode. The battery level is carried
// through so the negative-price branch and the scorer see the real state.
func (h *HybridStrategy) synthesizeModes(prices, solar, load []float64, batteryStart float64, charge ChargeSet, balancing model.StrategyBalancingPlan, sc *scorer) []slotPlan {
	slots := make([]slotPlan, len(prices))
	battery := batteryStart
	prev := model.ModeHomeI
	for i := range prices {
		var sp slotPlan
		switch {
		case balancing.Active && balancing.IsHolding(i):
			mode, _ := balancing.Override(i)
			sp = slotPlan{Mode: mode, Reason: model.ReasonHolding, Balancing: true, Holding: true}
		case balancing.Active && balancing.IsCharging(i):
			mode, _ := balancing.Override(i)
			sp = slotPlan{Mode: mode, Reason: model.ReasonBalancing, Balancing: true}
		case prices[i] < 0:
			sp = slotPlan{Mode: sc.negativeMode(i, battery), Reason: model.ReasonNegativePrice, Negative: true}
		default:
			if _, ok := charge.Required[i]; ok {
				sp = slotPlan{Mode: model.ModeHomeUPS, Reason: model.ReasonGridCharge}
			} else if _, ok := charge.PriceBand[i]; ok {
				sp = slotPlan{Mode: model.ModeHomeUPS, Reason: model.ReasonPriceBandHold}
			} else if h.cfg.Charging == ChargingOpportunistic {
				mode, scores := sc.bestMode(i, battery, prev)
				if mode == model.ModeHomeUPS && !sc.shouldCharge(i) {
					// The score alone may favor charging, but opportunistic
					// charging only acts on slots the charge heuristics accept.
					mode = bestNonCharging(scores)
				}
				reason := model.ReasonDefault
				if mode != model.ModeHomeI {
					reason = model.ReasonScored
				}
				sp = slotPlan{Mode: mode, Reason: reason}
			} else {
				sp = slotPlan{Mode: model.ModeHomeI, Reason: model.ReasonDefault}
			}
		}
		slots[i] = sp
		res := h.sim.Simulate(battery, sp.Mode, solar[i], load[i], sp.Mode == model.ModeHomeUPS)
		battery = res.BatteryEnd
		prev = sp.Mode
	}
	return slots
}

// simulateSlots turns a mode assignment into final decisions by simulating
// the full horizon once.
func (h *HybridStrategy) simulateSlots(spots []model.SpotPrice, solar, load []float64, batteryStart float64, slots []slotPlan) []model.IntervalDecision {
	decisions := make([]model.IntervalDecision, len(slots))
	battery := batteryStart
	for i, sp := range slots {
		res := h.sim.Simulate(battery, sp.Mode, solar[i], load[i], sp.Mode == model.ModeHomeUPS)
		battery = res.BatteryEnd
		price := spots[i].Price
		decisions[i] = model.IntervalDecision{
			Index:         i,
			Start:         spots[i].Timestamp,
			Mode:          sp.Mode,
			Reason:        sp.Reason,
			BatteryEnd:    res.BatteryEnd,
			GridImport:    res.GridImport,
			GridExport:    res.GridExport,
			Cost:          simulator.CalculateCost(res, price, price*h.cfg.ExportPriceFactor),
			Balancing:     sp.Balancing,
			Holding:       sp.Holding,
			NegativePrice: sp.Negative,
		}
	}
	return decisions
}

// baselineCost simulates the whole horizon in the default mode for the
// savings comparison.
func (h *HybridStrategy) baselineCost(spots []model.SpotPrice, solar, load []float64, batteryStart float64) float64 {
	total := 0.0
	battery := batteryStart
	for i := range spots {
		res := h.sim.Simulate(battery, model.ModeHomeI, solar[i], load[i], false)
		battery = res.BatteryEnd
		price := spots[i].Price
		total += simulator.CalculateCost(res, price, price*h.cfg.ExportPriceFactor)
	}
	return total
}

// summarize builds the aggregate fields from a decision list.
func summarize(decisions []model.IntervalDecision) model.PlanResult {
	result := model.PlanResult{
		Decisions:  decisions,
		ModeCounts: model.CountModes(decisions),
	}
	for _, d := range decisions {
		result.TotalCost += d.Cost
	}
	if len(decisions) > 0 {
		result.FinalBattery = decisions[len(decisions)-1].BatteryEnd
	}
	return result
}
