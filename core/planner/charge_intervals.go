package planner

import (
	"fmt"
	"math"

	"github.com/wattplan/wattplan/core/logger"
	"github.com/wattplan/wattplan/core/model"
	"github.com/wattplan/wattplan/core/simulator"
)

// maxPlannerIterations caps every search loop. Hitting the cap is non-fatal:
// the best set found so far is returned.
const maxPlannerIterations = 200

// ChargeSet is the outcome of charging-interval selection: the minimal
// sufficient slots forced into grid charging, plus cosmetic continuity slots
// added by the price-band pass.
type ChargeSet struct {
	Required      map[int]struct{}
	PriceBand     map[int]struct{}
	Infeasibility string
}

// Contains reports whether slot i charges for either reason.
func (c ChargeSet) Contains(i int) bool {
	if _, ok := c.Required[i]; ok {
		return true
	}
	_, ok := c.PriceBand[i]
	return ok
}

// chargePlanner computes the charging set via backward propagation: scan
// forward for floor violations and retroactively select earlier cheap slots
// to fix them.
type chargePlanner struct {
	sim     *simulator.IntervalSimulator
	cfg     HybridConfig
	log     logger.Logger
	blocked map[int]bool
}

func newChargePlanner(sim *simulator.IntervalSimulator, cfg HybridConfig, log logger.Logger) *chargePlanner {
	return &chargePlanner{sim: sim, cfg: cfg, log: log, blocked: make(map[int]bool)}
}

// plan selects the charging slots for the given horizon.
func (p *chargePlanner) plan(prices, solar, load []float64, batteryStart float64) ChargeSet {
	set := ChargeSet{
		Required:  make(map[int]struct{}),
		PriceBand: make(map[int]struct{}),
	}
	if len(prices) == 0 {
		return set
	}
	capacity := p.sim.Config().MaxCapacityKWh
	floor := p.cfg.FloorKWh(capacity)
	target := p.cfg.TargetKWh(capacity)
	ceiling := p.cfg.PriceCeiling

	recovered := false
	repairFrom := 0
	if batteryStart < floor {
		recovered = true
		repairFrom = p.recover(&set, prices, solar, load, batteryStart, floor, ceiling) + 1
	}

	p.repair(&set, prices, solar, load, batteryStart, floor, ceiling, repairFrom)

	if target > floor && p.cfg.Charging != ChargingDisabled {
		p.reachTarget(&set, prices, solar, load, batteryStart, target, ceiling)
	}

	if p.cfg.Charging == ChargingBelowThreshold {
		p.fillBelowThreshold(&set, prices, ceiling)
	}

	if relaxed := p.costAwareCeiling(set, prices, solar, load, batteryStart, floor, ceiling); relaxed > ceiling {
		p.log.Debugw("relaxing price ceiling", map[string]any{
			"ceiling": ceiling, "relaxed": relaxed,
		})
		p.repair(&set, prices, solar, load, batteryStart, floor, relaxed, repairFrom)
	}

	if !recovered {
		p.extendPriceBands(&set, prices)
	}
	return set
}

// trajectory simulates the whole horizon for the current candidate set and
// returns the battery level at the end of every slot.
func (p *chargePlanner) trajectory(set ChargeSet, prices, solar, load []float64, batteryStart float64) []float64 {
	traj := make([]float64, len(prices))
	battery := batteryStart
	for i := range prices {
		mode := model.ModeHomeI
		force := false
		if _, ok := set.Required[i]; ok {
			mode = model.ModeHomeUPS
			force = true
		}
		res := p.sim.Simulate(battery, mode, solar[i], load[i], force)
		battery = res.BatteryEnd
		traj[i] = battery
	}
	return traj
}

// recover force-charges from slot 0 until the trajectory reaches the floor.
// Slots above the ceiling are charged anyway: an empty battery outranks the
// price, but the run is flagged infeasible. Returns the index of the last
// recovery slot.
func (p *chargePlanner) recover(set *ChargeSet, prices, solar, load []float64, batteryStart, floor, ceiling float64) int {
	battery := batteryStart
	for i := range prices {
		set.Required[i] = struct{}{}
		if prices[i] > ceiling && set.Infeasibility == "" {
			set.Infeasibility = fmt.Sprintf(
				"recovery to planning minimum needs slot %d at price %.3f above price ceiling %.3f",
				i, prices[i], ceiling)
		}
		res := p.sim.Simulate(battery, model.ModeHomeUPS, solar[i], load[i], true)
		battery = res.BatteryEnd
		if battery >= floor {
			return i
		}
	}
	return len(prices) - 1
}

// repair re-simulates the trajectory and fixes floor violations by adding
// the cheapest eligible slot strictly before each violation.
func (p *chargePlanner) repair(set *ChargeSet, prices, solar, load []float64, batteryStart, floor, ceiling float64, from int) {
	buffer := p.cfg.SafetyBufferKWh
	for iter := 0; iter < maxPlannerIterations; iter++ {
		traj := p.trajectory(*set, prices, solar, load, batteryStart)
		violation := -1
		for i := from; i < len(traj); i++ {
			if traj[i] < floor+buffer-1e-9 {
				violation = i
				break
			}
		}
		if violation == -1 {
			return
		}

		j := p.cheapestCandidate(*set, prices, 0, violation, ceiling)
		if j == -1 {
			if traj[violation] >= floor-1e-9 {
				// Only the soft buffer is unmet and no slot can raise it.
				return
			}
			if set.Infeasibility == "" {
				set.Infeasibility = fmt.Sprintf(
					"cannot hold planning minimum at slot %d within price ceiling %.3f",
					violation, ceiling)
			}
			// Bound the damage: charge everything up to the violation.
			for k := 0; k <= violation; k++ {
				set.Required[k] = struct{}{}
			}
			return
		}

		before := traj[violation]
		set.Required[j] = struct{}{}
		after := p.trajectory(*set, prices, solar, load, batteryStart)
		if after[violation] <= before+1e-9 {
			// Charging here cannot reach the violation, e.g. the battery is
			// already full in between. Block the slot so the search advances.
			delete(set.Required, j)
			p.blocked[j] = true
		}
	}
	p.log.Warnf("repair loop hit iteration cap (%d)", maxPlannerIterations)
}

// reachTarget adds the globally cheapest eligible slots until the trajectory
// maximum reaches the target. The target is a preference: running out of
// eligible slots is not an infeasibility.
func (p *chargePlanner) reachTarget(set *ChargeSet, prices, solar, load []float64, batteryStart, target, ceiling float64) {
	for iter := 0; iter < maxPlannerIterations; iter++ {
		traj := p.trajectory(*set, prices, solar, load, batteryStart)
		peak := 0.0
		for _, b := range traj {
			peak = math.Max(peak, b)
		}
		if peak >= target-1e-9 {
			return
		}
		j := p.cheapestCandidate(*set, prices, 0, len(prices), ceiling)
		if j == -1 {
			return
		}
		set.Required[j] = struct{}{}
		after := p.trajectory(*set, prices, solar, load, batteryStart)
		newPeak := 0.0
		for _, b := range after {
			newPeak = math.Max(newPeak, b)
		}
		if newPeak <= peak+1e-9 {
			delete(set.Required, j)
			p.blocked[j] = true
		}
	}
	p.log.Warnf("target loop hit iteration cap (%d)", maxPlannerIterations)
}

// fillBelowThreshold marks every slot at or under the ceiling as a charging
// slot. The below-threshold strategy charges whenever the price is
// acceptable; remaining battery capacity caps the intake per slot.
func (p *chargePlanner) fillBelowThreshold(set *ChargeSet, prices []float64, ceiling float64) {
	for i, price := range prices {
		if price <= ceiling {
			set.Required[i] = struct{}{}
		}
	}
}

// cheapestCandidate returns the cheapest not-yet-selected, unblocked slot in
// [from, to) at or under the ceiling, or -1.
func (p *chargePlanner) cheapestCandidate(set ChargeSet, prices []float64, from, to int, ceiling float64) int {
	best := -1
	for i := from; i < to && i < len(prices); i++ {
		if _, ok := set.Required[i]; ok {
			continue
		}
		if p.blocked[i] || prices[i] > ceiling {
			continue
		}
		if best == -1 || prices[i] < prices[best] {
			best = i
		}
	}
	return best
}

// costAwareCeiling looks for slots stuck at or below the floor that still
// import from the grid. If charging earlier is cheaper than that import even
// after round-trip losses, the ceiling may be relaxed to the break-even
// price. Returns 0 when no relaxation applies.
func (p *chargePlanner) costAwareCeiling(set ChargeSet, prices, solar, load []float64, batteryStart, floor, ceiling float64) float64 {
	roundTrip := p.sim.Config().ChargeEfficiency * p.sim.Config().DischargeEfficiency
	traj := p.trajectory(set, prices, solar, load, batteryStart)
	relaxed := 0.0
	battery := batteryStart
	for i := range prices {
		prev := battery
		battery = traj[i]
		if traj[i] > floor+1e-9 {
			continue
		}
		res := p.sim.Simulate(prev, model.ModeHomeI, solar[i], load[i], false)
		if res.GridImport <= 0 {
			continue
		}
		// Break-even price for charging a slot that replaces this import.
		breakEven := prices[i] * roundTrip
		if breakEven > ceiling && breakEven > relaxed {
			relaxed = breakEven
		}
	}
	return relaxed
}

// priceBandWidth is the relative band within which neighbouring slots are
// considered equivalent: at least 8%, or the charge loss if larger.
func (p *chargePlanner) priceBandWidth() float64 {
	return math.Max(0.08, 1/p.sim.Config().ChargeEfficiency-1)
}

// extendPriceBands stretches existing charging blocks forward while the next
// slot stays within the price band of the block, then fills single-slot gaps
// between two blocks under the same rule. These slots are cosmetic: they
// exist for mode continuity, not for energy.
func (p *chargePlanner) extendPriceBands(set *ChargeSet, prices []float64) {
	width := p.priceBandWidth()
	for iter := 0; iter < maxPlannerIterations; iter++ {
		extended := false
		for _, block := range chargeBlocks(*set, len(prices)) {
			next := block.end + 1
			if next >= len(prices) || set.Contains(next) {
				continue
			}
			ref := blockMaxPrice(*set, prices, block)
			if !withinBand(prices[next], ref, width) {
				continue
			}
			if p.cheaperAhead(prices, next, width) {
				continue
			}
			set.PriceBand[next] = struct{}{}
			extended = true
		}
		if !extended {
			break
		}
	}

	// Second pass: a single free slot between two charging blocks joins them
	// when its price is in band with its neighbours.
	for i := 1; i < len(prices)-1; i++ {
		if set.Contains(i) || !set.Contains(i-1) || !set.Contains(i+1) {
			continue
		}
		ref := math.Max(prices[i-1], prices[i+1])
		if withinBand(prices[i], ref, width) {
			set.PriceBand[i] = struct{}{}
		}
	}
}

// cheaperAhead reports whether a materially cheaper slot exists within the
// lookahead window after i.
func (p *chargePlanner) cheaperAhead(prices []float64, i int, width float64) bool {
	end := i + p.cfg.LookaheadSlots
	for k := i + 1; k < end && k < len(prices); k++ {
		if prices[k] < prices[i]-width*math.Abs(prices[i]) {
			return true
		}
	}
	return false
}

func withinBand(price, ref, width float64) bool {
	return price-ref <= width*math.Abs(ref)+1e-12
}

type block struct{ start, end int }

// chargeBlocks returns the maximal contiguous runs of charging slots.
func chargeBlocks(set ChargeSet, n int) []block {
	var blocks []block
	start := -1
	for i := 0; i < n; i++ {
		if set.Contains(i) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			blocks = append(blocks, block{start, i - 1})
			start = -1
		}
	}
	if start != -1 {
		blocks = append(blocks, block{start, n - 1})
	}
	return blocks
}

func blockMaxPrice(set ChargeSet, prices []float64, b block) float64 {
	ref := math.Inf(-1)
	for i := b.start; i <= b.end; i++ {
		ref = math.Max(ref, prices[i])
	}
	return ref
}
