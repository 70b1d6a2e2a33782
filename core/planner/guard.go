package planner

import (
	"fmt"
	"time"

	"github.com/wattplan/wattplan/core/logger"
	"github.com/wattplan/wattplan/core/model"
)

// ModeGuard locks the first minutes of every new plan to whatever the
// previous cycle committed, so that a replan cannot flap modes right after
// they were sent to the inverter. The lock window is cached across planning
// cycles and rebuilt only once wall-clock time passes its expiry.
//
// The guard is owned by the caller and is the only state that outlives a
// planning call. It is not safe for concurrent use; the orchestrator keeps
// at most one planning computation in flight.
type ModeGuard struct {
	lockMinutes int
	log         logger.Logger
	now         func() time.Time

	window []lockedMode
	expiry time.Time
}

type lockedMode struct {
	Start time.Time
	Mode  model.Mode
}

// NewModeGuard returns a guard locking the given number of minutes.
func NewModeGuard(lockMinutes int, log logger.Logger) *ModeGuard {
	return &ModeGuard{lockMinutes: lockMinutes, log: log, now: time.Now}
}

// Apply enforces the cached lock window on a fresh plan. Locked slots keep
// their committed mode unless that would drop the battery below the
// planning floor; such a slot keeps the new mode and the override is
// reported for operator-visible explanation. When the window has expired, a
// new one is captured from the fresh plan instead.
func (g *ModeGuard) Apply(result model.PlanResult, spots []model.SpotPrice, solar, load []float64, batteryStart float64, h *HybridStrategy) (model.PlanResult, []string) {
	if g.lockMinutes <= 0 || len(result.Decisions) == 0 {
		return result, nil
	}
	now := g.now()
	if g.window == nil || !now.Before(g.expiry) {
		g.capture(result, now)
		return result, nil
	}

	floor := h.cfg.FloorKWh(h.sim.Config().MaxCapacityKWh)
	slots := slotsFromDecisions(result.Decisions)
	var notes []string
	changed := false
	for _, lock := range g.window {
		i := slotIndexAt(spots, lock.Start)
		if i == -1 || i >= len(slots) || slots[i].Mode == lock.Mode {
			continue
		}
		previous := slots[i]
		slots[i] = slotPlan{Mode: lock.Mode, Reason: model.ReasonGuardLock}
		trial := h.simulateSlots(spots, solar, load, batteryStart, slots)
		if trial[i].BatteryEnd < floor-1e-9 {
			slots[i] = previous
			note := fmt.Sprintf("lock released at %s: committed mode %s would breach the planning floor",
				lock.Start.Format(time.RFC3339), lock.Mode)
			notes = append(notes, note)
			g.log.Warnf("%s", note)
			continue
		}
		changed = true
	}
	if !changed {
		return result, notes
	}

	decisions := h.simulateSlots(spots, solar, load, batteryStart, slots)
	locked := summarize(decisions)
	locked.BaselineCost = result.BaselineCost
	locked.Savings = locked.BaselineCost - locked.TotalCost
	locked.Feasible = result.Feasible
	locked.Infeasibility = result.Infeasibility
	return locked, notes
}

// capture stores the lock window from a freshly committed plan.
func (g *ModeGuard) capture(result model.PlanResult, now time.Time) {
	g.expiry = now.Add(time.Duration(g.lockMinutes) * time.Minute)
	g.window = g.window[:0]
	for _, d := range result.Decisions {
		if !d.Start.Before(g.expiry) {
			break
		}
		g.window = append(g.window, lockedMode{Start: d.Start, Mode: d.Mode})
	}
	g.log.Debugw("mode guard window captured", map[string]any{
		"slots":  len(g.window),
		"expiry": g.expiry,
	})
}

func slotsFromDecisions(decisions []model.IntervalDecision) []slotPlan {
	slots := make([]slotPlan, len(decisions))
	for i, d := range decisions {
		slots[i] = slotPlan{
			Mode:      d.Mode,
			Reason:    d.Reason,
			Balancing: d.Balancing,
			Holding:   d.Holding,
			Negative:  d.NegativePrice,
		}
	}
	return slots
}

func slotIndexAt(spots []model.SpotPrice, ts time.Time) int {
	for i, s := range spots {
		if s.Timestamp.Equal(ts) {
			return i
		}
	}
	return -1
}
