package planner

import "github.com/wattplan/wattplan/core/model"

// modeRun is a maximal contiguous run of slots sharing one mode.
type modeRun struct {
	start, end int
	mode       model.Mode
}

func modeRuns(slots []slotPlan) []modeRun {
	var runs []modeRun
	for i := 0; i < len(slots); i++ {
		if len(runs) > 0 && runs[len(runs)-1].mode == slots[i].Mode {
			runs[len(runs)-1].end = i
			continue
		}
		runs = append(runs, modeRun{start: i, end: i, mode: slots[i].Mode})
	}
	return runs
}

// smooth merges contiguous runs shorter than the configured dwell minimum
// into the preceding mode. Runs containing a protected slot (balancing,
// holding or a required charge slot) are never touched, and the first run
// has no predecessor to merge into. Mutates slots in place; the caller
// re-simulates afterwards.
func (h *HybridStrategy) smooth(slots []slotPlan, protected func(int) bool) {
	for iter := 0; iter < maxPlannerIterations; iter++ {
		runs := modeRuns(slots)
		merged := false
		for idx := 1; idx < len(runs); idx++ {
			r := runs[idx]
			minLen := h.cfg.MinModeSlots
			if r.mode == model.ModeHomeUPS {
				minLen = h.cfg.MinUPSSlots
			}
			if r.end-r.start+1 >= minLen {
				continue
			}
			if runProtected(r, protected) {
				continue
			}
			prev := runs[idx-1]
			for i := r.start; i <= r.end; i++ {
				slots[i].Mode = prev.mode
				slots[i].Reason = slots[prev.end].Reason
			}
			merged = true
			break
		}
		if !merged {
			return
		}
	}
	h.log.Warnf("smoothing hit iteration cap (%d)", maxPlannerIterations)
}

func runProtected(r modeRun, protected func(int) bool) bool {
	for i := r.start; i <= r.end; i++ {
		if protected(i) {
			return true
		}
	}
	return false
}
