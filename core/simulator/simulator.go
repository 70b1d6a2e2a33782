package simulator

import "github.com/wattplan/wattplan/core/model"

const (
	// solarEpsilon separates day slots from night slots.
	solarEpsilon = 1e-3
	// fullEpsilon is the tolerance for "battery at max capacity".
	fullEpsilon = 1e-6
)

// IntervalResult holds the energy flows of one simulated slot. All values
// are kWh for the slot duration.
type IntervalResult struct {
	BatteryEnd     float64
	GridImport     float64
	GridExport     float64
	SolarToBattery float64
	SolarToLoad    float64
	BatteryToLoad  float64
	Curtailed      float64
}

// IntervalSimulator turns (mode, battery, solar, load) into energy flows for
// one slot. It is pure and stateless: identical inputs always produce
// identical outputs, which the planner relies on when it re-simulates the
// same slot many times during search.
type IntervalSimulator struct {
	cfg Config
}

// New returns a simulator for the given battery configuration.
func New(cfg Config) *IntervalSimulator {
	return &IntervalSimulator{cfg: cfg}
}

// Config returns the simulator configuration.
func (s *IntervalSimulator) Config() Config { return s.cfg }

// Simulate computes the flows for one slot. Negative solar or load values
// are clamped to zero and the battery level is clamped to its bounds:
// sensor noise is expected and must never abort planning. When forceCharge
// is set the slot charges from the grid at the configured rate regardless of
// mode.
func (s *IntervalSimulator) Simulate(batteryStart float64, mode model.Mode, solarKWh, loadKWh float64, forceCharge bool) IntervalResult {
	solar := clampNonNegative(solarKWh)
	load := clampNonNegative(loadKWh)
	battery := clamp(batteryStart, 0, s.cfg.MaxCapacityKWh)

	res := IntervalResult{}
	day := solar > solarEpsilon

	switch mode {
	case model.ModeHomeII:
		battery = s.simulateHomeII(battery, solar, load, day, &res)
	case model.ModeHomeIII:
		battery = s.simulateHomeIII(battery, solar, load, day, &res)
	case model.ModeHomeUPS:
		battery = s.simulateHomeUPS(battery, solar, load, &res)
	default:
		// Unknown modes fall back to the safe default discharge mode.
		battery = s.simulateHomeI(battery, solar, load, &res)
	}

	if forceCharge && mode != model.ModeHomeUPS {
		battery = s.gridCharge(battery, &res)
	}

	res.BatteryEnd = clamp(battery, 0, s.cfg.MaxCapacityKWh)
	return res
}

// simulateHomeI is classic self-consumption: solar covers the load first,
// surplus charges the battery and any deficit is drawn from the battery
// before the grid. The same logic applies day and night.
func (s *IntervalSimulator) simulateHomeI(battery, solar, load float64, res *IntervalResult) float64 {
	res.SolarToLoad = min(solar, load)
	surplus := solar - res.SolarToLoad
	deficit := load - res.SolarToLoad

	if surplus > 0 {
		battery = s.chargeFromSolar(battery, surplus, res)
	}
	if deficit > 0 {
		battery = s.dischargeForLoad(battery, deficit, res)
	}
	return battery
}

// simulateHomeII preserves the battery during the day: a daytime deficit is
// met from the grid, never from the battery. Night behavior is identical to
// HomeI.
func (s *IntervalSimulator) simulateHomeII(battery, solar, load float64, day bool, res *IntervalResult) float64 {
	if !day {
		return s.simulateHomeI(battery, solar, load, res)
	}
	res.SolarToLoad = min(solar, load)
	surplus := solar - res.SolarToLoad
	deficit := load - res.SolarToLoad

	if surplus > 0 {
		battery = s.chargeFromSolar(battery, surplus, res)
	}
	res.GridImport += deficit
	return battery
}

// simulateHomeIII routes all solar to the battery during the day while the
// load runs entirely from the grid. Night behavior is identical to HomeI.
func (s *IntervalSimulator) simulateHomeIII(battery, solar, load float64, day bool, res *IntervalResult) float64 {
	if !day {
		return s.simulateHomeI(battery, solar, load, res)
	}
	battery = s.chargeFromSolar(battery, solar, res)
	res.GridImport += load
	return battery
}

// simulateHomeUPS charges from the grid while solar also goes to the battery
// and the load runs from the grid.
func (s *IntervalSimulator) simulateHomeUPS(battery, solar, load float64, res *IntervalResult) float64 {
	battery = s.chargeFromSolar(battery, solar, res)
	res.GridImport += load
	battery = s.gridCharge(battery, res)
	return battery
}

// dischargeForLoad draws as much of the deficit as possible from the battery
// above the hardware minimum, applying discharge losses, and imports the
// remainder from the grid.
func (s *IntervalSimulator) dischargeForLoad(battery, deficit float64, res *IntervalResult) float64 {
	usable := battery - s.cfg.HardwareMinKWh
	if usable < 0 {
		usable = 0
	}
	deliverable := usable * s.cfg.DischargeEfficiency
	delivered := min(deficit, deliverable)
	battery -= delivered / s.cfg.DischargeEfficiency
	res.BatteryToLoad += delivered
	res.GridImport += deficit - delivered
	return battery
}

// chargeFromSolar stores solar surplus in the battery with DC/DC losses.
// Solar the battery cannot absorb is exported only when the battery is at
// max capacity; otherwise it counts as curtailed.
func (s *IntervalSimulator) chargeFromSolar(battery, solar float64, res *IntervalResult) float64 {
	if solar <= 0 {
		return battery
	}
	headroom := s.cfg.MaxCapacityKWh - battery
	stored := min(solar*s.cfg.SolarChargeEfficiency, headroom)
	if stored < 0 {
		stored = 0
	}
	battery += stored
	res.SolarToBattery += stored
	excess := solar - stored/s.cfg.SolarChargeEfficiency
	if excess > fullEpsilon {
		if battery >= s.cfg.MaxCapacityKWh-fullEpsilon {
			res.GridExport += excess
		} else {
			res.Curtailed += excess
		}
	}
	return battery
}

// gridCharge imports up to one slot of rated charging power, capped by the
// remaining capacity.
func (s *IntervalSimulator) gridCharge(battery float64, res *IntervalResult) float64 {
	headroom := s.cfg.MaxCapacityKWh - battery
	if headroom <= 0 {
		return battery
	}
	stored := min(s.cfg.MaxGridChargePerSlotKWh(), headroom)
	battery += stored
	res.GridImport += stored / s.cfg.ChargeEfficiency
	return battery
}

// CalculateCost returns the net grid cost of a simulated slot.
func CalculateCost(res IntervalResult, spotPrice, exportPrice float64) float64 {
	return res.GridImport*spotPrice - res.GridExport*exportPrice
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
