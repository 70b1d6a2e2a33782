package simulator

import (
	"math"
	"testing"

	"github.com/wattplan/wattplan/core/model"
)

func testConfig() Config {
	return Config{
		MaxCapacityKWh:        10,
		HardwareMinKWh:        0,
		ChargeEfficiency:      1.0,
		DischargeEfficiency:   1.0,
		SolarChargeEfficiency: 1.0,
		ChargeRateKW:          4,
		SlotMinutes:           30,
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestHomeISelfConsumption(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(5, model.ModeHomeI, 2, 1, false)
	if !almostEqual(res.SolarToLoad, 1) {
		t.Errorf("solar to load = %f, want 1", res.SolarToLoad)
	}
	if !almostEqual(res.BatteryEnd, 6) {
		t.Errorf("battery end = %f, want 6", res.BatteryEnd)
	}
	if res.GridImport != 0 || res.GridExport != 0 {
		t.Errorf("unexpected grid flows: import %f export %f", res.GridImport, res.GridExport)
	}
}

func TestHomeIDischargesBeforeImporting(t *testing.T) {
	cfg := testConfig()
	cfg.DischargeEfficiency = 0.9
	s := New(cfg)
	res := s.Simulate(5, model.ModeHomeI, 0, 1, false)
	if !almostEqual(res.BatteryToLoad, 1) {
		t.Errorf("battery to load = %f, want 1", res.BatteryToLoad)
	}
	if !almostEqual(res.BatteryEnd, 5-1/0.9) {
		t.Errorf("battery end = %f, want %f", res.BatteryEnd, 5-1/0.9)
	}
	if res.GridImport != 0 {
		t.Errorf("grid import = %f, want 0", res.GridImport)
	}
}

func TestHomeIEmptyBatteryImports(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(0, model.ModeHomeI, 0, 1.5, false)
	if !almostEqual(res.GridImport, 1.5) {
		t.Errorf("grid import = %f, want 1.5", res.GridImport)
	}
	if res.BatteryEnd != 0 {
		t.Errorf("battery end = %f, want 0", res.BatteryEnd)
	}
}

func TestHardwareMinimumStopsDischarge(t *testing.T) {
	cfg := testConfig()
	cfg.HardwareMinKWh = 1
	s := New(cfg)
	res := s.Simulate(1.2, model.ModeHomeI, 0, 5, false)
	if !almostEqual(res.BatteryToLoad, 0.2) {
		t.Errorf("battery to load = %f, want 0.2", res.BatteryToLoad)
	}
	if !almostEqual(res.BatteryEnd, 1.0) {
		t.Errorf("battery end = %f, want 1.0", res.BatteryEnd)
	}
	if !almostEqual(res.GridImport, 4.8) {
		t.Errorf("grid import = %f, want 4.8", res.GridImport)
	}
}

func TestHomeIIDaytimeDeficitFromGrid(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(5, model.ModeHomeII, 0.5, 1, false)
	if !almostEqual(res.GridImport, 0.5) {
		t.Errorf("grid import = %f, want 0.5", res.GridImport)
	}
	if !almostEqual(res.BatteryEnd, 5) {
		t.Errorf("battery end = %f, want 5 (battery preserved)", res.BatteryEnd)
	}
}

func TestHomeIINightBehavesLikeHomeI(t *testing.T) {
	s := New(testConfig())
	got := s.Simulate(5, model.ModeHomeII, 0, 1, false)
	want := s.Simulate(5, model.ModeHomeI, 0, 1, false)
	if got != want {
		t.Errorf("night HomeII = %+v, want HomeI result %+v", got, want)
	}
}

func TestHomeIIIRoutesSolarToBattery(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(5, model.ModeHomeIII, 1, 1, false)
	if !almostEqual(res.SolarToBattery, 1) {
		t.Errorf("solar to battery = %f, want 1", res.SolarToBattery)
	}
	if res.SolarToLoad != 0 {
		t.Errorf("solar to load = %f, want 0", res.SolarToLoad)
	}
	if !almostEqual(res.GridImport, 1) {
		t.Errorf("grid import = %f, want 1 (load from grid)", res.GridImport)
	}
	if !almostEqual(res.BatteryEnd, 6) {
		t.Errorf("battery end = %f, want 6", res.BatteryEnd)
	}
}

func TestHomeUPSChargesAtRatedPower(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(5, model.ModeHomeUPS, 0, 1, false)
	// 4 kW for 30 minutes is 2 kWh, plus the load from the grid.
	if !almostEqual(res.BatteryEnd, 7) {
		t.Errorf("battery end = %f, want 7", res.BatteryEnd)
	}
	if !almostEqual(res.GridImport, 3) {
		t.Errorf("grid import = %f, want 3", res.GridImport)
	}
}

func TestGridChargeCappedByCapacity(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(9.5, model.ModeHomeUPS, 0, 0, false)
	if !almostEqual(res.BatteryEnd, 10) {
		t.Errorf("battery end = %f, want 10", res.BatteryEnd)
	}
	if !almostEqual(res.GridImport, 0.5) {
		t.Errorf("grid import = %f, want 0.5", res.GridImport)
	}
}

func TestForceChargeAppliesToNonUPSModes(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(5, model.ModeHomeI, 0, 0, true)
	if !almostEqual(res.BatteryEnd, 7) {
		t.Errorf("battery end = %f, want 7", res.BatteryEnd)
	}
	if !almostEqual(res.GridImport, 2) {
		t.Errorf("grid import = %f, want 2", res.GridImport)
	}
}

func TestExportOnlyWhenBatteryFull(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(9.9, model.ModeHomeI, 2, 0, false)
	if !almostEqual(res.BatteryEnd, 10) {
		t.Errorf("battery end = %f, want 10", res.BatteryEnd)
	}
	if !almostEqual(res.GridExport, 1.9) {
		t.Errorf("grid export = %f, want 1.9", res.GridExport)
	}
	if res.Curtailed != 0 {
		t.Errorf("curtailed = %f, want 0", res.Curtailed)
	}
}

func TestNoExportBelowCapacity(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(2, model.ModeHomeI, 3, 0, false)
	if res.GridExport != 0 {
		t.Errorf("grid export = %f, want 0", res.GridExport)
	}
	if !almostEqual(res.BatteryEnd, 5) {
		t.Errorf("battery end = %f, want 5", res.BatteryEnd)
	}
}

func TestNegativeInputsClamped(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(-3, model.ModeHomeI, -2, -1, false)
	if res.BatteryEnd != 0 {
		t.Errorf("battery end = %f, want 0", res.BatteryEnd)
	}
	if res.GridImport != 0 || res.GridExport != 0 {
		t.Errorf("unexpected grid flows: %+v", res)
	}
}

func TestBatteryAboveCapacityClamped(t *testing.T) {
	s := New(testConfig())
	res := s.Simulate(20, model.ModeHomeI, 0, 0, false)
	if res.BatteryEnd != 10 {
		t.Errorf("battery end = %f, want 10", res.BatteryEnd)
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	s := New(testConfig())
	for _, m := range model.Modes {
		a := s.Simulate(4.2, m, 1.3, 0.7, false)
		b := s.Simulate(4.2, m, 1.3, 0.7, false)
		if a != b {
			t.Errorf("mode %s: results differ: %+v vs %+v", m, a, b)
		}
	}
}

func TestBatteryStaysWithinBounds(t *testing.T) {
	s := New(testConfig())
	for _, m := range model.Modes {
		for _, start := range []float64{-5, 0, 5, 10, 25} {
			for _, force := range []bool{false, true} {
				res := s.Simulate(start, m, 3, 2, force)
				if res.BatteryEnd < 0 || res.BatteryEnd > 10 {
					t.Errorf("mode %s start %f force %v: battery end %f out of bounds", m, start, force, res.BatteryEnd)
				}
			}
		}
	}
}

func TestUnknownModeFallsBackToHomeI(t *testing.T) {
	s := New(testConfig())
	got := s.Simulate(5, model.Mode(42), 1, 1, false)
	want := s.Simulate(5, model.ModeHomeI, 1, 1, false)
	if got != want {
		t.Errorf("unknown mode = %+v, want HomeI result %+v", got, want)
	}
}

func TestCalculateCost(t *testing.T) {
	res := IntervalResult{GridImport: 2, GridExport: 1}
	if got := CalculateCost(res, 0.3, 0.1); !almostEqual(got, 0.5) {
		t.Errorf("cost = %f, want 0.5", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxCapacityKWh != 15 || cfg.SlotMinutes != 15 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"zero capacity":        func(c *Config) { c.MaxCapacityKWh = 0 },
		"negative hw minimum":  func(c *Config) { c.HardwareMinKWh = -1 },
		"hw minimum above max": func(c *Config) { c.HardwareMinKWh = 20 },
		"charge eff above 1":   func(c *Config) { c.ChargeEfficiency = 1.2 },
		"zero discharge eff":   func(c *Config) { c.DischargeEfficiency = 0 },
		"zero charge rate":     func(c *Config) { c.ChargeRateKW = 0 },
		"zero slot minutes":    func(c *Config) { c.SlotMinutes = 0 },
	}
	for name, mutate := range cases {
		cfg := testConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestMaxGridChargePerSlot(t *testing.T) {
	cfg := testConfig()
	cfg.ChargeEfficiency = 0.95
	if got := cfg.MaxGridChargePerSlotKWh(); !almostEqual(got, 4*0.5*0.95) {
		t.Errorf("per-slot charge = %f, want %f", got, 4*0.5*0.95)
	}
}
