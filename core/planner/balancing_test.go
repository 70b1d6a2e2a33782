package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/wattplan/wattplan/core/model"
	"github.com/wattplan/wattplan/core/simulator"
)

func balancingSimConfig() simulator.Config {
	return simulator.Config{
		MaxCapacityKWh:        10,
		ChargeEfficiency:      1.0,
		DischargeEfficiency:   1.0,
		SolarChargeEfficiency: 1.0,
		ChargeRateKW:          4,
		SlotMinutes:           30,
	}
}

func balancingSpots(prices ...float64) []model.SpotPrice {
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	spots := make([]model.SpotPrice, len(prices))
	for i, p := range prices {
		spots[i] = model.SpotPrice{Timestamp: base.Add(time.Duration(i*30) * time.Minute), Price: p}
	}
	return spots
}

func TestResolveNilPlan(t *testing.T) {
	plan, warn := ResolveBalancingPlan(nil, balancingSpots(0.2, 0.2), 5, balancingSimConfig(), nopLog{})
	if plan.Active {
		t.Error("nil plan should resolve inactive")
	}
	if warn != "" {
		t.Errorf("unexpected warning: %s", warn)
	}
}

func TestResolveMalformedWindow(t *testing.T) {
	spots := balancingSpots(0.2, 0.2)
	bp := &model.BalancingPlan{
		HoldingStart: spots[1].Timestamp,
		HoldingEnd:   spots[0].Timestamp,
	}
	plan, warn := ResolveBalancingPlan(bp, spots, 5, balancingSimConfig(), nopLog{})
	if plan.Active {
		t.Error("malformed plan should resolve inactive")
	}
	if !strings.Contains(warn, "malformed") {
		t.Errorf("warning %q should mention the malformed window", warn)
	}
}

func TestResolveWindowOutsideHorizon(t *testing.T) {
	spots := balancingSpots(0.2, 0.2)
	start := spots[1].Timestamp.Add(24 * time.Hour)
	bp := &model.BalancingPlan{
		HoldingStart: start,
		HoldingEnd:   start.Add(time.Hour),
	}
	plan, warn := ResolveBalancingPlan(bp, spots, 5, balancingSimConfig(), nopLog{})
	if plan.Active {
		t.Error("out-of-horizon plan should resolve inactive")
	}
	if !strings.Contains(warn, "outside horizon") {
		t.Errorf("warning %q should mention the horizon", warn)
	}
}

func TestResolveEmptyGrid(t *testing.T) {
	bp := &model.BalancingPlan{
		HoldingStart: time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC),
		HoldingEnd:   time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC),
	}
	plan, warn := ResolveBalancingPlan(bp, nil, 5, balancingSimConfig(), nopLog{})
	if plan.Active || warn == "" {
		t.Errorf("empty grid should resolve inactive with a warning, got active=%v warn=%q", plan.Active, warn)
	}
}

func TestResolveChargesCheapestBeforeDeadline(t *testing.T) {
	spots := balancingSpots(0.5, 0.1, 0.3, 0.2, 0.9, 0.9)
	bp := &model.BalancingPlan{
		HoldingStart:     spots[4].Timestamp,
		HoldingEnd:       spots[5].Timestamp.Add(30 * time.Minute),
		TargetSoCPercent: 100,
	}
	plan, warn := ResolveBalancingPlan(bp, spots, 5, balancingSimConfig(), nopLog{})

	if warn != "" {
		t.Fatalf("unexpected warning: %s", warn)
	}
	if !plan.Active {
		t.Fatal("plan should be active")
	}
	// 5 kWh missing at 2 kWh per slot needs three slots; the cheapest three
	// before the deadline are 1, 3 and 2.
	for _, i := range []int{1, 2, 3} {
		if !plan.IsCharging(i) {
			t.Errorf("slot %d should charge, got %v", i, plan.ChargingIntervals)
		}
	}
	if plan.IsCharging(0) {
		t.Error("slot 0 is the most expensive candidate and should stay free")
	}
	for _, i := range []int{4, 5} {
		if !plan.IsHolding(i) {
			t.Errorf("slot %d should hold, got %v", i, plan.HoldingIntervals)
		}
		if m, ok := plan.Override(i); !ok || m != model.ModeHomeUPS {
			t.Errorf("slot %d override = %v, want %s", i, m, model.ModeHomeUPS)
		}
	}
}

func TestResolvePreferredIntervalsFirst(t *testing.T) {
	spots := balancingSpots(0.5, 0.1, 0.3, 0.9)
	bp := &model.BalancingPlan{
		HoldingStart:       spots[3].Timestamp,
		HoldingEnd:         spots[3].Timestamp.Add(30 * time.Minute),
		PreferredIntervals: []time.Time{spots[0].Timestamp},
		TargetSoCPercent:   100,
	}
	// Only 1 kWh is missing: the preferred slot alone covers it and the
	// cheaper slot 1 must not be selected.
	plan, warn := ResolveBalancingPlan(bp, spots, 9, balancingSimConfig(), nopLog{})

	if warn != "" {
		t.Fatalf("unexpected warning: %s", warn)
	}
	if !plan.IsCharging(0) {
		t.Errorf("preferred slot 0 should charge, got %v", plan.ChargingIntervals)
	}
	if plan.IsCharging(1) {
		t.Errorf("slot 1 should not charge, got %v", plan.ChargingIntervals)
	}
}

func TestResolveShortEnergyWarns(t *testing.T) {
	simCfg := balancingSimConfig()
	simCfg.ChargeRateKW = 2
	spots := balancingSpots(0.2, 0.2, 0.2, 0.2)
	bp := &model.BalancingPlan{
		HoldingStart:     spots[1].Timestamp,
		HoldingEnd:       spots[3].Timestamp,
		TargetSoCPercent: 100,
	}
	plan, warn := ResolveBalancingPlan(bp, spots, 0, simCfg, nopLog{})

	if !plan.Active {
		t.Fatal("short plan keeps its slots and stays active")
	}
	if !strings.Contains(warn, "short on energy") {
		t.Errorf("warning %q should report the energy shortfall", warn)
	}
	if !plan.IsCharging(0) {
		t.Errorf("the only pre-deadline slot should still charge, got %v", plan.ChargingIntervals)
	}
}

func TestResolveDefaultsHoldModeToUPS(t *testing.T) {
	spots := balancingSpots(0.2, 0.2)
	bp := &model.BalancingPlan{
		HoldingStart:     spots[0].Timestamp,
		HoldingEnd:       spots[1].Timestamp.Add(30 * time.Minute),
		Mode:             model.ModeHomeI,
		TargetSoCPercent: 50,
	}
	plan, _ := ResolveBalancingPlan(bp, spots, 10, balancingSimConfig(), nopLog{})

	for _, i := range []int{0, 1} {
		if m, _ := plan.Override(i); m != model.ModeHomeUPS {
			t.Errorf("slot %d hold mode = %s, want %s (HomeI would discharge the charge away)", i, m, model.ModeHomeUPS)
		}
	}
}
