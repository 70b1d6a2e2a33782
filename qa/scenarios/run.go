package scenarios

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
	"github.com/wattplan/wattplan/core/planner"
	"github.com/wattplan/wattplan/core/simulator"
	"github.com/wattplan/wattplan/infra/logger"
	"github.com/wattplan/wattplan/infra/metrics"
)

func RunScenario(t *testing.T, sc *Scenario) {
	simCfg := simulator.Config{
		MaxCapacityKWh:      sc.Config.CapacityKWh,
		ChargeRateKW:        sc.Config.ChargeRateKW,
		SlotMinutes:         sc.Config.SlotMinutes,
		ChargeEfficiency:    sc.Config.ChargeEfficiency,
		DischargeEfficiency: sc.Config.DischargeEfficiency,
	}
	simCfg.SetDefaults()
	if err := simCfg.Validate(); err != nil {
		t.Fatalf("simulator config: %v", err)
	}

	plnCfg := planner.HybridConfig{
		PlanningMinimumPercent: sc.Config.PlanningMinimumPercent,
		TargetPercent:          sc.Config.TargetPercent,
		PriceCeiling:           sc.Config.PriceCeiling,
	}
	plnCfg.SetDefaults()
	if err := plnCfg.Validate(); err != nil {
		t.Fatalf("planner config: %v", err)
	}

	strategy := planner.NewHybridStrategy(simCfg, plnCfg, logger.NopLogger{})
	result := strategy.Plan(sc.Spots(), sc.Solar(), sc.Load(), sc.BatteryKWh, nil)

	if sc.Expected.Feasible != nil && result.Feasible != *sc.Expected.Feasible {
		t.Errorf("feasible = %v, want %v (%s)", result.Feasible, *sc.Expected.Feasible, result.Infeasibility)
	}
	for i, want := range sc.Expected.Modes {
		if i >= len(result.Decisions) {
			t.Fatalf("expected mode for slot %d but plan has %d slots", i, len(result.Decisions))
		}
		if got := result.Decisions[i].Mode.String(); got != want {
			t.Errorf("slot %d mode = %s, want %s", i, got, want)
		}
	}
	if result.FinalBattery < sc.Expected.MinFinalBattery {
		t.Errorf("final battery %.3f below expected minimum %.3f", result.FinalBattery, sc.Expected.MinFinalBattery)
	}
	if sc.Expected.MaxTotalCost != nil && result.TotalCost > *sc.Expected.MaxTotalCost {
		t.Errorf("total cost %.3f above expected maximum %.3f", result.TotalCost, *sc.Expected.MaxTotalCost)
	}

	// Every scenario run also feeds a Prometheus sink so the metric
	// labels stay consistent with real plan results.
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	if err := sink.RecordPlan(coremetrics.PlanEvent{PlanID: sc.Name, Result: result}); err != nil {
		t.Errorf("record plan: %v", err)
	}
}
