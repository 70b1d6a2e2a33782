package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wattplan/wattplan/core/model"
)

type ConfigDef struct {
	CapacityKWh            float64 `yaml:"capacity_kwh"`
	ChargeRateKW           float64 `yaml:"charge_rate_kw"`
	SlotMinutes            int     `yaml:"slot_minutes"`
	ChargeEfficiency       float64 `yaml:"charge_efficiency"`
	DischargeEfficiency    float64 `yaml:"discharge_efficiency"`
	PlanningMinimumPercent float64 `yaml:"planning_minimum_percent"`
	TargetPercent          float64 `yaml:"target_percent"`
	PriceCeiling           float64 `yaml:"price_ceiling"`
}

type Expected struct {
	Feasible        *bool    `yaml:"feasible,omitempty"`
	Modes           []string `yaml:"modes,omitempty"`
	MinFinalBattery float64  `yaml:"min_final_battery,omitempty"`
	MaxTotalCost    *float64 `yaml:"max_total_cost,omitempty"`
}

type Scenario struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Config      ConfigDef `yaml:"config"`
	BatteryKWh  float64   `yaml:"battery_kwh"`
	Prices      []float64 `yaml:"prices"`
	SolarKWh    []float64 `yaml:"solar_kwh,omitempty"`
	LoadKWh     []float64 `yaml:"load_kwh,omitempty"`
	Expected    Expected  `yaml:"expected"`
}

// Spots expands the scenario price list into timestamped spot prices,
// one per slot starting at midnight.
func (s *Scenario) Spots() []model.SpotPrice {
	slot := s.Config.SlotMinutes
	if slot <= 0 {
		slot = 15
	}
	base := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	spots := make([]model.SpotPrice, len(s.Prices))
	for i, p := range s.Prices {
		spots[i] = model.SpotPrice{Timestamp: base.Add(time.Duration(i*slot) * time.Minute), Price: p}
	}
	return spots
}

func (s *Scenario) series(vals []float64) []float64 {
	out := make([]float64, len(s.Prices))
	copy(out, vals)
	return out
}

func (s *Scenario) Solar() []float64 { return s.series(s.SolarKWh) }
func (s *Scenario) Load() []float64  { return s.series(s.LoadKWh) }

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
