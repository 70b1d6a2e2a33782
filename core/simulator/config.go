package simulator

import "fmt"

// Config defines the battery and inverter characteristics used by the
// interval simulator. It is immutable for the duration of a planning run.
type Config struct {
	// MaxCapacityKWh is the usable battery capacity.
	MaxCapacityKWh float64 `json:"max_capacity_kwh"`
	// HardwareMinKWh is the level below which the inverter refuses to
	// discharge. It is distinct from the planning minimum.
	HardwareMinKWh float64 `json:"hardware_min_kwh"`
	// ChargeEfficiency is the AC to DC loss factor for grid charging.
	ChargeEfficiency float64 `json:"charge_efficiency"`
	// DischargeEfficiency is the DC to AC loss factor for discharging.
	DischargeEfficiency float64 `json:"discharge_efficiency"`
	// SolarChargeEfficiency is the DC to DC loss factor for solar charging.
	SolarChargeEfficiency float64 `json:"solar_charge_efficiency"`
	// ChargeRateKW is the maximum grid charging power.
	ChargeRateKW float64 `json:"charge_rate_kw"`
	// SlotMinutes is the planning slot duration.
	SlotMinutes int `json:"slot_minutes"`
}

// SetDefaults applies sane defaults for a typical home battery.
func (c *Config) SetDefaults() {
	if c.MaxCapacityKWh == 0 {
		c.MaxCapacityKWh = 15
	}
	if c.ChargeEfficiency == 0 {
		c.ChargeEfficiency = 0.95
	}
	if c.DischargeEfficiency == 0 {
		c.DischargeEfficiency = 0.95
	}
	if c.SolarChargeEfficiency == 0 {
		c.SolarChargeEfficiency = 0.98
	}
	if c.ChargeRateKW == 0 {
		c.ChargeRateKW = 5
	}
	if c.SlotMinutes == 0 {
		c.SlotMinutes = 15
	}
}

// Validate checks that the configuration is physically sound.
func (c Config) Validate() error {
	if c.MaxCapacityKWh <= 0 {
		return fmt.Errorf("max_capacity_kwh must be positive")
	}
	if c.HardwareMinKWh < 0 || c.HardwareMinKWh >= c.MaxCapacityKWh {
		return fmt.Errorf("hardware_min_kwh must be in [0, max_capacity_kwh)")
	}
	for name, eff := range map[string]float64{
		"charge_efficiency":       c.ChargeEfficiency,
		"discharge_efficiency":    c.DischargeEfficiency,
		"solar_charge_efficiency": c.SolarChargeEfficiency,
	} {
		if eff <= 0 || eff > 1 {
			return fmt.Errorf("%s must be in (0,1]", name)
		}
	}
	if c.ChargeRateKW <= 0 {
		return fmt.Errorf("charge_rate_kw must be positive")
	}
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}
	return nil
}

// SlotHours returns the slot duration in hours.
func (c Config) SlotHours() float64 { return float64(c.SlotMinutes) / 60 }

// MaxGridChargePerSlotKWh returns the energy a single slot of grid charging
// can add to the battery, after charge losses.
func (c Config) MaxGridChargePerSlotKWh() float64 {
	return c.ChargeRateKW * c.SlotHours() * c.ChargeEfficiency
}
