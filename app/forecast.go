package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/wattplan/wattplan/core/logger"
	"github.com/wattplan/wattplan/core/model"
)

// Forecast carries the plain input arrays for one planning run.
type Forecast struct {
	BatteryKWh float64
	Prices     []model.SpotPrice
	SolarKWh   []float64
	LoadKWh    []float64
	Balancing  *model.BalancingPlan
}

type forecastFile struct {
	BatteryKWh float64 `json:"battery_kwh"`
	Prices     []struct {
		Timestamp string  `json:"timestamp"`
		Price     float64 `json:"price"`
	} `json:"prices"`
	SolarKWh  []float64            `json:"solar_kwh"`
	LoadKWh   []float64            `json:"load_kwh"`
	Balancing *model.BalancingPlan `json:"balancing,omitempty"`
}

// LoadForecast reads a forecast file. Rows with malformed timestamps are
// skipped with a warning rather than failing the cycle.
func LoadForecast(path string, log logger.Logger) (*Forecast, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forecast: %w", err)
	}
	var f forecastFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	out := &Forecast{
		BatteryKWh: f.BatteryKWh,
		SolarKWh:   f.SolarKWh,
		LoadKWh:    f.LoadKWh,
		Balancing:  f.Balancing,
	}
	for i, row := range f.Prices {
		ts, err := time.Parse(time.RFC3339, row.Timestamp)
		if err != nil {
			log.Warnf("skipping price row %d: bad timestamp %q", i, row.Timestamp)
			continue
		}
		out.Prices = append(out.Prices, model.SpotPrice{Timestamp: ts, Price: row.Price})
	}
	if len(out.Prices) == 0 {
		return nil, fmt.Errorf("forecast contains no usable price rows")
	}
	return out, nil
}
