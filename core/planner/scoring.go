package planner

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/wattplan/wattplan/core/model"
	"github.com/wattplan/wattplan/core/simulator"
)

// Scoring weights. Costs are in price units, battery terms in kWh.
const (
	floorBonus       = 1.0
	targetBonus      = 0.5
	selfUseBonus     = 0.2
	shortfallPenalty = 2.0
	upsBonus         = 0.5
	ceilingPenalty   = 10.0
	disabledPenalty  = 1000.0

	solarSignificant = 0.1
	daySolarEpsilon  = 1e-3
)

// slotStats summarizes the prices visible ahead of a slot.
type slotStats struct {
	FutureMax float64
	FutureAvg float64
	FutureMin float64
}

// scorer computes per-slot forward price statistics and the four-way mode
// score. It is rebuilt for every planning run.
type scorer struct {
	sim    *simulator.IntervalSimulator
	cfg    HybridConfig
	prices []float64
	solar  []float64
	load   []float64

	cheapThreshold float64
	sunset         int
}

func newScorer(sim *simulator.IntervalSimulator, cfg HybridConfig, prices, solar, load []float64) *scorer {
	s := &scorer{sim: sim, cfg: cfg, prices: prices, solar: solar, load: load, sunset: -1}
	if len(prices) > 0 {
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		s.cheapThreshold = stat.Quantile(cfg.CheapPercentile, stat.Empirical, sorted, nil)
	}
	for i := len(solar) - 1; i >= 0; i-- {
		if solar[i] > daySolarEpsilon {
			s.sunset = i
			break
		}
	}
	return s
}

// stats returns max/avg/min over the lookahead window after slot i. A slot
// with no future falls back to its own price.
func (s *scorer) stats(i int) slotStats {
	end := i + 1 + s.cfg.LookaheadSlots
	if end > len(s.prices) {
		end = len(s.prices)
	}
	if i+1 >= end {
		p := s.prices[i]
		return slotStats{FutureMax: p, FutureAvg: p, FutureMin: p}
	}
	st := slotStats{FutureMax: math.Inf(-1), FutureMin: math.Inf(1)}
	sum := 0.0
	for k := i + 1; k < end; k++ {
		p := s.prices[k]
		st.FutureMax = math.Max(st.FutureMax, p)
		st.FutureMin = math.Min(st.FutureMin, p)
		sum += p
	}
	st.FutureAvg = sum / float64(end-i-1)
	return st
}

// arbitrage is the expected value of buying now and discharging at the
// future maximum, accounting for both conversion losses.
func (s *scorer) arbitrage(i int) float64 {
	cfg := s.sim.Config()
	return s.stats(i).FutureMax*cfg.DischargeEfficiency - s.prices[i]/cfg.ChargeEfficiency
}

// shouldCharge flags slots worth charging in: favorable arbitrage, cheap
// percentile, negative price, or the pre-night preparation window.
func (s *scorer) shouldCharge(i int) bool {
	if s.cfg.Charging == ChargingDisabled {
		return false
	}
	if s.prices[i] < 0 {
		return true
	}
	if s.arbitrage(i) > s.cfg.MinArbitrageSpread {
		return true
	}
	if s.prices[i] <= s.cheapThreshold {
		return true
	}
	if s.sunset >= 0 && i > s.sunset-s.cfg.PreNightSlots && i <= s.sunset {
		return true
	}
	return false
}

// bestMode scores all four modes for a slot and returns the winner. Ties
// break by enumeration order HomeI, HomeII, HomeIII, HomeUPS. Switching
// away from prev, the mode of the preceding slot, costs the smoothing
// penalty.
func (s *scorer) bestMode(i int, battery float64, prev model.Mode) (model.Mode, map[model.Mode]float64) {
	cfg := s.sim.Config()
	floor := s.cfg.FloorKWh(cfg.MaxCapacityKWh)
	target := s.cfg.TargetKWh(cfg.MaxCapacityKWh)
	price := s.prices[i]

	scores := make(map[model.Mode]float64, len(model.Modes))
	best := model.ModeHomeI
	bestScore := math.Inf(-1)
	for _, m := range model.Modes {
		res := s.sim.Simulate(battery, m, s.solar[i], s.load[i], m == model.ModeHomeUPS)
		cost := simulator.CalculateCost(res, price, price*s.cfg.ExportPriceFactor)
		score := -cost
		if res.BatteryEnd >= floor {
			score += floorBonus
		} else {
			score -= (floor - res.BatteryEnd) * shortfallPenalty
		}
		if res.BatteryEnd >= target {
			score += targetBonus
		}
		score += res.SolarToLoad * selfUseBonus
		if m != prev {
			score -= s.cfg.SmoothingPenalty
		}
		if m == model.ModeHomeUPS {
			if s.cfg.Charging == ChargingDisabled {
				score -= disabledPenalty
			}
			if price > s.cfg.PriceCeiling {
				score -= (price - s.cfg.PriceCeiling) * ceilingPenalty
			}
			if price <= s.cheapThreshold || s.arbitrage(i) > s.cfg.MinArbitrageSpread {
				score += upsBonus
			}
		}
		scores[m] = score
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best, scores
}

// bestNonCharging returns the best-scoring mode other than HomeUPS, with
// the same tie-break order.
func bestNonCharging(scores map[model.Mode]float64) model.Mode {
	best := model.ModeHomeI
	bestScore := math.Inf(-1)
	for _, m := range model.Modes {
		if m == model.ModeHomeUPS {
			continue
		}
		if scores[m] > bestScore {
			bestScore = scores[m]
			best = m
		}
	}
	return best
}

// negativeMode resolves the mode for a negative-price slot.
func (s *scorer) negativeMode(i int, battery float64) model.Mode {
	switch s.cfg.NegativePrice {
	case NegativeChargeFromGrid:
		return model.ModeHomeUPS
	case NegativeCurtail:
		return model.ModeHomeIII
	case NegativeConsume:
		return model.ModeHomeI
	default:
		if battery < s.sim.Config().MaxCapacityKWh-1e-6 {
			return model.ModeHomeUPS
		}
		if s.solar[i] > solarSignificant {
			return model.ModeHomeIII
		}
		return model.ModeHomeI
	}
}
