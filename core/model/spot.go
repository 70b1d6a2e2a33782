package model

import "time"

// SpotPrice is the buy price for one planning slot. Slices of SpotPrice are
// ordered by time; the slice index is the slot index used everywhere else.
type SpotPrice struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Prices extracts the raw price values from a slot grid.
func Prices(spots []SpotPrice) []float64 {
	out := make([]float64, len(spots))
	for i, s := range spots {
		out[i] = s.Price
	}
	return out
}
