// Package carbon estimates the emissions of one page view with the
// sustainable web design model.
package carbon

import (
	"math"
	"net/http"
	"strconv"

	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

const (
	KWhPerGB          = 0.81
	GramsPerKWh       = 442.0
	ReturningVisitors = 0.75
	ReturningLoad     = 0.02
	bytesPerGB        = 1 << 30
)

// Estimate is the footprint of one page view.
type Estimate struct {
	Bytes         int64   `json:"bytes"`
	AdjustedBytes float64 `json:"adjusted_bytes"`
	EnergyKWh     float64 `json:"energy_kwh"`
	GramsCO2e     float64 `json:"grams_co2e"`
}

// EstimatePage weights pageBytes by first and returning visitors and converts
// the transfer to energy and grams of CO2e.
func EstimatePage(pageBytes int64) Estimate {
	if pageBytes < 0 {
		pageBytes = 0
	}
	b := float64(pageBytes)
	adjusted := b*(1-ReturningVisitors) + b*ReturningVisitors*ReturningLoad
	energy := adjusted / bytesPerGB * KWhPerGB
	return Estimate{
		Bytes:         pageBytes,
		AdjustedBytes: adjusted,
		EnergyKWh:     energy,
		GramsCO2e:     round(energy*GramsPerKWh, 4),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Handler serves GET /carbon for a fixed page weight; ?bytes= overrides it.
func Handler(pageBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := pageBytes
		if v := r.URL.Query().Get("bytes"); v != "" {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil || parsed < 0 {
				utilities.WriteFieldError(w, "bytes", "bytes must be a non-negative integer")
				return
			}
			n = parsed
		}
		utilities.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "estimate": EstimatePage(n)})
	}
}
