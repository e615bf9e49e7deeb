package model

import (
	"math"
	"time"
)

// Both curves peak in June and bottom out in December.

// NDVISeasonalFactor returns the month multiplier for vegetation density, in [0.4, 1.0]
func NDVISeasonalFactor(t time.Time) float64 {
	return clamp(0.5+0.4*seasonalWave(t.Month()), 0.4, 1.0)
}

// CarbonSeasonalFactor returns the month multiplier for carbon uptake, in [0.7, 1.2]
func CarbonSeasonalFactor(t time.Time) float64 {
	return clamp(0.95+0.25*seasonalWave(t.Month()), 0.7, 1.2)
}

func seasonalWave(month time.Month) float64 {
	return math.Sin(float64(int(month)-3) * math.Pi / 6)
}
