package model

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// WeatherEvent is the perturbation applied to one timestamp
type WeatherEvent string

const (
	WeatherNormal  WeatherEvent = "normal"
	WeatherDrought WeatherEvent = "drought"
	WeatherRainy   WeatherEvent = "rainy"
)

const (
	droughtProbability = 0.05
	rainyProbability   = 0.05
)

// DrawWeather picks the event for a timestamp. The draw is seeded from the
// timestamp and the pre-weather NDVI, so every caller asking about the same
// point gets the same event.
func DrawWeather(t time.Time, ndvi float64) WeatherEvent {
	u := weatherRand(t, ndvi).Float64()
	switch {
	case u < droughtProbability:
		return WeatherDrought
	case u < droughtProbability+rainyProbability:
		return WeatherRainy
	default:
		return WeatherNormal
	}
}

// ApplyNDVI returns ndvi adjusted for the event, kept within the NDVI bounds
func (e WeatherEvent) ApplyNDVI(ndvi float64) float64 {
	switch e {
	case WeatherDrought:
		return math.Max(NDVIFloor, ndvi*0.88)
	case WeatherRainy:
		return math.Min(NDVICeiling, ndvi*1.08)
	default:
		return ndvi
	}
}

// ApplyCarbon returns the carbon absorption adjusted for the event
func (e WeatherEvent) ApplyCarbon(carbon float64) float64 {
	switch e {
	case WeatherDrought:
		return carbon * 0.82
	case WeatherRainy:
		return carbon * 1.12
	default:
		return carbon
	}
}

func weatherRand(t time.Time, ndvi float64) *rand.Rand {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(t.UnixNano()))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(ndvi))

	h := fnv.New64a()
	h.Write(buf[:])
	seed := h.Sum64()

	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
