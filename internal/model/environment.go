package model

import "time"

// Environment bundles the models consumed by the measurement synthesizer
type Environment interface {
	Classify(name string, latitude *float64) Profile
	NDVIFactor(t time.Time) float64
	CarbonFactor(t time.Time) float64
	Weather(t time.Time, ndvi float64) WeatherEvent
}

// Default is the production Environment
type Default struct{}

func (Default) Classify(name string, latitude *float64) Profile {
	return Classify(name, latitude)
}

func (Default) NDVIFactor(t time.Time) float64 {
	return NDVISeasonalFactor(t)
}

func (Default) CarbonFactor(t time.Time) float64 {
	return CarbonSeasonalFactor(t)
}

func (Default) Weather(t time.Time, ndvi float64) WeatherEvent {
	return DrawWeather(t, ndvi)
}
