package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestClassifyEcosystem(t *testing.T) {
	tests := []struct {
		name string
		want Ecosystem
	}{
		{"森林保护区", EcosystemForest},
		{"Central Park Meadow", EcosystemGrassland},
		{"Black Forest", EcosystemForest},
		{"Pine Wood Grassland", EcosystemForest},
		{"湿地公园", EcosystemWetland},
		{"Salt Marsh", EcosystemWetland},
		{"东区农田", EcosystemFarmland},
		{"North Farm", EcosystemFarmland},
		{"校园东区", EcosystemMixed},
		{"Zone 7", EcosystemMixed},
		{"", EcosystemMixed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEcosystem(tt.name))
			// deterministic across repeated calls
			assert.Equal(t, ClassifyEcosystem(tt.name), ClassifyEcosystem(tt.name))
		})
	}
}

func TestClassify_LatitudeShift(t *testing.T) {
	base := Classify("forest", nil)
	assert.InDelta(t, 0.55, base.NDVIMin, 1e-9)
	assert.InDelta(t, 0.90, base.NDVIMax, 1e-9)

	tropical := Classify("forest", ptr(22.5))
	assert.InDelta(t, 0.60, tropical.NDVIMin, 1e-9)
	assert.InDelta(t, 0.95, tropical.NDVIMax, 1e-9)

	temperate := Classify("forest", ptr(30))
	assert.Equal(t, base, temperate)

	northern := Classify("forest", ptr(48))
	assert.InDelta(t, 0.50, northern.NDVIMin, 1e-9)
	assert.InDelta(t, 0.85, northern.NDVIMax, 1e-9)
}

func TestClassify_BandsStayClamped(t *testing.T) {
	for _, name := range []string{"forest", "meadow", "marsh", "farm", "zone"} {
		for _, lat := range []float64{0, 24.9, 30, 35.1, 60, -10} {
			p := Classify(name, ptr(lat))
			assert.GreaterOrEqual(t, p.NDVIMin, NDVIFloor)
			assert.LessOrEqual(t, p.NDVIMax, NDVICeiling)
			assert.Less(t, p.NDVIMin, p.NDVIMax)
		}
	}
}

func TestClassify_CoefficientOrdering(t *testing.T) {
	forest := Classify("forest", nil)
	grass := Classify("meadow", nil)

	for _, name := range []string{"marsh", "farm", "zone"} {
		p := Classify(name, nil)
		assert.Greater(t, forest.CarbonCoefficient, p.CarbonCoefficient)
		assert.Less(t, grass.CarbonCoefficient, p.CarbonCoefficient)
		assert.GreaterOrEqual(t, forest.Width(), p.Width())
		assert.LessOrEqual(t, grass.Width(), p.Width())
	}
}

func monthDate(m time.Month) time.Time {
	return time.Date(2024, m, 15, 12, 0, 0, 0, time.UTC)
}

func TestSeasonalFactors(t *testing.T) {
	assert.InDelta(t, 0.9, NDVISeasonalFactor(monthDate(time.June)), 1e-9)
	assert.InDelta(t, 1.2, CarbonSeasonalFactor(monthDate(time.June)), 1e-9)

	// the NDVI trough is clamped
	assert.InDelta(t, 0.4, NDVISeasonalFactor(monthDate(time.December)), 1e-9)
	assert.InDelta(t, 0.7, CarbonSeasonalFactor(monthDate(time.December)), 1e-9)

	assert.InDelta(t, 0.5, NDVISeasonalFactor(monthDate(time.March)), 1e-9)
	assert.InDelta(t, 0.95, CarbonSeasonalFactor(monthDate(time.September)), 1e-9)

	for m := time.January; m <= time.December; m++ {
		n := NDVISeasonalFactor(monthDate(m))
		c := CarbonSeasonalFactor(monthDate(m))
		assert.GreaterOrEqual(t, n, 0.4)
		assert.LessOrEqual(t, n, 1.0)
		assert.GreaterOrEqual(t, c, 0.7)
		assert.LessOrEqual(t, c, 1.2)
		assert.LessOrEqual(t, n, NDVISeasonalFactor(monthDate(time.June)))
	}
}

func TestDrawWeather_Deterministic(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := DrawWeather(ts, 0.6123)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, DrawWeather(ts, 0.6123))
	}
}

func TestDrawWeather_Distribution(t *testing.T) {
	counts := map[WeatherEvent]int{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	const n = 20000
	for i := 0; i < n; i++ {
		counts[DrawWeather(start.Add(time.Duration(i)*time.Hour), 0.5+float64(i%100)/1000)]++
	}

	assert.InDelta(t, 0.90, float64(counts[WeatherNormal])/n, 0.02)
	assert.InDelta(t, 0.05, float64(counts[WeatherDrought])/n, 0.01)
	assert.InDelta(t, 0.05, float64(counts[WeatherRainy])/n, 0.01)
}

func TestWeatherEffects(t *testing.T) {
	assert.Equal(t, 0.5, WeatherNormal.ApplyNDVI(0.5))
	assert.Equal(t, 0.01, WeatherNormal.ApplyCarbon(0.01))

	assert.InDelta(t, 0.44, WeatherDrought.ApplyNDVI(0.5), 1e-9)
	assert.InDelta(t, 0.0082, WeatherDrought.ApplyCarbon(0.01), 1e-12)
	assert.Equal(t, NDVIFloor, WeatherDrought.ApplyNDVI(0.21))

	assert.InDelta(t, 0.54, WeatherRainy.ApplyNDVI(0.5), 1e-9)
	assert.InDelta(t, 0.0112, WeatherRainy.ApplyCarbon(0.01), 1e-12)
	assert.Equal(t, NDVICeiling, WeatherRainy.ApplyNDVI(0.93))
}
