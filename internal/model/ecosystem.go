// Package model holds the pure environmental models behind measurement
// synthesis: ecosystem classification, seasonal curves and weather events.
package model

import (
	"math"
	"strings"
)

// Ecosystem is a coarse vegetation category of a zone
type Ecosystem string

const (
	EcosystemForest    Ecosystem = "forest"
	EcosystemGrassland Ecosystem = "grassland"
	EcosystemWetland   Ecosystem = "wetland"
	EcosystemFarmland  Ecosystem = "farmland"
	EcosystemMixed     Ecosystem = "mixed"
)

const (
	// NDVIFloor and NDVICeiling bound every NDVI value the models produce
	NDVIFloor   = 0.2
	NDVICeiling = 0.95
)

// Profile is the NDVI band and carbon coefficient of a classified zone
type Profile struct {
	Ecosystem         Ecosystem
	NDVIMin           float64
	NDVIMax           float64
	CarbonCoefficient float64
}

// Width returns the size of the NDVI band
func (p Profile) Width() float64 {
	return p.NDVIMax - p.NDVIMin
}

// keyword groups are matched in slice order; the first group with a hit wins
var ecosystemKeywords = []struct {
	ecosystem Ecosystem
	keywords  []string
}{
	{EcosystemForest, []string{"森林", "林", "树", "forest", "wood", "jungle", "grove"}},
	{EcosystemGrassland, []string{"草原", "草地", "草", "grass", "meadow", "prairie", "lawn", "steppe"}},
	{EcosystemWetland, []string{"湿地", "沼泽", "湖", "wetland", "marsh", "swamp", "bog", "lake", "river"}},
	{EcosystemFarmland, []string{"农田", "农", "田", "farm", "field", "crop", "orchard", "paddy"}},
}

var baseProfiles = map[Ecosystem]Profile{
	EcosystemForest:    {Ecosystem: EcosystemForest, NDVIMin: 0.55, NDVIMax: 0.90, CarbonCoefficient: 1.2},
	EcosystemGrassland: {Ecosystem: EcosystemGrassland, NDVIMin: 0.30, NDVIMax: 0.55, CarbonCoefficient: 0.6},
	EcosystemWetland:   {Ecosystem: EcosystemWetland, NDVIMin: 0.45, NDVIMax: 0.75, CarbonCoefficient: 1.0},
	EcosystemFarmland:  {Ecosystem: EcosystemFarmland, NDVIMin: 0.40, NDVIMax: 0.70, CarbonCoefficient: 0.8},
	EcosystemMixed:     {Ecosystem: EcosystemMixed, NDVIMin: 0.40, NDVIMax: 0.72, CarbonCoefficient: 0.9},
}

// ClassifyEcosystem infers the ecosystem from a free-text zone name.
// Names without any known keyword are EcosystemMixed.
func ClassifyEcosystem(name string) Ecosystem {
	lower := strings.ToLower(name)
	for _, group := range ecosystemKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.ecosystem
			}
		}
	}
	return EcosystemMixed
}

// LatitudeShift returns the NDVI band shift for a latitude in degrees.
// A nil latitude means the centroid is unknown and no shift is applied.
func LatitudeShift(latitude *float64) float64 {
	if latitude == nil {
		return 0
	}
	lat := math.Abs(*latitude)
	switch {
	case lat < 25:
		return 0.05
	case lat > 35:
		return -0.05
	default:
		return 0
	}
}

// Classify derives the full profile of a zone from its name and centroid latitude
func Classify(name string, latitude *float64) Profile {
	p := baseProfiles[ClassifyEcosystem(name)]
	shift := LatitudeShift(latitude)
	p.NDVIMin = ClampNDVI(p.NDVIMin + shift)
	p.NDVIMax = ClampNDVI(p.NDVIMax + shift)
	return p
}

// ClampNDVI bounds v to [NDVIFloor, NDVICeiling]
func ClampNDVI(v float64) float64 {
	return clamp(v, NDVIFloor, NDVICeiling)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
