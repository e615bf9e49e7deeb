// Package synth produces the synthetic NDVI and carbon absorption readings
// that stand in for satellite telemetry of a monitoring zone.
package synth

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smukkama/carbon-monitor/internal/model"
)

// MinCarbonAbsorption is the floor of every generated carbon value (tonnes/day)
const MinCarbonAbsorption = 0.00001

const (
	maxStepRatio   = 0.05 // largest NDVI move relative to the previous value
	overshootRatio = 0.3  // how far past the target a step may land, relative to the gap
	targetSpread   = 0.2  // target offset around the seasonal baseline, relative to band width
	initialSpread  = 0.1  // spread of a first reading, relative to band width
	carbonJitter   = 0.03
)

// Zone carries the zone attributes the synthesizer depends on
type Zone struct {
	Name      string
	AreaM2    float64
	Latitude  *float64
	CreatedAt time.Time
	// Established is the first timestamp of the zone's history, which for
	// a backfilled zone predates CreatedAt. Zero means unknown.
	Established time.Time
}

// origin is the instant zone age is measured from
func (z Zone) origin() time.Time {
	switch {
	case z.Established.IsZero():
		return z.CreatedAt
	case z.CreatedAt.IsZero(), z.Established.Before(z.CreatedAt):
		return z.Established
	default:
		return z.CreatedAt
	}
}

// Reading is one synthesized measurement
type Reading struct {
	Timestamp        time.Time
	NDVI             float64
	CarbonAbsorption float64
	Weather          model.WeatherEvent
}

// Synthesizer generates readings. It is safe for concurrent use; each
// Series draws from its own generator, so concurrent runs never shift
// each other's noise.
type Synthesizer struct {
	env model.Environment

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a synthesizer whose noise is driven by the given seed
func New(env model.Environment, seed uint64) *Synthesizer {
	if env == nil {
		env = model.Default{}
	}
	return &Synthesizer{
		env: env,
		rng: newRNG(seed),
	}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// NewRandom creates a synthesizer with a random seed
func NewRandom(env model.Environment) *Synthesizer {
	return New(env, rand.Uint64())
}

// Synthesize produces the reading of zone z at ts. previous is the zone's
// last NDVI, or nil when the zone has no history. The zone must have a
// positive area; validation is the caller's job.
func (s *Synthesizer) Synthesize(z Zone, ts time.Time, previous *float64) Reading {
	s.mu.Lock()
	n := drawNoise(s.rng)
	s.mu.Unlock()
	return s.synthesize(z, s.env.Classify(z.Name, z.Latitude), ts, previous, n)
}

// NewSeries starts a generation run for z. The ecosystem profile is
// classified once and every reading continues from the one before it.
// The series is seeded from s once and owns its generator afterwards.
func (s *Synthesizer) NewSeries(z Zone, previous *float64) *Series {
	s.mu.Lock()
	seed := s.rng.Uint64()
	s.mu.Unlock()

	return &Series{
		synth:   s,
		rng:     newRNG(seed),
		zone:    z,
		profile: s.env.Classify(z.Name, z.Latitude),
		prev:    previous,
	}
}

// Series is a single ordered generation run over one zone. It is not
// safe for concurrent use.
type Series struct {
	synth   *Synthesizer
	rng     *rand.Rand
	zone    Zone
	profile model.Profile
	prev    *float64
}

// Next synthesizes the reading at ts and remembers its NDVI for the following call
func (sr *Series) Next(ts time.Time) Reading {
	r := sr.synth.synthesize(sr.zone, sr.profile, ts, sr.prev, drawNoise(sr.rng))
	ndvi := r.NDVI
	sr.prev = &ndvi
	return r
}

// Profile returns the ecosystem profile the series was classified with
func (sr *Series) Profile() model.Profile {
	return sr.profile
}

func (s *Synthesizer) synthesize(z Zone, p model.Profile, ts time.Time, previous *float64, n noise) Reading {
	offset, step, jitter := n.offset, n.step, n.jitter

	base := BaseTarget(p, s.env.NDVIFactor(ts))

	var ndvi float64
	if previous != nil {
		target := base + offset*targetSpread*p.Width()
		ndvi = walk(*previous, target, step)
	} else {
		ndvi = base + offset*initialSpread*p.Width()
	}

	event := s.env.Weather(ts, ndvi)
	ndvi = round(model.ClampNDVI(event.ApplyNDVI(ndvi)), 4)
	if previous != nil && event == model.WeatherNormal {
		ndvi = limitStep(ndvi, *previous)
	}

	hectares := z.AreaM2 / 10000
	carbon := BaseCarbonRate(ndvi, p.CarbonCoefficient) *
		hectares *
		AreaEfficiency(hectares) *
		s.env.CarbonFactor(ts) *
		LatitudeEfficiency(z.Latitude) *
		MaturityFactor(ts.Sub(z.origin()))
	carbon = event.ApplyCarbon(carbon)
	carbon *= 1 + jitter*carbonJitter
	carbon = math.Max(MinCarbonAbsorption, round(carbon, 6))

	return Reading{
		Timestamp:        ts,
		NDVI:             ndvi,
		CarbonAbsorption: carbon,
		Weather:          event,
	}
}

// noise holds the three independent draws of one reading, each in [-1, 1)
type noise struct {
	offset, step, jitter float64
}

func drawNoise(rng *rand.Rand) noise {
	return noise{
		offset: 2*rng.Float64() - 1,
		step:   2*rng.Float64() - 1,
		jitter: 2*rng.Float64() - 1,
	}
}

// BaseTarget maps a seasonal NDVI factor onto the profile's NDVI band
func BaseTarget(p model.Profile, seasonalFactor float64) float64 {
	return p.NDVIMin + p.Width()*(seasonalFactor-0.4)/0.6
}

// walk moves from prev toward target. The raw step lands within 30% of
// the gap on either side of the target and is capped at 5% of prev.
func walk(prev, target, u float64) float64 {
	gap := target - prev
	step := gap * (1 + overshootRatio*u)
	maxStep := maxStepRatio * math.Abs(prev)
	return prev + math.Max(-maxStep, math.Min(maxStep, step))
}

// limitStep keeps a rounded NDVI within 5% of prev, rounding toward prev
func limitStep(ndvi, prev float64) float64 {
	limit := maxStepRatio * math.Abs(prev)
	d := ndvi - prev
	if math.Abs(d) <= limit {
		return ndvi
	}
	return round(prev+math.Copysign(math.Floor(limit*1e4)/1e4, d), 4)
}

// BaseCarbonRate returns carbon uptake per hectare per day for an NDVI value:
// negligible below 0.3, linear up to 0.6 and super-linear above
func BaseCarbonRate(ndvi, coefficient float64) float64 {
	var rate float64
	switch {
	case ndvi < 0.3:
		rate = 0.0001 * math.Max(ndvi, 0) / 0.3
	case ndvi <= 0.6:
		rate = 0.0001 + (ndvi-0.3)/0.3*0.0009
	default:
		rate = 0.001 * math.Pow(ndvi/0.6, 1.3)
	}
	return rate * coefficient
}

// AreaEfficiency favours small plots (up to +20% under 1 ha) and
// penalises very large ones (down to -5% at 1000 ha)
func AreaEfficiency(hectares float64) float64 {
	switch {
	case hectares < 1:
		return 1 + 0.2*(1-math.Max(hectares, 0))
	case hectares <= 100:
		return 1
	default:
		return 1 - 0.05*math.Min(1, (hectares-100)/900)
	}
}

// LatitudeEfficiency is up to +10% toward the equator and down to -5% at high latitudes
func LatitudeEfficiency(latitude *float64) float64 {
	if latitude == nil {
		return 1
	}
	lat := math.Abs(*latitude)
	switch {
	case lat < 25:
		return 1 + 0.1*math.Min(1, (25-lat)/25)
	case lat > 35:
		return 1 - 0.05*math.Min(1, (lat-35)/30)
	default:
		return 1
	}
}

const year = 365 * 24 * time.Hour

// MaturityFactor models ecosystem development with zone age: 0.8-0.9 in the
// first year, 0.9-1.0 up to five years, 1.0-1.1 after that
func MaturityFactor(age time.Duration) float64 {
	years := math.Max(0, float64(age)/float64(year))
	switch {
	case years < 1:
		return 0.8 + 0.1*years
	case years < 5:
		return 0.9 + 0.1*(years-1)/4
	default:
		return 1.0 + 0.1*math.Min(1, (years-5)/5)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
