// Package pricing maintains the mock carbon credit price series
package pricing

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smukkama/carbon-monitor/internal/database"
)

const (
	basePrice        = 75.0
	liveVariation    = 15.0
	historyVariation = 20.0
	minPrice         = 30.0

	SourceMock       = "Mock Data Service"
	SourceHistorical = "Mock Historical Data"
)

// Store persists price points
type Store interface {
	InsertPrices(ctx context.Context, prices []*database.CarbonPrice) error
	LatestPrice(ctx context.Context) (*database.CarbonPrice, error)
	ListPrices(ctx context.Context, limit int) ([]database.CarbonPrice, error)
}

// Service generates and reads carbon prices (CNY per tonne)
type Service struct {
	store Store
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a price service with a random seed
func NewService(store Store) *Service {
	seed := rand.Uint64()
	return &Service{
		store: store,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// price draws base ± variation, floored at minPrice and rounded to cents
func (s *Service) price(variation float64) float64 {
	s.mu.Lock()
	u := s.rng.Float64()*2 - 1
	s.mu.Unlock()

	p := math.Max(minPrice, basePrice+u*variation)
	return math.Round(p*100) / 100
}

// GenerateMock stores and returns a new live price point
func (s *Service) GenerateMock(ctx context.Context) (*database.CarbonPrice, error) {
	p := &database.CarbonPrice{
		Price:     s.price(liveVariation),
		Timestamp: s.now().UTC(),
		Source:    SourceMock,
	}
	if err := s.store.InsertPrices(ctx, []*database.CarbonPrice{p}); err != nil {
		return nil, fmt.Errorf("failed to store mock price: %w", err)
	}
	return p, nil
}

// Current returns the newest price, generating one when none exists
func (s *Service) Current(ctx context.Context) (*database.CarbonPrice, error) {
	p, err := s.store.LatestPrice(ctx)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}
	return s.GenerateMock(ctx)
}

// History returns the newest limit prices, newest first
func (s *Service) History(ctx context.Context, limit int) ([]database.CarbonPrice, error) {
	return s.store.ListPrices(ctx, limit)
}

// SeedHistory writes one daily price for each of the last days days when
// the series is empty. It returns the number of points written.
func (s *Service) SeedHistory(ctx context.Context, days int) (int, error) {
	latest, err := s.store.LatestPrice(ctx)
	if err != nil {
		return 0, err
	}
	if latest != nil || days <= 0 {
		return 0, nil
	}

	now := s.now().UTC()
	prices := make([]*database.CarbonPrice, 0, days)
	for i := 0; i < days; i++ {
		prices = append(prices, &database.CarbonPrice{
			Price:     s.price(historyVariation),
			Timestamp: now.AddDate(0, 0, -i),
			Source:    SourceHistorical,
		})
	}
	if err := s.store.InsertPrices(ctx, prices); err != nil {
		return 0, fmt.Errorf("failed to seed price history: %w", err)
	}

	log.Printf("pricing: seeded %d days of price history", days)
	return days, nil
}

// Job is the scheduled price update
func (s *Service) Job(ctx context.Context) error {
	p, err := s.GenerateMock(ctx)
	if err != nil {
		return err
	}
	log.Printf("pricing: new price %.2f", p.Price)
	return nil
}
