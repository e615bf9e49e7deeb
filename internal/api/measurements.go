package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/carbon-monitor/internal/database"
)

// chartData holds parallel series for plotting
type chartData struct {
	Timestamps   []time.Time `json:"timestamps"`
	NDVIValues   []float64   `json:"ndvi_values"`
	CarbonValues []float64   `json:"carbon_values"`
}

// zoneExists writes a response and returns false when the zone is missing
func (s *Server) zoneExists(ctx context.Context, c *gin.Context, id int64) bool {
	if _, err := s.deps.Store.GetZone(ctx, id); err != nil {
		storeError(c, err)
		return false
	}
	return true
}

// GET /api/measurements/zone/:id?skip=0&limit=100
func (s *Server) handleListMeasurements(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}
	skip, ok := intQuery(c, "skip", 0, 0, 1<<30)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", 100, 1, 1000)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if !s.zoneExists(ctx, c, id) {
		return
	}
	measurements, err := s.deps.Store.ListMeasurements(ctx, id, skip, limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, measurements)
}

// GET /api/measurements/zone/:id/chart?limit=10
func (s *Server) handleChart(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", 10, 1, 1000)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if !s.zoneExists(ctx, c, id) {
		return
	}
	measurements, err := s.deps.Store.RecentMeasurements(ctx, id, limit)
	if err != nil {
		storeError(c, err)
		return
	}

	chart := chartData{
		Timestamps:   make([]time.Time, len(measurements)),
		NDVIValues:   make([]float64, len(measurements)),
		CarbonValues: make([]float64, len(measurements)),
	}
	for i, m := range measurements {
		chart.Timestamps[i] = m.Timestamp
		chart.NDVIValues[i] = m.NDVI
		chart.CarbonValues[i] = m.CarbonAbsorption
	}
	c.JSON(http.StatusOK, chart)
}

// GET /api/measurements/zone/:id/stats
func (s *Server) handleStats(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if !s.zoneExists(ctx, c, id) {
		return
	}
	stats, err := s.deps.Store.ZoneStats(ctx, []int64{id})
	if err != nil {
		storeError(c, err)
		return
	}

	st := stats[id]
	if st == nil {
		st = &database.ZoneStats{}
	}
	c.JSON(http.StatusOK, st)
}

// GET /api/measurements/zone/:id/daily?days=30
func (s *Server) handleDaily(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}
	days, ok := intQuery(c, "days", 30, 1, 366)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if !s.zoneExists(ctx, c, id) {
		return
	}
	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -days)
	summaries, err := s.deps.Store.ListDailySummaries(ctx, id, since)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zone_id": id, "days": summaries})
}
