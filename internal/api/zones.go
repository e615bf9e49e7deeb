package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/dispatch"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/geo"
	"github.com/smukkama/carbon-monitor/internal/jobstate"
)

type createZoneRequest struct {
	Name        string      `json:"name" binding:"required,min=2,max=20"`
	Coordinates []geo.Point `json:"coordinates" binding:"required,min=3,max=7,dive"`
}

type updateZoneRequest struct {
	Name        *string              `json:"name" binding:"omitempty,min=2,max=20"`
	Coordinates []geo.Point          `json:"coordinates" binding:"omitempty,min=3,max=7,dive"`
	Status      *database.ZoneStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

// zoneWithStats is a zone plus the summary of its measurements
type zoneWithStats struct {
	database.Zone
	TotalCarbonAbsorption float64 `json:"total_carbon_absorption"`
	CurrentNDVI           float64 `json:"current_ndvi"`
	MeasurementsCount     int     `json:"measurements_count"`
}

func withStats(z database.Zone, st *database.ZoneStats) zoneWithStats {
	out := zoneWithStats{Zone: z}
	if st != nil {
		out.TotalCarbonAbsorption = st.TotalCarbonAbsorption
		out.CurrentNDVI = st.AverageNDVI
		out.MeasurementsCount = st.MeasurementsCount
	}
	return out
}

// handleListZones returns a page of zones with their stats
// GET /api/zones?skip=0&limit=100
func (s *Server) handleListZones(c *gin.Context) {
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

	zones, err := s.deps.Store.ListZones(ctx, skip, limit)
	if err != nil {
		storeError(c, err)
		return
	}

	ids := make([]int64, len(zones))
	for i, z := range zones {
		ids[i] = z.ID
	}
	stats, err := s.deps.Store.ZoneStats(ctx, ids)
	if err != nil {
		storeError(c, err)
		return
	}

	result := make([]zoneWithStats, len(zones))
	for i, z := range zones {
		result[i] = withStats(z, stats[z.ID])
	}
	c.JSON(http.StatusOK, result)
}

// handleCreateZone stores a zone and queues its historical backfill
// POST /api/zones
func (s *Server) handleCreateZone(c *gin.Context) {
	var req createZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	area, err := geo.Area(req.Coordinates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	zone := &database.Zone{
		Name:        req.Name,
		Coordinates: req.Coordinates,
		Area:        area,
		Status:      database.ZoneStatusActive,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.deps.Store.CreateZone(ctx, zone); err != nil {
		storeError(c, err)
		return
	}

	// backfill failures never reach the creation response
	if jobID, err := s.deps.Dispatcher.Dispatch(zone.ID, s.deps.Backfill); err != nil {
		log.Printf("api: backfill of new zone %d not queued: %v", zone.ID, err)
	} else {
		log.Printf("api: zone %d created, backfill job %s queued", zone.ID, jobID)
	}

	c.JSON(http.StatusCreated, zone)
}

// handleGetZone returns one zone with its stats
// GET /api/zones/:id
func (s *Server) handleGetZone(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	zone, err := s.deps.Store.GetZone(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}
	stats, err := s.deps.Store.ZoneStats(ctx, []int64{id})
	if err != nil {
		storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, withStats(*zone, stats[id]))
}

// handleUpdateZone changes name, boundary or status of a zone
// PUT /api/zones/:id
func (s *Server) handleUpdateZone(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}

	var req updateZoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	zone, err := s.deps.Store.GetZone(ctx, id)
	if err != nil {
		storeError(c, err)
		return
	}

	if req.Name != nil {
		zone.Name = *req.Name
	}
	if req.Coordinates != nil {
		area, err := geo.Area(req.Coordinates)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
			return
		}
		zone.Coordinates = req.Coordinates
		zone.Area = area
	}
	if req.Status != nil {
		zone.Status = *req.Status
	}

	if err := s.deps.Store.UpdateZone(ctx, zone); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

// handleDeleteZone removes a zone and its measurements
// DELETE /api/zones/:id
func (s *Server) handleDeleteZone(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.deps.Store.DeleteZone(ctx, id); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "zone deleted"})
}

// handleRegenerate queues a backfill for an existing zone
// POST /api/zones/:id/regenerate?days=180&interval_hours=12&force=false
func (s *Server) handleRegenerate(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}
	days, ok := intQuery(c, "days", s.deps.Backfill.Days, 1, 365)
	if !ok {
		return
	}
	interval, ok := intQuery(c, "interval_hours", s.deps.Backfill.IntervalHours, 1, 24)
	if !ok {
		return
	}
	force := false
	if raw := c.Query("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid force"})
			return
		}
		force = v
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.deps.Store.GetZone(ctx, id); err != nil {
		storeError(c, err)
		return
	}

	req := generation.Request{Days: days, IntervalHours: interval, Force: force}
	jobID, err := s.deps.Dispatcher.Dispatch(id, req)
	if errors.Is(err, dispatch.ErrQueueFull) || errors.Is(err, dispatch.ErrDispatcherStopped) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":         jobID,
		"zone_id":        id,
		"days":           days,
		"interval_hours": interval,
		"force":          force,
	})
}

// handleBackfillStatus returns the tracked backfill state of a zone
// GET /api/zones/:id/backfill
func (s *Server) handleBackfillStatus(c *gin.Context) {
	id, ok := zoneID(c)
	if !ok {
		return
	}
	if s.deps.Status == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "backfill tracking is disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	st, err := s.deps.Status.Get(ctx, id)
	if errors.Is(err, jobstate.ErrNotTracked) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}
