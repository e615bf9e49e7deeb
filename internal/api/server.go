// Package api serves the zone, measurement and price REST endpoints
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smukkama/carbon-monitor/internal/database"
	"github.com/smukkama/carbon-monitor/internal/generation"
	"github.com/smukkama/carbon-monitor/internal/jobstate"
	"github.com/smukkama/carbon-monitor/internal/metrics"
	"github.com/smukkama/carbon-monitor/pkg/config"
)

// Store is the persistence the handlers read and write
type Store interface {
	CreateZone(ctx context.Context, z *database.Zone) error
	GetZone(ctx context.Context, id int64) (*database.Zone, error)
	ListZones(ctx context.Context, skip, limit int) ([]database.Zone, error)
	UpdateZone(ctx context.Context, z *database.Zone) error
	DeleteZone(ctx context.Context, id int64) error
	ZoneStats(ctx context.Context, zoneIDs []int64) (map[int64]*database.ZoneStats, error)
	ListMeasurements(ctx context.Context, zoneID int64, skip, limit int) ([]database.Measurement, error)
	RecentMeasurements(ctx context.Context, zoneID int64, limit int) ([]database.Measurement, error)
	ListDailySummaries(ctx context.Context, zoneID int64, since time.Time) ([]database.DailySummary, error)
}

// Dispatcher queues background backfills
type Dispatcher interface {
	Dispatch(zoneID int64, req generation.Request) (string, error)
}

// StatusReader reads tracked backfill states
type StatusReader interface {
	Get(ctx context.Context, zoneID int64) (*jobstate.Status, error)
}

// Prices serves the carbon price series
type Prices interface {
	Current(ctx context.Context) (*database.CarbonPrice, error)
	History(ctx context.Context, limit int) ([]database.CarbonPrice, error)
	GenerateMock(ctx context.Context) (*database.CarbonPrice, error)
}

// Deps are the collaborators of the server. Status and Metrics may be nil.
type Deps struct {
	Store      Store
	Dispatcher Dispatcher
	Prices     Prices
	Status     StatusReader
	Metrics    *metrics.Metrics
	// Backfill is the request dispatched for a newly created zone
	Backfill generation.Request
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg    config.HTTPConfig
	deps   Deps
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.HTTPConfig, deps Deps) *Server {
	if deps.Backfill.Days <= 0 || deps.Backfill.IntervalHours <= 0 {
		deps.Backfill = generation.DefaultRequest
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, deps: deps, engine: engine}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	if s.cfg.BearerToken != "" {
		api.Use(bearerAuthMiddleware(s.cfg.BearerToken))
	}

	zones := api.Group("/zones")
	{
		zones.GET("", s.handleListZones)
		zones.POST("", s.handleCreateZone)
		zones.GET("/:id", s.handleGetZone)
		zones.PUT("/:id", s.handleUpdateZone)
		zones.DELETE("/:id", s.handleDeleteZone)
		zones.POST("/:id/regenerate", s.handleRegenerate)
		zones.GET("/:id/backfill", s.handleBackfillStatus)
	}

	measurements := api.Group("/measurements/zone/:id")
	{
		measurements.GET("", s.handleListMeasurements)
		measurements.GET("/chart", s.handleChart)
		measurements.GET("/stats", s.handleStats)
		measurements.GET("/daily", s.handleDaily)
	}

	prices := api.Group("/prices")
	{
		prices.GET("/current", s.handleCurrentPrice)
		prices.GET("/history", s.handlePriceHistory)
		prices.POST("/generate-mock", s.handleGenerateMockPrice)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// zoneID parses the :id path parameter, writing a 400 when it is invalid
func zoneID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
		return 0, false
	}
	return id, true
}

// intQuery reads an integer query parameter within [min, max]
func intQuery(c *gin.Context, name string, def, min, max int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

// storeError maps a store error to a response
func storeError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrZoneNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "zone not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
