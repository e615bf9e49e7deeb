package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /api/prices/current
func (s *Server) handleCurrentPrice(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	price, err := s.deps.Prices.Current(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"price":     price.Price,
		"timestamp": price.Timestamp,
		"source":    price.Source,
	})
}

// GET /api/prices/history?limit=30
func (s *Server) handlePriceHistory(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 30, 1, 1000)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	prices, err := s.deps.Prices.History(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prices)
}

// POST /api/prices/generate-mock
func (s *Server) handleGenerateMockPrice(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	price, err := s.deps.Prices.GenerateMock(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Mock price generated",
		"price":     price.Price,
		"timestamp": price.Timestamp,
	})
}
