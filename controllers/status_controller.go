package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"coingecko_etl/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRunsLimit = 10
	maxRunsLimit     = 100
)

// RunHistory exposes recorded pipeline runs
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]models.RunReport, error)
}

// Pinger checks warehouse connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusController serves the read-only status endpoints
type StatusController struct {
	history    RunHistory
	warehouse  Pinger
	thresholds models.Thresholds
	logger     *zap.Logger
}

// NewStatusController creates a new status controller
func NewStatusController(history RunHistory, warehouse Pinger, thresholds models.Thresholds, logger *zap.Logger) *StatusController {
	return &StatusController{
		history:    history,
		warehouse:  warehouse,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Health is the liveness probe
// GET /health
func (sc *StatusController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready checks that the warehouse accepts connections
// GET /ready
func (sc *StatusController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := sc.warehouse.Ping(ctx); err != nil {
		sc.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"message": "Warehouse ping failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// GetLastRun returns the most recent pipeline run
// GET /api/v1/runs/last
func (sc *StatusController) GetLastRun(c *gin.Context) {
	runs, err := sc.history.Recent(c.Request.Context(), 1)
	if err != nil {
		sc.logger.Error("failed to read run history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read run history"})
		return
	}
	if len(runs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No runs recorded yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs[0]})
}

// GetRuns returns recent pipeline runs, newest first
// GET /api/v1/runs?limit=10
func (sc *StatusController) GetRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRunsLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := sc.history.Recent(c.Request.Context(), limit)
	if err != nil {
		sc.logger.Error("failed to read run history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read run history"})
		return
	}
	if runs == nil {
		runs = []models.RunReport{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  runs,
		"limit": limit,
	})
}

// GetThresholds returns the configured alert thresholds
// GET /api/v1/thresholds
func (sc *StatusController) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"price":      sc.thresholds.Price.String(),
		"market_cap": sc.thresholds.MarketCap,
	})
}
