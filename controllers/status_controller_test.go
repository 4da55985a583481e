package controllers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"coingecko_etl/controllers"
	"coingecko_etl/middleware"
	"coingecko_etl/models"
	"coingecko_etl/routes"
	"coingecko_etl/services/runlog"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newRouter(t *testing.T, history controllers.RunHistory, pinger controllers.Pinger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	thresholds := models.Thresholds{Price: decimal.NewFromInt(50000), MarketCap: 1_000_000_000}
	status := controllers.NewStatusController(history, pinger, thresholds, zap.NewNop())

	router := gin.New()
	router.Use(middleware.RequestLogger(zap.NewNop()))
	routes.SetupRoutes(router, status)
	return router
}

func get(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthAndReady(t *testing.T) {
	router := newRouter(t, runlog.NewMemoryRecorder(5), stubPinger{})

	w, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, body = get(t, router, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyReportsWarehouseOutage(t *testing.T) {
	router := newRouter(t, runlog.NewMemoryRecorder(5), stubPinger{err: errors.New("connection refused")})

	w, body := get(t, router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])
}

func TestLastRun(t *testing.T) {
	history := runlog.NewMemoryRecorder(5)
	router := newRouter(t, history, stubPinger{})

	w, _ := get(t, router, "/api/v1/runs/last")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, history.Record(t.Context(), models.RunReport{ID: "a", Status: models.RunFailed, Stage: "fetch"}))
	require.NoError(t, history.Record(t.Context(), models.RunReport{ID: "b", Status: models.RunSucceeded, MessagesSent: 3}))

	w, body := get(t, router, "/api/v1/runs/last")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "b", data["id"])
	assert.Equal(t, "succeeded", data["status"])
	assert.EqualValues(t, 3, data["messages_sent"])
}

func TestRunsLimit(t *testing.T) {
	history := runlog.NewMemoryRecorder(5)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, history.Record(t.Context(), models.RunReport{ID: id}))
	}
	router := newRouter(t, history, stubPinger{})

	w, body := get(t, router, "/api/v1/runs?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "c", data[0].(map[string]any)["id"])

	w, _ = get(t, router, "/api/v1/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = get(t, router, "/api/v1/runs?limit=1000")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 100, body["limit"])
}

func TestRunsEmptyHistory(t *testing.T) {
	router := newRouter(t, runlog.NewMemoryRecorder(5), stubPinger{})

	w, body := get(t, router, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["data"])
}

func TestThresholds(t *testing.T) {
	router := newRouter(t, runlog.NewMemoryRecorder(5), stubPinger{})

	w, body := get(t, router, "/api/v1/thresholds")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "50000", body["price"])
	assert.EqualValues(t, 1_000_000_000, body["market_cap"])
}

func TestNoTriggerEndpoint(t *testing.T) {
	router := newRouter(t, runlog.NewMemoryRecorder(5), stubPinger{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
