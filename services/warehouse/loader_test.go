package warehouse

import (
	"path/filepath"
	"testing"
	"time"

	"coingecko_etl/exception"
	"coingecko_etl/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var quietGorm = &gorm.Config{Logger: logger.Discard}

func newSQLiteLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	loader := NewLoader(func() gorm.Dialector { return sqlite.Open(path) }, quietGorm, zap.NewNop())
	return loader, path
}

func openInspector(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), quietGorm)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func sampleBatch() []models.CoinRecord {
	observedAt := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	return []models.CoinRecord{
		{Name: "Bitcoin", Price: decimal.NewFromInt(62000), MarketCap: 1_200_000_000_000, ObservedAt: observedAt},
		{Name: "Ethereum", Price: decimal.RequireFromString("3100.25"), MarketCap: 372_000_000_000, ObservedAt: observedAt},
		{Name: "O'Reilly Coin'); DROP TABLE datos_coingecko; --", Price: decimal.NewFromInt(1), MarketCap: 10, ObservedAt: observedAt},
	}
}

func TestLoadInsertsEveryRow(t *testing.T) {
	loader, path := newSQLiteLoader(t)
	require.NoError(t, loader.EnsureTable(t.Context()))

	batch := sampleBatch()
	n, err := loader.Load(t.Context(), batch)
	require.NoError(t, err)
	assert.Equal(t, len(batch), n)

	var rows []models.CoinRecord
	require.NoError(t, openInspector(t, path).Order("rowid").Find(&rows).Error)
	require.Len(t, rows, len(batch))
	for i, row := range rows {
		assert.Equal(t, batch[i].Name, row.Name, "values are bound, not interpolated")
		assert.True(t, batch[i].Price.Equal(row.Price))
		assert.Equal(t, batch[i].MarketCap, row.MarketCap)
		assert.True(t, batch[i].ObservedAt.Equal(row.ObservedAt))
	}
}

func TestLoadTwiceDuplicatesRows(t *testing.T) {
	loader, path := newSQLiteLoader(t)
	require.NoError(t, loader.EnsureTable(t.Context()))

	batch := sampleBatch()
	_, err := loader.Load(t.Context(), batch)
	require.NoError(t, err)
	_, err = loader.Load(t.Context(), batch)
	require.NoError(t, err)

	// no dedup key: a repeated batch is stored again
	var count int64
	require.NoError(t, openInspector(t, path).Model(&models.CoinRecord{}).Count(&count).Error)
	assert.Equal(t, int64(2*len(batch)), count)
}

func TestLoadRollsBackWholeBatchOnRowFailure(t *testing.T) {
	loader, path := newSQLiteLoader(t)
	inspector := openInspector(t, path)
	require.NoError(t, inspector.Exec(`CREATE TABLE datos_coingecko (
		nombre TEXT NOT NULL CHECK (nombre <> ''),
		precio NUMERIC,
		market_cap INTEGER,
		fecha_obtencion DATETIME
	)`).Error)

	batch := sampleBatch()
	batch[1].Name = ""

	n, err := loader.Load(t.Context(), batch)
	require.ErrorIs(t, err, exception.ErrWrite)
	assert.Contains(t, err.Error(), "row 1")
	assert.Zero(t, n)

	var count int64
	require.NoError(t, inspector.Model(&models.CoinRecord{}).Count(&count).Error)
	assert.Zero(t, count, "first row must not survive the failed batch")
}

func TestLoadMissingTableIsWriteError(t *testing.T) {
	loader, _ := newSQLiteLoader(t)

	_, err := loader.Load(t.Context(), sampleBatch())
	require.ErrorIs(t, err, exception.ErrWrite)
}

func TestLoadUnreachableWarehouseIsConnectionError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "warehouse.db")
	loader := NewLoader(func() gorm.Dialector { return sqlite.Open(path) }, quietGorm, zap.NewNop())

	_, err := loader.Load(t.Context(), sampleBatch())
	require.ErrorIs(t, err, exception.ErrConnection)

	require.ErrorIs(t, loader.Ping(t.Context()), exception.ErrConnection)
}

func TestLoadEmptyBatch(t *testing.T) {
	loader, _ := newSQLiteLoader(t)
	require.NoError(t, loader.EnsureTable(t.Context()))

	n, err := loader.Load(t.Context(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPing(t *testing.T) {
	loader, _ := newSQLiteLoader(t)
	require.NoError(t, loader.Ping(t.Context()))
}
