package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CoinTableName is the warehouse table receiving one row per coin per run.
const CoinTableName = "datos_coingecko"

// RawCoinRecord is one object of the coins/markets response, kept undecoded
// so the transform step can tell a missing field from a zero value.
type RawCoinRecord map[string]json.RawMessage

// CoinRecord is a normalized market snapshot for one coin
type CoinRecord struct {
	Name       string          `gorm:"column:nombre;type:varchar(256)" json:"name"`
	Price      decimal.Decimal `gorm:"column:precio;type:decimal(20,8)" json:"price"`
	MarketCap  int64           `gorm:"column:market_cap" json:"market_cap"`
	ObservedAt time.Time       `gorm:"column:fecha_obtencion" json:"observed_at"`
}

// TableName binds CoinRecord to the warehouse table
func (CoinRecord) TableName() string {
	return CoinTableName
}

// Thresholds holds the alerting limits. A rule fires when the value is
// strictly greater than its threshold.
type Thresholds struct {
	Price     decimal.Decimal `json:"price"`
	MarketCap int64           `json:"market_cap"`
}

// MigrateCoinModels creates the coin table. Only used for the local SQLite
// warehouse; the Redshift table is provisioned outside this service.
func MigrateCoinModels(db *gorm.DB) error {
	return db.AutoMigrate(&CoinRecord{})
}
