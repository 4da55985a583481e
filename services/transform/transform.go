package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"coingecko_etl/exception"
	"coingecko_etl/models"

	"github.com/shopspring/decimal"
)

// Provider field names read from each raw record
const (
	FieldName      = "name"
	FieldPrice     = "current_price"
	FieldMarketCap = "market_cap"
)

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Transformer reshapes raw provider records into warehouse rows
type Transformer struct {
	now func() time.Time
}

// NewTransformer creates a transformer stamping batches with the wall clock
func NewTransformer() *Transformer {
	return &Transformer{now: time.Now}
}

// WithClock replaces the clock used for the batch timestamp
func (t *Transformer) WithClock(now func() time.Time) *Transformer {
	t.now = now
	return t
}

// Transform produces one CoinRecord per raw record in input order. All rows
// share a single capture timestamp. If any record is missing a field the whole
// batch is rejected and nothing is returned.
func (t *Transformer) Transform(raw []models.RawCoinRecord) ([]models.CoinRecord, error) {
	observedAt := t.now().UTC().Truncate(time.Second)

	records := make([]models.CoinRecord, 0, len(raw))
	for i, coin := range raw {
		record, err := normalize(coin, observedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", exception.ErrSchema, i, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func normalize(coin models.RawCoinRecord, observedAt time.Time) (models.CoinRecord, error) {
	var name string
	if err := decodeField(coin, FieldName, &name); err != nil {
		return models.CoinRecord{}, err
	}

	price, err := decodeNumber(coin, FieldPrice)
	if err != nil {
		return models.CoinRecord{}, err
	}

	marketCap, err := decodeNumber(coin, FieldMarketCap)
	if err != nil {
		return models.CoinRecord{}, err
	}
	if !marketCap.IsInteger() || marketCap.Abs().GreaterThan(maxInt64) {
		return models.CoinRecord{}, fmt.Errorf("field %q (%s) is not a whole amount", FieldMarketCap, marketCap)
	}

	return models.CoinRecord{
		Name:       name,
		Price:      price,
		MarketCap:  marketCap.IntPart(),
		ObservedAt: observedAt,
	}, nil
}

// decodeField treats an absent key and an explicit null the same way
func decodeField(coin models.RawCoinRecord, field string, dst any) error {
	raw, err := presentField(coin, field)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}
	return nil
}

// decodeNumber accepts only a bare JSON number. decimal.Decimal would also
// take a quoted number, so the literal is parsed directly.
func decodeNumber(coin models.RawCoinRecord, field string) (decimal.Decimal, error) {
	raw, err := presentField(coin, field)
	if err != nil {
		return decimal.Decimal{}, err
	}
	var number json.Number
	if raw[0] == '"' || json.Unmarshal(raw, &number) != nil {
		return decimal.Decimal{}, fmt.Errorf("field %q is not a number: %s", field, raw)
	}
	value, err := decimal.NewFromString(number.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("field %q: %w", field, err)
	}
	return value, nil
}

func presentField(coin models.RawCoinRecord, field string) ([]byte, error) {
	raw, ok := coin[field]
	if !ok {
		return nil, fmt.Errorf("missing field %q", field)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("field %q is null", field)
	}
	return raw, nil
}
