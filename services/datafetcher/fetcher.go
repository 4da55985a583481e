package datafetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coingecko_etl/config"
	"coingecko_etl/exception"
	"coingecko_etl/models"

	"go.uber.org/zap"
)

const (
	marketsPath = "/coins/markets"
	// responses larger than this are not a top-N page
	maxBodyBytes = 4 << 20
)

// DataFetcher pulls the top coins by market cap from CoinGecko
type DataFetcher struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	currency   string
	perPage    int
	logger     *zap.Logger
}

// NewDataFetcher creates a new data fetcher instance
func NewDataFetcher(cfg config.CoinGeckoConfig, logger *zap.Logger) *DataFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &DataFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		currency: cfg.Currency,
		perPage:  cfg.PerPage,
		logger:   logger,
	}
}

// FetchTopCoins makes a single request for the first page of coins ordered by
// market cap. There is no retry; the scheduler retries the whole run.
func (df *DataFetcher) FetchTopCoins(ctx context.Context) ([]models.RawCoinRecord, error) {
	endpoint := df.marketsURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", exception.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if df.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", df.apiKey)
	}

	start := time.Now()
	resp, err := df.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch from CoinGecko: %w", exception.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", exception.ErrNetwork, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: CoinGecko returned status %d: %s", exception.ErrNetwork, resp.StatusCode, snippet(body))
	}

	coins, err := decodeMarkets(body)
	if err != nil {
		return nil, err
	}

	df.logger.Info("fetched coin markets",
		zap.Int("coins", len(coins)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return coins, nil
}

func (df *DataFetcher) marketsURL() string {
	query := url.Values{}
	query.Set("vs_currency", df.currency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(df.perPage))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	return df.baseURL + marketsPath + "?" + query.Encode()
}

// decodeMarkets accepts only a JSON array whose elements are all objects
func decodeMarkets(body []byte) ([]models.RawCoinRecord, error) {
	var coins []models.RawCoinRecord
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("%w: expected a list of objects: %w", exception.ErrResponseFormat, err)
	}
	if coins == nil {
		return nil, fmt.Errorf("%w: expected a list of objects, got %s", exception.ErrResponseFormat, snippet(body))
	}
	for i, coin := range coins {
		if coin == nil {
			return nil, fmt.Errorf("%w: element %d is null", exception.ErrResponseFormat, i)
		}
	}
	return coins, nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
