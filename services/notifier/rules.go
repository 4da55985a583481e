package notifier

import (
	"fmt"
	"time"

	"coingecko_etl/models"
)

// TimestampLayout formats evaluation times in message bodies
const TimestampLayout = "2006-01-02 15:04:05"

// Evaluate checks both threshold rules against every record and returns the
// alerts in record order followed by exactly one load summary. A record can
// fire neither, either or both rules; comparisons are strictly greater than.
func Evaluate(records []models.CoinRecord, thresholds models.Thresholds, evaluatedAt time.Time) []models.NotificationMessage {
	at := evaluatedAt.Format(TimestampLayout)

	messages := make([]models.NotificationMessage, 0, 2*len(records)+1)
	for _, record := range records {
		if PriceRule(record, thresholds) {
			messages = append(messages, models.NotificationMessage{
				Kind:    models.NotificationPriceAlert,
				Subject: fmt.Sprintf("Alert - high price for %s", record.Name),
				Body: fmt.Sprintf("The price of %s has exceeded the threshold of %s. Current price: %s. Date and time: %s",
					record.Name, thresholds.Price, record.Price, at),
			})
		}

		if MarketCapRule(record, thresholds) {
			messages = append(messages, models.NotificationMessage{
				Kind:    models.NotificationMarketCapAlert,
				Subject: fmt.Sprintf("Alert - high market cap for %s", record.Name),
				Body: fmt.Sprintf("The market cap of %s has exceeded the threshold of %d. Current market cap: %d. Date and time: %s",
					record.Name, thresholds.MarketCap, record.MarketCap, at),
			})
		}
	}

	messages = append(messages, models.NotificationMessage{
		Kind:    models.NotificationLoadSummary,
		Subject: "Data loaded into warehouse",
		Body: fmt.Sprintf("%d rows were inserted into %s successfully. Date and time: %s",
			len(records), models.CoinTableName, at),
	})

	return messages
}

// PriceRule fires when the price is above the price threshold
func PriceRule(record models.CoinRecord, thresholds models.Thresholds) bool {
	return record.Price.GreaterThan(thresholds.Price)
}

// MarketCapRule fires when the market cap is above the market cap threshold
func MarketCapRule(record models.CoinRecord, thresholds models.Thresholds) bool {
	return record.MarketCap > thresholds.MarketCap
}
