package notifier

import (
	"context"
	"fmt"
	"time"

	"coingecko_etl/exception"
	"coingecko_etl/models"

	"go.uber.org/zap"
)

// Result counts what a notify step produced
type Result struct {
	PriceAlerts     int
	MarketCapAlerts int
	Sent            int
}

// Notifier evaluates threshold rules for a loaded batch and mails the results
type Notifier struct {
	sender     Sender
	thresholds models.Thresholds
	logger     *zap.Logger
}

// NewNotifier creates a notifier for the given thresholds
func NewNotifier(sender Sender, thresholds models.Thresholds, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Thresholds returns the limits this notifier evaluates against
func (n *Notifier) Thresholds() models.Thresholds {
	return n.thresholds
}

// Notify evaluates every record and dispatches the resulting messages
func (n *Notifier) Notify(ctx context.Context, records []models.CoinRecord, evaluatedAt time.Time) (Result, error) {
	messages := Evaluate(records, n.thresholds, evaluatedAt)

	var result Result
	for _, msg := range messages {
		switch msg.Kind {
		case models.NotificationPriceAlert:
			result.PriceAlerts++
		case models.NotificationMarketCapAlert:
			result.MarketCapAlerts++
		}
	}

	sent, err := n.Dispatch(ctx, messages)
	result.Sent = sent
	if err != nil {
		return result, err
	}

	n.logger.Info("notifications dispatched",
		zap.Int("price_alerts", result.PriceAlerts),
		zap.Int("market_cap_alerts", result.MarketCapAlerts),
		zap.Int("sent", result.Sent),
	)
	return result, nil
}

// Dispatch sends messages in order, one attempt each, and stops at the first
// failure. It returns how many messages were delivered.
func (n *Notifier) Dispatch(ctx context.Context, messages []models.NotificationMessage) (int, error) {
	for i, msg := range messages {
		if err := n.sender.Send(ctx, msg); err != nil {
			return i, fmt.Errorf("%w: message %d of %d (%s): %w", exception.ErrDelivery, i+1, len(messages), msg.Kind, err)
		}
	}
	return len(messages), nil
}
