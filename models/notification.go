package models

// NotificationKind identifies which rule produced a message
type NotificationKind string

const (
	NotificationPriceAlert     NotificationKind = "price_alert"
	NotificationMarketCapAlert NotificationKind = "market_cap_alert"
	NotificationLoadSummary    NotificationKind = "load_summary"
)

// NotificationMessage is a plain-text e-mail produced by the notifier
type NotificationMessage struct {
	Kind    NotificationKind `json:"kind"`
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
}
