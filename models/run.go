package models

import "time"

// RunStatus is the outcome of one pipeline run
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunReport summarizes a single pipeline attempt
type RunReport struct {
	ID              string    `bson:"_id" json:"id"`
	Attempt         int       `bson:"attempt" json:"attempt"`
	Status          RunStatus `bson:"status" json:"status"`
	Stage           string    `bson:"stage,omitempty" json:"stage,omitempty"` // failing stage
	StartedAt       time.Time `bson:"started_at" json:"started_at"`
	FinishedAt      time.Time `bson:"finished_at" json:"finished_at"`
	Fetched         int       `bson:"fetched" json:"fetched"`
	Loaded          int       `bson:"loaded" json:"loaded"`
	PriceAlerts     int       `bson:"price_alerts" json:"price_alerts"`
	MarketCapAlerts int       `bson:"market_cap_alerts" json:"market_cap_alerts"`
	MessagesSent    int       `bson:"messages_sent" json:"messages_sent"`
	Error           string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Duration returns how long the run took
func (r RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
