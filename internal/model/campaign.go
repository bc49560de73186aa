package model

import "time"

// Campaign status values accepted by ingestion.
const (
	CampaignEnabled = "ENABLED"
	CampaignPaused  = "PAUSED"
	CampaignRemoved = "REMOVED"
)

// Campaign is an ad campaign pushed by the ingestion endpoint.
type Campaign struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id,omitempty"`
	ClientID   string    `json:"client_id"`
	Platform   Platform  `json:"platform"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Objective  string    `json:"objective,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReportRow is one line of the daily or 30-day campaign report views.
type ReportRow struct {
	ClientID     string  `json:"client_id"`
	CustomerID   string  `json:"customer_id"`
	CampaignID   string  `json:"campaign_id"`
	CampaignName string  `json:"campaign_name"`
	Date         string  `json:"date,omitempty"`
	Spend        float64 `json:"spend"`
	Impressions  int64   `json:"impressions"`
	Clicks       int64   `json:"clicks"`
	Conversions  float64 `json:"conversions"`
	Revenue      float64 `json:"revenue"`
}
