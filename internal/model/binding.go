package model

import "time"

// Platform identifies an advertising platform.
type Platform string

const (
	PlatformGoogleAds Platform = "google_ads"
	PlatformMetaAds   Platform = "meta_ads"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	return p == PlatformGoogleAds || p == PlatformMetaAds
}

// AccountBinding links a client to an external ad account. There is at most
// one binding per (ClientID, Platform); the storage layer enforces it with
// an upsert on that pair.
type AccountBinding struct {
	ID       string   `json:"id"`
	ClientID string   `json:"client_id"`
	Platform Platform `json:"platform"`

	// CustomerID is the sanitized (digits only) external account id.
	CustomerID string `json:"customer_id"`

	// LoginCustomerID is the managing account used to reach CustomerID,
	// when one was resolved.
	LoginCustomerID string `json:"login_customer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
