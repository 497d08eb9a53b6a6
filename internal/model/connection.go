package model

import "time"

// Provider identifies an external account connection.
type Provider string

const (
	ProviderHubSpot   Provider = "hubspot"
	ProviderAnalytics Provider = "google_analytics"
)

// Connection is a stored credential for a connected external account. One
// row exists per provider. AccessToken/ExpiresAt are rewritten on refresh so
// concurrent report requests never each force a redundant refresh.
type Connection struct {
	ID           string    `json:"id"`
	Provider     Provider  `json:"provider"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	// ExternalID is the provider-side account id: the CRM portal id, or the
	// analytics property id.
	ExternalID string    `json:"external_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Expired reports whether the access token is expired (or expires within
// the skew) at the given instant.
func (c Connection) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}
