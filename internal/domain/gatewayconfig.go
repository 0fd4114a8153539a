package domain

import "time"

// TenantGatewayConfig stores encrypted payment gateway credentials for one
// tenant. A tenant may hold several configs but only one active per gateway
// type; reactivating one deactivates any sibling for the same type.
type TenantGatewayConfig struct {
	ID          string
	TenantID    string
	GatewayType GatewayType

	// Credentials are stored encrypted; the vault decrypts them when the
	// registry builds an adapter.
	APIKeyEncrypted        *string
	SecretKeyEncrypted     *string
	WebhookSecretEncrypted *string

	MerchantID       *string
	IsActive         bool
	IsLiveMode       bool
	AdditionalConfig *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredentials reports whether the config carries the minimum credential set
// an adapter needs to talk to the provider.
func (c *TenantGatewayConfig) HasCredentials() bool {
	return c.APIKeyEncrypted != nil && *c.APIKeyEncrypted != "" &&
		c.SecretKeyEncrypted != nil && *c.SecretKeyEncrypted != ""
}

func (c *TenantGatewayConfig) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}

func (c *TenantGatewayConfig) Activate() {
	c.IsActive = true
	c.UpdatedAt = time.Now()
}
