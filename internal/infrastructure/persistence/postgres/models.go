package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionModel mirrors the gateway_transactions table.
type TransactionModel struct {
	ID               string
	TenantID         string
	OutletID         string
	OrderID          string
	PaymentID        *string
	GatewayType      string
	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string
	Amount           decimal.Decimal
	Currency         string
	Status           string
	PaymentMethod    *string
	FailureReason    *string
	GatewayResponse  *string
	IdempotencyKey   *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// RefundModel mirrors the gateway_refunds table.
type RefundModel struct {
	ID              string
	TransactionID   string
	GatewayRefundID *string
	Amount          decimal.Decimal
	Status          string
	Reason          *string
	GatewayResponse *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// WebhookEventModel mirrors the gateway_webhook_events table.
type WebhookEventModel struct {
	ID              string
	GatewayType     string
	EventType       *string
	GatewayEventID  *string
	Payload         string
	Signature       *string
	IsVerified      bool
	IsProcessed     bool
	ProcessingError *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// GatewayConfigModel mirrors the tenant_gateway_configs table.
type GatewayConfigModel struct {
	ID                     string
	TenantID               string
	GatewayType            string
	APIKeyEncrypted        *string
	SecretKeyEncrypted     *string
	WebhookSecretEncrypted *string
	MerchantID             *string
	IsActive               bool
	IsLiveMode             bool
	AdditionalConfig       *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
