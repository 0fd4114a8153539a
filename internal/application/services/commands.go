package services

import (
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

// InitiatePaymentCommand opens a payment attempt for an order. GatewayType is
// optional; empty means route through the tenant's primary gateway.
type InitiatePaymentCommand struct {
	TenantID       string
	OutletID       string
	OrderID        string
	PaymentID      string
	GatewayType    string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// CreatePaymentLinkCommand requests a shareable link instead of client-side
// checkout data.
type CreatePaymentLinkCommand struct {
	TenantID        string
	OutletID        string
	OrderID         string
	GatewayType     string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	CustomerName    string
	CustomerContact string
	CallbackURL     string
	IdempotencyKey  string
}

// VerifyPaymentCommand carries the gateway callback fields the client received
// after checkout. TenantID is the caller's tenant; it is empty only on the
// public path, where the transaction is located by gateway order id instead.
type VerifyPaymentCommand struct {
	TenantID         string
	TransactionID    string
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	AdditionalData   map[string]string
}

type RefundCommand struct {
	TenantID      string
	TransactionID string
	Amount        decimal.Decimal
	Reason        string
}

// SaveConfigCommand creates or replaces a tenant's gateway configuration.
// Blank credential fields on an update keep the stored values.
type SaveConfigCommand struct {
	ConfigID         string
	TenantID         string
	GatewayType      domain.GatewayType
	APIKey           string
	SecretKey        string
	WebhookSecret    string
	MerchantID       string
	IsLiveMode       bool
	AdditionalConfig string
}
