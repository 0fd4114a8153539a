// Package application defines the use-case layer: the ports the orchestrator
// depends on and the error taxonomy surfaced to callers.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

// Not-found sentinels returned by repositories.
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRefundNotFound      = errors.New("refund not found")
	ErrConfigNotFound      = errors.New("gateway config not found")
	ErrWebhookNotFound     = errors.New("webhook event not found")
)

// GatewayCredentials are the decrypted credentials an adapter is initialized
// with. Never logged and never persisted in plain text.
type GatewayCredentials struct {
	GatewayType      domain.GatewayType
	APIKey           string
	SecretKey        string
	WebhookSecret    string
	MerchantID       string
	IsLiveMode       bool
	AdditionalConfig string
}

// OrderRequest asks the provider to open a payable order.
type OrderRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Notes    map[string]string
}

// PaymentLinkRequest asks the provider for a shareable payment link.
type PaymentLinkRequest struct {
	OrderID         string
	Amount          decimal.Decimal
	Currency        string
	Description     string
	CustomerName    string
	CustomerContact string
	CallbackURL     string
}

// OrderResult reports order or payment-link creation. Expected business
// failures come back with Success=false; only transport-level problems are
// returned as errors by the adapter.
type OrderResult struct {
	Success        bool
	GatewayOrderID string
	ClientData     map[string]any
	ErrorMessage   string
	RawResponse    string
}

// VerifyRequest carries the client-side callback fields to check.
type VerifyRequest struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	AdditionalData   map[string]string
}

// SignatureMismatch marks a client-side proof that failed to check out.
// Callers must not fail the transaction on it: the payment itself may be
// fine, only the caller's claim is bad.
type VerifyResult struct {
	Success           bool
	Status            domain.TransactionStatus
	GatewayPaymentID  string
	PaymentMethod     string
	SignatureMismatch bool
	ErrorMessage      string
	RawResponse       string
}

type RefundResult struct {
	Success         bool
	Status          domain.RefundStatus
	GatewayRefundID string
	ErrorMessage    string
	RawResponse     string
}

// ParsedWebhook is the provider-neutral view of an inbound callback. Parsing
// has no side effects.
type ParsedWebhook struct {
	EventType        string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewayRefundID  string
	Status           string
	PaymentMethod    string
	RawData          string
}

// Gateway is the uniform contract every provider adapter implements.
type Gateway interface {
	Type() domain.GatewayType
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*OrderResult, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*RefundResult, error)
	ParseWebhook(payload []byte, signature string) (*ParsedWebhook, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	PublicKey() string
}

// GatewayRegistry resolves a tenant to an initialized, credential-bound
// adapter. Implementations cache instances and invalidate on credential
// change.
type GatewayRegistry interface {
	Gateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (Gateway, error)
	PrimaryGateway(ctx context.Context, tenantID string) (Gateway, error)
	GatewayForConfig(config *domain.TenantGatewayConfig) (Gateway, error)
	Invalidate(tenantID string, gatewayType domain.GatewayType)
	InvalidateTenant(tenantID string)
}

// TransactionRepository persists the payment transaction ledger rows.
// FindByIDForUpdate must take a row-level lock when called inside WithTx so
// the synchronous verify path and the webhook path serialize on the row.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	Update(ctx context.Context, tx *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*domain.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	FindByOutletID(ctx context.Context, outletID string, limit int) ([]*domain.Transaction, error)
	FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error)
}

// TxRunner executes fn inside a single database transaction. The repositories
// handed to fn share that transaction, so a row locked via FindByIDForUpdate
// stays locked until fn returns.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(txs TransactionRepository, refunds RefundRepository) error) error
}

type RefundRepository interface {
	Create(ctx context.Context, refund *domain.Refund) error
	Update(ctx context.Context, refund *domain.Refund) error
	FindByID(ctx context.Context, id string) (*domain.Refund, error)
	FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error)
	FindByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*domain.Refund, error)
}

type WebhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
	Update(ctx context.Context, event *domain.WebhookEvent) error
	FindByID(ctx context.Context, id string) (*domain.WebhookEvent, error)
	FindUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookEvent, error)
}

type ConfigRepository interface {
	Create(ctx context.Context, config *domain.TenantGatewayConfig) error
	Update(ctx context.Context, config *domain.TenantGatewayConfig) error
	FindByID(ctx context.Context, id string) (*domain.TenantGatewayConfig, error)
	FindActiveByTenantAndGateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (*domain.TenantGatewayConfig, error)
	// FindPrimaryActiveByTenant returns the tenant's oldest active config.
	FindPrimaryActiveByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayConfig, error)
	FindAllByTenant(ctx context.Context, tenantID string) ([]*domain.TenantGatewayConfig, error)
	FindActiveByGatewayType(ctx context.Context, gatewayType domain.GatewayType) ([]*domain.TenantGatewayConfig, error)
}
