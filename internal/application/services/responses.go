package services

import (
	"time"

	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

// InitiatePaymentResponse is everything the client needs to run checkout.
type InitiatePaymentResponse struct {
	TransactionID  string          `json:"transactionId"`
	OrderID        string          `json:"orderId"`
	GatewayType    string          `json:"gatewayType"`
	GatewayOrderID string          `json:"gatewayOrderId,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	ClientSideData map[string]any  `json:"clientSideData,omitempty"`
	PublicKey      string          `json:"publicKey,omitempty"`
}

// PaymentLinkResponse carries the shareable link for a link-based checkout.
type PaymentLinkResponse struct {
	TransactionID  string          `json:"transactionId"`
	OrderID        string          `json:"orderId"`
	GatewayType    string          `json:"gatewayType"`
	GatewayOrderID string          `json:"gatewayOrderId,omitempty"`
	PaymentLink    string          `json:"paymentLink,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
}

// StatusNoPaymentInitiated is the polling sentinel for an order that has no
// payment attempt yet. Clients poll before checkout opens, so "nothing there"
// is an answer, not an error.
const StatusNoPaymentInitiated = "NO_PAYMENT_INITIATED"

// PaymentStatusResponse is the polling projection for an order.
type PaymentStatusResponse struct {
	OrderID          string           `json:"orderId"`
	TransactionID    string           `json:"transactionId,omitempty"`
	GatewayType      string           `json:"gatewayType,omitempty"`
	GatewayOrderID   *string          `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string          `json:"gatewayPaymentId,omitempty"`
	Status           string           `json:"status"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
}

// GatewayTransactionResponse is the external view of a ledger row. Raw gateway
// responses and signatures stay server-side.
type GatewayTransactionResponse struct {
	TransactionID    string          `json:"transactionId"`
	TenantID         string          `json:"tenantId"`
	OutletID         string          `json:"outletId,omitempty"`
	OrderID          string          `json:"orderId"`
	PaymentID        *string         `json:"paymentId,omitempty"`
	GatewayType      string          `json:"gatewayType"`
	GatewayOrderID   *string         `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID *string         `json:"gatewayPaymentId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaymentMethod    *string         `json:"paymentMethod,omitempty"`
	FailureReason    *string         `json:"failureReason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

type RefundResponse struct {
	RefundID        string          `json:"refundId"`
	TransactionID   string          `json:"transactionId"`
	GatewayRefundID *string         `json:"gatewayRefundId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	Reason          *string         `json:"reason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
}

// GatewayConfigResponse is the redacted external view of a tenant config.
// Credentials never leave the vault; only their presence is reported.
type GatewayConfigResponse struct {
	ConfigID       string    `json:"configId"`
	TenantID       string    `json:"tenantId"`
	GatewayType    string    `json:"gatewayType"`
	HasCredentials bool      `json:"hasCredentials"`
	MerchantID     *string   `json:"merchantId,omitempty"`
	IsActive       bool      `json:"isActive"`
	IsLiveMode     bool      `json:"isLiveMode"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toTransactionResponse(t *domain.Transaction) *GatewayTransactionResponse {
	return &GatewayTransactionResponse{
		TransactionID:    t.ID,
		TenantID:         t.TenantID,
		OutletID:         t.OutletID,
		OrderID:          t.OrderID,
		PaymentID:        t.PaymentID,
		GatewayType:      string(t.GatewayType),
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		PaymentMethod:    t.PaymentMethod,
		FailureReason:    t.FailureReason,
		CreatedAt:        t.CreatedAt,
		CompletedAt:      t.CompletedAt,
	}
}

func toRefundResponse(r *domain.Refund) *RefundResponse {
	return &RefundResponse{
		RefundID:        r.ID,
		TransactionID:   r.TransactionID,
		GatewayRefundID: r.GatewayRefundID,
		Amount:          r.Amount,
		Status:          string(r.Status),
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
		ProcessedAt:     r.ProcessedAt,
	}
}

func toConfigResponse(c *domain.TenantGatewayConfig) *GatewayConfigResponse {
	return &GatewayConfigResponse{
		ConfigID:       c.ID,
		TenantID:       c.TenantID,
		GatewayType:    string(c.GatewayType),
		HasCredentials: c.HasCredentials(),
		MerchantID:     c.MerchantID,
		IsActive:       c.IsActive,
		IsLiveMode:     c.IsLiveMode,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
