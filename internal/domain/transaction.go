// Package domain encodes the payment transaction entity and its state machine.
package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayType identifies a supported payment gateway provider.
type GatewayType string

const (
	GatewayRazorpay  GatewayType = "RAZORPAY"
	GatewayStripe    GatewayType = "STRIPE"
	GatewayPayU      GatewayType = "PAYU"
	GatewayBharatPay GatewayType = "BHARATPAY"
)

// KnownGatewayTypes lists every provider this platform can route payments through.
var KnownGatewayTypes = []GatewayType{GatewayRazorpay, GatewayStripe, GatewayPayU, GatewayBharatPay}

func ParseGatewayType(s string) (GatewayType, bool) {
	gt := GatewayType(s)
	return gt, slices.Contains(KnownGatewayTypes, gt)
}

// TransactionStatus represents the current state of a transaction in its lifecycle
type TransactionStatus string

const (
	StatusInitiated         TransactionStatus = "INITIATED"
	StatusPending           TransactionStatus = "PENDING"
	StatusAuthorized        TransactionStatus = "AUTHORIZED"
	StatusCaptured          TransactionStatus = "CAPTURED"
	StatusFailed            TransactionStatus = "FAILED"
	StatusCancelled         TransactionStatus = "CANCELLED"
	StatusRefunded          TransactionStatus = "REFUNDED"
	StatusPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	StatusExpired           TransactionStatus = "EXPIRED"
)

// Transaction is one payment attempt against an order. It is the system of
// record for money movement and is never deleted.
type Transaction struct {
	ID       string
	TenantID string
	OutletID string
	OrderID  string

	// PaymentID links to the POS-side payment record this transaction settles.
	PaymentID *string

	GatewayType      GatewayType
	GatewayOrderID   *string
	GatewayPaymentID *string
	GatewaySignature *string

	Amount   decimal.Decimal
	Currency string
	Status   TransactionStatus

	PaymentMethod   *string
	FailureReason   *string
	GatewayResponse *string
	IdempotencyKey  *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func NewTransaction(
	id string,
	tenantID string,
	outletID string,
	orderID string,
	paymentID *string,
	gatewayType GatewayType,
	amount decimal.Decimal,
	currency string,
	idempotencyKey string,
) (*Transaction, error) {
	if id == "" {
		return nil, NewMissingFieldError("transaction ID")
	}
	if tenantID == "" {
		return nil, NewMissingFieldError("tenant ID")
	}
	if orderID == "" {
		return nil, NewMissingFieldError("order ID")
	}
	if !amount.IsPositive() {
		return nil, &DomainError{Code: ErrCodeInvalidAmount, Message: "amount must be positive", Err: ErrInvalidAmount}
	}

	now := time.Now()
	tx := &Transaction{
		ID:          id,
		TenantID:    tenantID,
		OutletID:    outletID,
		OrderID:     orderID,
		PaymentID:   paymentID,
		GatewayType: gatewayType,
		Amount:      amount.Round(2),
		Currency:    currency,
		Status:      StatusInitiated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if idempotencyKey != "" {
		tx.IdempotencyKey = &idempotencyKey
	}
	return tx, nil
}

// IsTerminal reports whether the transaction can never change state again.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case StatusFailed, StatusRefunded, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

func (t *Transaction) transition(target TransactionStatus) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.Status = target
	t.UpdatedAt = time.Now()
	return nil
}

func (t *Transaction) canTransitionTo(target TransactionStatus) error {
	switch t.Status {
	case StatusInitiated:
		return t.allow(target, StatusPending, StatusFailed)
	case StatusPending:
		return t.allow(target, StatusAuthorized, StatusCaptured, StatusFailed, StatusCancelled, StatusExpired)
	case StatusAuthorized:
		return t.allow(target, StatusCaptured, StatusFailed)
	case StatusCaptured:
		return t.allow(target, StatusPartiallyRefunded, StatusRefunded)
	case StatusPartiallyRefunded:
		return t.allow(target, StatusPartiallyRefunded, StatusRefunded)
	}
	return NewInvalidTransitionError(t.Status, target)
}

func (t *Transaction) allow(target TransactionStatus, allowed ...TransactionStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(t.Status, target)
}

// MarkPending records the gateway-side order and opens the transaction for payment.
func (t *Transaction) MarkPending(gatewayOrderID string, rawResponse string) error {
	if err := t.transition(StatusPending); err != nil {
		return err
	}
	t.GatewayOrderID = &gatewayOrderID
	if rawResponse != "" {
		t.GatewayResponse = &rawResponse
	}
	return nil
}

// MarkAuthorized records a charge that is reserved but not yet captured.
func (t *Transaction) MarkAuthorized(gatewayPaymentID string, rawResponse string) error {
	if err := t.transition(StatusAuthorized); err != nil {
		return err
	}
	t.GatewayPaymentID = &gatewayPaymentID
	if rawResponse != "" {
		t.GatewayResponse = &rawResponse
	}
	return nil
}

// Capture finalizes the charge. CompletedAt is set exactly once, on the first
// transition into CAPTURED.
func (t *Transaction) Capture(gatewayPaymentID, paymentMethod, rawResponse string) error {
	if err := t.transition(StatusCaptured); err != nil {
		return err
	}
	t.GatewayPaymentID = &gatewayPaymentID
	if paymentMethod != "" {
		t.PaymentMethod = &paymentMethod
	}
	if rawResponse != "" {
		t.GatewayResponse = &rawResponse
	}
	if t.CompletedAt == nil {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// Fail records a definitive failure with the reason reported by the gateway.
func (t *Transaction) Fail(reason, rawResponse string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	if reason != "" {
		t.FailureReason = &reason
	}
	if rawResponse != "" {
		t.GatewayResponse = &rawResponse
	}
	return nil
}

func (t *Transaction) Cancel() error {
	return t.transition(StatusCancelled)
}

func (t *Transaction) MarkExpired() error {
	return t.transition(StatusExpired)
}

// ApplyRefundTotal moves the transaction to REFUNDED or PARTIALLY_REFUNDED
// based on the recomputed sum of completed and in-flight refunds.
func (t *Transaction) ApplyRefundTotal(totalRefunded decimal.Decimal) error {
	if totalRefunded.GreaterThan(t.Amount) {
		return &DomainError{
			Code:    ErrCodeRefundExceedsAmount,
			Message: "refunded total exceeds transaction amount",
			Err:     ErrRefundExceedsAmount,
		}
	}
	if totalRefunded.GreaterThanOrEqual(t.Amount) {
		return t.transition(StatusRefunded)
	}
	return t.transition(StatusPartiallyRefunded)
}

// RecordSignature keeps the last verification signature seen, for audit.
func (t *Transaction) RecordSignature(signature string) {
	if signature != "" {
		t.GatewaySignature = &signature
	}
}
