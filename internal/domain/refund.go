package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundStatus represents the state of a refund attempt.
type RefundStatus string

const (
	RefundInitiated  RefundStatus = "INITIATED"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundCompleted  RefundStatus = "COMPLETED"
	RefundFailed     RefundStatus = "FAILED"
)

// CountsTowardRefundTotal reports whether a refund in this status reserves
// part of the transaction's refundable balance.
func (s RefundStatus) CountsTowardRefundTotal() bool {
	return s == RefundCompleted || s == RefundProcessing
}

// Refund is one refund attempt against a captured Transaction.
type Refund struct {
	ID              string
	TransactionID   string
	GatewayRefundID *string
	Amount          decimal.Decimal
	Status          RefundStatus
	Reason          *string
	GatewayResponse *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

func NewRefund(id, transactionID string, amount decimal.Decimal, reason string) (*Refund, error) {
	if id == "" {
		return nil, NewMissingFieldError("refund ID")
	}
	if transactionID == "" {
		return nil, NewMissingFieldError("transaction ID")
	}
	if !amount.IsPositive() {
		return nil, &DomainError{Code: ErrCodeInvalidAmount, Message: "refund amount must be positive", Err: ErrInvalidAmount}
	}

	r := &Refund{
		ID:            id,
		TransactionID: transactionID,
		Amount:        amount.Round(2),
		Status:        RefundInitiated,
		CreatedAt:     time.Now(),
	}
	if reason != "" {
		r.Reason = &reason
	}
	return r, nil
}

// ApplyOutcome records the gateway's answer for this refund attempt.
func (r *Refund) ApplyOutcome(status RefundStatus, gatewayRefundID, rawResponse string) {
	r.Status = status
	if gatewayRefundID != "" {
		r.GatewayRefundID = &gatewayRefundID
	}
	if rawResponse != "" {
		r.GatewayResponse = &rawResponse
	}
	if status == RefundCompleted {
		now := time.Now()
		r.ProcessedAt = &now
	}
}

// Complete moves a PROCESSING refund to COMPLETED, typically on a refund webhook.
func (r *Refund) Complete() {
	if r.Status == RefundCompleted {
		return
	}
	r.Status = RefundCompleted
	now := time.Now()
	r.ProcessedAt = &now
}

// TotalRefunded sums the amounts that count against the refundable balance.
func TotalRefunded(refunds []*Refund) decimal.Decimal {
	total := decimal.Zero
	for _, r := range refunds {
		if r.Status.CountsTowardRefundTotal() {
			total = total.Add(r.Amount)
		}
	}
	return total
}
