package services

import (
	"context"
	"log/slog"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

// Ledger is the only writer of transaction and refund rows. Every state
// change runs inside a database transaction with a row-level lock on the
// transaction, so the synchronous verify path and the webhook path serialize
// instead of racing.
type Ledger struct {
	transactions application.TransactionRepository
	refunds      application.RefundRepository
	tx           application.TxRunner
	logger       *slog.Logger
}

func NewLedger(
	transactions application.TransactionRepository,
	refunds application.RefundRepository,
	tx application.TxRunner,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		transactions: transactions,
		refunds:      refunds,
		tx:           tx,
		logger:       logger,
	}
}

// Create inserts a new transaction. When the idempotency key already exists,
// the stored transaction is returned instead and the second boolean is true.
func (l *Ledger) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, bool, error) {
	if t.IdempotencyKey != nil {
		existing, err := l.transactions.FindByIdempotencyKey(ctx, *t.IdempotencyKey)
		if err == nil {
			return existing, true, nil
		}
	}

	if err := l.transactions.Create(ctx, t); err != nil {
		// A concurrent request with the same key can win the insert race;
		// the unique index turns that into a fetch.
		if t.IdempotencyKey != nil {
			if existing, findErr := l.transactions.FindByIdempotencyKey(ctx, *t.IdempotencyKey); findErr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}
	return t, false, nil
}

// MarkPending records the gateway order id once the provider accepted the order.
func (l *Ledger) MarkPending(ctx context.Context, transactionID, gatewayOrderID, rawResponse string) (*domain.Transaction, error) {
	return l.mutate(ctx, transactionID, func(t *domain.Transaction) error {
		return t.MarkPending(gatewayOrderID, rawResponse)
	})
}

// MarkFailed records a definitive failure. Terminal rows are left untouched.
func (l *Ledger) MarkFailed(ctx context.Context, transactionID, reason, rawResponse string) (*domain.Transaction, error) {
	return l.mutate(ctx, transactionID, func(t *domain.Transaction) error {
		return t.Fail(reason, rawResponse)
	})
}

// MarkCaptured finalizes a successful payment. Calling it again for a
// transaction that is already CAPTURED is a no-op, which makes the verify
// path and the webhook path safe to run in any order.
func (l *Ledger) MarkCaptured(ctx context.Context, transactionID, gatewayPaymentID, paymentMethod, rawResponse string) (*domain.Transaction, error) {
	return l.mutate(ctx, transactionID, func(t *domain.Transaction) error {
		if t.Status == domain.StatusCaptured {
			return nil
		}
		return t.Capture(gatewayPaymentID, paymentMethod, rawResponse)
	})
}

func (l *Ledger) MarkExpired(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return l.mutate(ctx, transactionID, func(t *domain.Transaction) error {
		return t.MarkExpired()
	})
}

// RecordSignature stores the client-reported signature on the row.
func (l *Ledger) RecordSignature(ctx context.Context, transactionID, signature string) error {
	_, err := l.mutate(ctx, transactionID, func(t *domain.Transaction) error {
		t.GatewaySignature = &signature
		return nil
	})
	return err
}

// RecordRefund validates the refundable balance under the row lock and
// inserts the refund in INITIATED state. The gateway has not been called yet
// when this commits.
func (l *Ledger) RecordRefund(ctx context.Context, refund *domain.Refund) error {
	return l.tx.WithTx(ctx, func(txs application.TransactionRepository, refunds application.RefundRepository) error {
		t, err := txs.FindByIDForUpdate(ctx, refund.TransactionID)
		if err != nil {
			return err
		}

		if t.Status != domain.StatusCaptured && t.Status != domain.StatusPartiallyRefunded {
			return application.NewInvalidStateError(domain.NewInvalidTransitionError(t.Status, domain.StatusRefunded))
		}

		existing, err := refunds.FindByTransactionID(ctx, refund.TransactionID)
		if err != nil {
			return err
		}
		if domain.TotalRefunded(existing).Add(refund.Amount).GreaterThan(t.Amount) {
			return application.NewRefundExceededError()
		}

		return refunds.Create(ctx, refund)
	})
}

// ApplyRefundOutcome records the gateway's answer for a refund and moves the
// transaction to REFUNDED or PARTIALLY_REFUNDED based on the recomputed sum
// of completed and in-flight refunds.
func (l *Ledger) ApplyRefundOutcome(ctx context.Context, refundID string, status domain.RefundStatus, gatewayRefundID, rawResponse string) (*domain.Refund, error) {
	var result *domain.Refund
	err := l.tx.WithTx(ctx, func(txs application.TransactionRepository, refunds application.RefundRepository) error {
		refund, err := refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}

		t, err := txs.FindByIDForUpdate(ctx, refund.TransactionID)
		if err != nil {
			return err
		}

		refund.ApplyOutcome(status, gatewayRefundID, rawResponse)
		if err := refunds.Update(ctx, refund); err != nil {
			return err
		}

		if status.CountsTowardRefundTotal() {
			all, err := refunds.FindByTransactionID(ctx, refund.TransactionID)
			if err != nil {
				return err
			}
			if err := t.ApplyRefundTotal(domain.TotalRefunded(all)); err != nil {
				return err
			}
			if err := txs.Update(ctx, t); err != nil {
				return err
			}
		}

		result = refund
		return nil
	})
	return result, err
}

// CompleteRefund settles an in-flight refund, typically on a refund webhook.
func (l *Ledger) CompleteRefund(ctx context.Context, refundID, rawResponse string) (*domain.Refund, error) {
	var result *domain.Refund
	err := l.tx.WithTx(ctx, func(txs application.TransactionRepository, refunds application.RefundRepository) error {
		refund, err := refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if refund.Status == domain.RefundCompleted {
			result = refund
			return nil
		}

		t, err := txs.FindByIDForUpdate(ctx, refund.TransactionID)
		if err != nil {
			return err
		}

		wasCounted := refund.Status.CountsTowardRefundTotal()
		refund.Complete()
		if rawResponse != "" {
			refund.GatewayResponse = &rawResponse
		}
		if err := refunds.Update(ctx, refund); err != nil {
			return err
		}

		// A PROCESSING refund already moved the transaction; only a refund
		// that newly entered the total changes its state.
		if !wasCounted {
			all, err := refunds.FindByTransactionID(ctx, refund.TransactionID)
			if err != nil {
				return err
			}
			if err := t.ApplyRefundTotal(domain.TotalRefunded(all)); err != nil {
				return err
			}
			if err := txs.Update(ctx, t); err != nil {
				return err
			}
		}

		result = refund
		return nil
	})
	return result, err
}

// mutate applies fn to the transaction under a row lock and persists the
// result. Guard violations inside fn roll everything back.
func (l *Ledger) mutate(ctx context.Context, transactionID string, fn func(t *domain.Transaction) error) (*domain.Transaction, error) {
	var result *domain.Transaction
	err := l.tx.WithTx(ctx, func(txs application.TransactionRepository, _ application.RefundRepository) error {
		t, err := txs.FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := txs.Update(ctx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	return result, err
}
