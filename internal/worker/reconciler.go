// Package worker runs the background loops: reconciling stuck transactions
// against their gateways and replaying webhook events whose processing failed.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/domain"
)

// Transactions left PENDING this long are considered abandoned checkouts.
const pendingExpiry = 24 * time.Hour

type Reconciler struct {
	transactions application.TransactionRepository
	events       application.WebhookEventRepository
	registry     application.GatewayRegistry
	ledger       *services.Ledger
	webhooks     *services.WebhookService
	interval     time.Duration
	batchSize    int
	pendingAge   time.Duration
	logger       *slog.Logger
}

func NewReconciler(
	transactions application.TransactionRepository,
	events application.WebhookEventRepository,
	registry application.GatewayRegistry,
	ledger *services.Ledger,
	webhooks *services.WebhookService,
	interval time.Duration,
	batchSize int,
	pendingAge time.Duration,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		events:       events,
		registry:     registry,
		ledger:       ledger,
		webhooks:     webhooks,
		interval:     interval,
		batchSize:    batchSize,
		pendingAge:   pendingAge,
		logger:       logger,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval,
		"batch_size", r.batchSize,
		"pending_age", r.pendingAge,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) {
	r.reconcileStuckTransactions(ctx)
	r.replayWebhookEvents(ctx)
}

// reconcileStuckTransactions sweeps PENDING rows a client never verified,
// usually because the shopper closed the browser or the verify call timed
// out, and asks the gateway what actually happened.
func (r *Reconciler) reconcileStuckTransactions(ctx context.Context) {
	pending, err := r.transactions.FindPendingOlderThan(ctx, r.pendingAge, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch pending transactions", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	r.logger.Info("reconciling stuck transactions", "count", len(pending))

	for _, t := range pending {
		if err := r.reconcile(ctx, t); err != nil {
			r.logger.Error("reconciliation failed",
				"transaction_id", t.ID,
				"error", err,
			)
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, t *domain.Transaction) error {
	gw, err := r.registry.Gateway(ctx, t.TenantID, t.GatewayType)
	if err != nil {
		return err
	}

	req := application.VerifyRequest{}
	if t.GatewayOrderID != nil {
		req.GatewayOrderID = *t.GatewayOrderID
	}
	if t.GatewayPaymentID != nil {
		req.GatewayPaymentID = *t.GatewayPaymentID
	}

	result, err := gw.VerifyPayment(ctx, req)
	if err != nil {
		// Gateway unreachable; the next sweep retries.
		return err
	}

	if result.Success {
		_, err := r.ledger.MarkCaptured(ctx, t.ID, result.GatewayPaymentID, result.PaymentMethod, result.RawResponse)
		if err == nil {
			r.logger.Info("reconciled transaction to captured",
				"transaction_id", t.ID,
				"gateway_payment_id", result.GatewayPaymentID,
			)
		}
		return err
	}

	// Razorpay and PayU check a client-supplied proof the sweep does not
	// have, so a mismatch here says nothing about the payment. Those rows
	// only expire, never fail, and a late webhook can still settle them.
	if result.Status == domain.StatusFailed && definitiveFailure(result) {
		_, err := r.ledger.MarkFailed(ctx, t.ID, result.ErrorMessage, result.RawResponse)
		return err
	}

	if time.Since(t.CreatedAt) > pendingExpiry {
		_, err := r.ledger.MarkExpired(ctx, t.ID)
		if err == nil {
			r.logger.Info("expired abandoned transaction", "transaction_id", t.ID)
		}
		return err
	}

	return nil
}

func definitiveFailure(result *application.VerifyResult) bool {
	return !result.SignatureMismatch && result.ErrorMessage != ""
}

// replayWebhookEvents retries verified deliveries whose processing failed,
// typically because the transaction row was not visible yet.
func (r *Reconciler) replayWebhookEvents(ctx context.Context) {
	events, err := r.events.FindUnprocessed(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch unprocessed webhook events", "error", err)
		return
	}

	for _, event := range events {
		if err := r.webhooks.Replay(ctx, event); err != nil {
			r.logger.Warn("webhook replay failed",
				"event_id", event.ID,
				"gateway_type", event.GatewayType,
				"error", err,
			)
			continue
		}
		r.logger.Info("replayed webhook event", "event_id", event.ID)
	}
}
