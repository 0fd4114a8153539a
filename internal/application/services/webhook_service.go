package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

// WebhookService ingests gateway callbacks. Every delivery is persisted as an
// audit record before any processing, including ones that fail signature
// verification. Processing faults are recorded on the event and never bubble
// into the HTTP status: the gateway always gets its acknowledgment, and the
// replay worker retries verified events whose processing did not finish.
type WebhookService struct {
	ledger       *Ledger
	transactions application.TransactionRepository
	refunds      application.RefundRepository
	events       application.WebhookEventRepository
	configs      application.ConfigRepository
	registry     application.GatewayRegistry
	logger       *slog.Logger
}

func NewWebhookService(
	ledger *Ledger,
	transactions application.TransactionRepository,
	refunds application.RefundRepository,
	events application.WebhookEventRepository,
	configs application.ConfigRepository,
	registry application.GatewayRegistry,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		ledger:       ledger,
		transactions: transactions,
		refunds:      refunds,
		events:       events,
		configs:      configs,
		registry:     registry,
		logger:       logger,
	}
}

// Process handles one inbound delivery. The returned error covers only the
// audit insert; everything after is recorded on the event itself.
func (s *WebhookService) Process(ctx context.Context, gatewayType domain.GatewayType, payload []byte, signature string) error {
	event := domain.NewWebhookEvent(uuid.New().String(), gatewayType, string(payload), signature)
	if err := s.events.Create(ctx, event); err != nil {
		return application.NewInternalError(err)
	}

	gw, ok := s.verifyAgainstTenants(ctx, event, payload, signature)
	if !ok {
		event.RecordError("signature verification failed for all active configs")
		s.updateEvent(ctx, event)
		s.logger.Warn("webhook rejected, no config verified the signature",
			"event_id", event.ID,
			"gateway_type", gatewayType,
		)
		return nil
	}

	event.MarkVerified()

	if err := s.apply(ctx, gw, event, payload); err != nil {
		event.RecordError(err.Error())
		s.updateEvent(ctx, event)
		s.logger.Error("webhook processing failed",
			"event_id", event.ID,
			"gateway_type", gatewayType,
			"error", err,
		)
		return nil
	}

	event.MarkProcessed()
	s.updateEvent(ctx, event)
	return nil
}

// Replay retries one stored verified event, used by the worker for deliveries
// whose first processing attempt failed.
func (s *WebhookService) Replay(ctx context.Context, event *domain.WebhookEvent) error {
	configs, err := s.configs.FindActiveByGatewayType(ctx, event.GatewayType)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no active configs for %s", event.GatewayType)
	}

	// The event already passed signature verification; any adapter of the
	// right type can re-parse the stored payload.
	gw, err := s.registry.GatewayForConfig(configs[0])
	if err != nil {
		return err
	}

	if err := s.apply(ctx, gw, event, []byte(event.Payload)); err != nil {
		event.RecordError(err.Error())
		s.updateEvent(ctx, event)
		return err
	}

	event.MarkProcessed()
	event.ProcessingError = nil
	return s.events.Update(ctx, event)
}

// verifyAgainstTenants tries the delivery's signature against every active
// config for the gateway type. Deliveries carry no tenant marker, so the
// config whose webhook secret validates the payload identifies the tenant.
func (s *WebhookService) verifyAgainstTenants(ctx context.Context, event *domain.WebhookEvent, payload []byte, signature string) (application.Gateway, bool) {
	configs, err := s.configs.FindActiveByGatewayType(ctx, event.GatewayType)
	if err != nil {
		s.logger.Error("failed to load configs for webhook verification", "error", err)
		return nil, false
	}

	for _, config := range configs {
		gw, err := s.registry.GatewayForConfig(config)
		if err != nil {
			s.logger.Warn("skipping config during webhook verification",
				"config_id", config.ID,
				"error", err,
			)
			continue
		}
		if gw.VerifyWebhookSignature(payload, signature) {
			return gw, true
		}
	}
	return nil, false
}

func (s *WebhookService) apply(ctx context.Context, gw application.Gateway, event *domain.WebhookEvent, payload []byte) error {
	parsed, err := gw.ParseWebhook(payload, deref(event.Signature))
	if err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}

	if parsed.EventType != "" {
		event.EventType = &parsed.EventType
	}
	if parsed.GatewayPaymentID != "" {
		event.GatewayEventID = &parsed.GatewayPaymentID
	}

	if parsed.GatewayRefundID != "" {
		return s.applyRefundEvent(ctx, parsed)
	}
	return s.applyPaymentEvent(ctx, parsed)
}

func (s *WebhookService) applyPaymentEvent(ctx context.Context, parsed *application.ParsedWebhook) error {
	t, err := s.findTransaction(ctx, parsed)
	if err != nil {
		return err
	}

	if t.IsTerminal() || t.Status == domain.StatusCaptured ||
		t.Status == domain.StatusPartiallyRefunded || t.Status == domain.StatusRefunded {
		// Late or duplicate delivery for a settled row; nothing to change.
		s.logger.Info("webhook ignored for settled transaction",
			"transaction_id", t.ID,
			"status", t.Status,
		)
		return nil
	}

	switch normalizeStatus(parsed.Status) {
	case "captured", "succeeded", "success", "paid":
		_, err = s.ledger.MarkCaptured(ctx, t.ID, parsed.GatewayPaymentID, parsed.PaymentMethod, parsed.RawData)
	case "failed", "failure", "canceled", "cancelled":
		_, err = s.ledger.MarkFailed(ctx, t.ID, "gateway reported "+parsed.Status, parsed.RawData)
	default:
		s.logger.Info("webhook carried no actionable status",
			"transaction_id", t.ID,
			"status", parsed.Status,
			"event_type", parsed.EventType,
		)
		return nil
	}
	return err
}

func (s *WebhookService) applyRefundEvent(ctx context.Context, parsed *application.ParsedWebhook) error {
	refund, err := s.refunds.FindByGatewayRefundID(ctx, parsed.GatewayRefundID)
	if err != nil {
		if errors.Is(err, application.ErrRefundNotFound) {
			return fmt.Errorf("no refund for gateway refund id %s", parsed.GatewayRefundID)
		}
		return err
	}

	switch normalizeStatus(parsed.Status) {
	case "processed", "succeeded", "success", "completed":
		_, err = s.ledger.CompleteRefund(ctx, refund.ID, parsed.RawData)
	case "failed", "failure":
		_, err = s.ledger.ApplyRefundOutcome(ctx, refund.ID, domain.RefundFailed, parsed.GatewayRefundID, parsed.RawData)
	default:
		return nil
	}
	return err
}

// findTransaction correlates the event to a ledger row, preferring the
// gateway order id and falling back to the payment id.
func (s *WebhookService) findTransaction(ctx context.Context, parsed *application.ParsedWebhook) (*domain.Transaction, error) {
	if parsed.GatewayOrderID != "" {
		t, err := s.transactions.FindByGatewayOrderID(ctx, parsed.GatewayOrderID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, application.ErrTransactionNotFound) {
			return nil, err
		}
	}

	if parsed.GatewayPaymentID != "" {
		t, err := s.transactions.FindByGatewayPaymentID(ctx, parsed.GatewayPaymentID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, application.ErrTransactionNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("no transaction for gateway order %q or payment %q",
		parsed.GatewayOrderID, parsed.GatewayPaymentID)
}

func (s *WebhookService) updateEvent(ctx context.Context, event *domain.WebhookEvent) {
	if err := s.events.Update(ctx, event); err != nil {
		s.logger.Error("failed to update webhook event",
			"event_id", event.ID,
			"error", err,
		)
	}
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
