package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

// RefundService orchestrates refunds: the refundable balance is checked and
// the refund row reserved under a row lock before the gateway is ever called,
// so concurrent refunds cannot oversell the balance.
type RefundService struct {
	ledger       *Ledger
	transactions application.TransactionRepository
	refunds      application.RefundRepository
	registry     application.GatewayRegistry
	logger       *slog.Logger
}

func NewRefundService(
	ledger *Ledger,
	transactions application.TransactionRepository,
	refunds application.RefundRepository,
	registry application.GatewayRegistry,
	logger *slog.Logger,
) *RefundService {
	return &RefundService{
		ledger:       ledger,
		transactions: transactions,
		refunds:      refunds,
		registry:     registry,
		logger:       logger,
	}
}

func (s *RefundService) Refund(ctx context.Context, cmd RefundCommand) (*RefundResponse, error) {
	t, err := s.transactions.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}

	// A refund runs against the owning tenant's gateway credentials, so the
	// caller must be that tenant. Mismatches read as missing, not forbidden.
	if t.TenantID != cmd.TenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}

	if t.GatewayPaymentID == nil {
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(t.Status, domain.StatusRefunded))
	}

	refund, err := domain.NewRefund(uuid.New().String(), t.ID, cmd.Amount, cmd.Reason)
	if err != nil {
		return nil, application.NewInvalidInputError(err.Error())
	}

	// Reserves the amount against the refundable balance; rejects
	// over-balance and wrong-state requests before the gateway call.
	if err := s.ledger.RecordRefund(ctx, refund); err != nil {
		if svcErr, ok := application.IsServiceError(err); ok {
			return nil, svcErr
		}
		return nil, application.NewInternalError(err)
	}

	gw, err := s.registry.Gateway(ctx, t.TenantID, t.GatewayType)
	if err != nil {
		s.recordOutcome(ctx, refund.ID, domain.RefundFailed, "", "")
		return nil, err
	}

	result, err := gw.ProcessRefund(ctx, *t.GatewayPaymentID, cmd.Amount, cmd.Reason)
	if err != nil {
		s.recordOutcome(ctx, refund.ID, domain.RefundFailed, "", "")
		return nil, application.NewGatewayUnavailableError(err)
	}
	if !result.Success {
		refund, applyErr := s.ledger.ApplyRefundOutcome(ctx, refund.ID, domain.RefundFailed, result.GatewayRefundID, result.RawResponse)
		if applyErr != nil {
			return nil, application.NewInternalError(applyErr)
		}
		resp := toRefundResponse(refund)
		return resp, application.NewGatewayRejectedError(result.ErrorMessage)
	}

	refund, err = s.ledger.ApplyRefundOutcome(ctx, refund.ID, result.Status, result.GatewayRefundID, result.RawResponse)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("refund recorded",
		"refund_id", refund.ID,
		"transaction_id", t.ID,
		"amount", cmd.Amount,
		"status", refund.Status,
	)

	return toRefundResponse(refund), nil
}

func (s *RefundService) GetRefundsByTransaction(ctx context.Context, tenantID, transactionID string) ([]*RefundResponse, error) {
	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	if t.TenantID != tenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}

	refunds, err := s.refunds.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	responses := make([]*RefundResponse, 0, len(refunds))
	for _, r := range refunds {
		responses = append(responses, toRefundResponse(r))
	}
	return responses, nil
}

func (s *RefundService) recordOutcome(ctx context.Context, refundID string, status domain.RefundStatus, gatewayRefundID, raw string) {
	if _, err := s.ledger.ApplyRefundOutcome(ctx, refundID, status, gatewayRefundID, raw); err != nil {
		s.logger.Error("failed to record refund outcome",
			"refund_id", refundID,
			"error", err,
		)
	}
}
