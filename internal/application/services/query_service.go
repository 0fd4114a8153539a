package services

import (
	"context"
	"errors"

	"github.com/mealstack/payment-core/internal/application"
)

// QueryService answers read-only lookups against the ledger. Every lookup is
// scoped to the caller's tenant; rows owned by another tenant read as missing.
type QueryService struct {
	transactions application.TransactionRepository
	refunds      application.RefundRepository
}

func NewQueryService(transactions application.TransactionRepository, refunds application.RefundRepository) *QueryService {
	return &QueryService{
		transactions: transactions,
		refunds:      refunds,
	}
}

func (s *QueryService) GetTransaction(ctx context.Context, tenantID, id string) (*GatewayTransactionResponse, error) {
	t, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	if t.TenantID != tenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}
	return toTransactionResponse(t), nil
}

func (s *QueryService) GetTransactionByOrder(ctx context.Context, tenantID, orderID string) (*GatewayTransactionResponse, error) {
	t, err := s.transactions.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	if t.TenantID != tenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}
	return toTransactionResponse(t), nil
}

func (s *QueryService) GetTransactionsByOutlet(ctx context.Context, tenantID, outletID string, limit int) ([]*GatewayTransactionResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := s.transactions.FindByOutletID(ctx, outletID, limit)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	responses := make([]*GatewayTransactionResponse, 0, len(transactions))
	for _, t := range transactions {
		if t.TenantID != tenantID {
			continue
		}
		responses = append(responses, toTransactionResponse(t))
	}
	return responses, nil
}
