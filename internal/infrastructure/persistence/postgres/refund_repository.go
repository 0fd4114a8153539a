package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence"
)

const refundColumns = `
	id, transaction_id, gateway_refund_id, amount, status, reason,
	gateway_response, created_at, processed_at`

type RefundRepository struct {
	q persistence.Executor
}

func NewRefundRepository(db *persistence.DB) *RefundRepository {
	return &RefundRepository{q: db.Pool}
}

func (r *RefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	query := `
		INSERT INTO gateway_refunds (` + refundColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	m := toRefundModel(refund)
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TransactionID, m.GatewayRefundID, m.Amount, m.Status, m.Reason,
		m.GatewayResponse, m.CreatedAt, m.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}
	return nil
}

func (r *RefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	query := `
		UPDATE gateway_refunds
		SET gateway_refund_id = $1, status = $2, gateway_response = $3, processed_at = $4
		WHERE id = $5
	`

	m := toRefundModel(refund)
	result, err := r.q.Exec(ctx, query,
		m.GatewayRefundID, m.Status, m.GatewayResponse, m.ProcessedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update refund: %w", err)
	}
	if result.RowsAffected() == 0 {
		return application.ErrRefundNotFound
	}
	return nil
}

func (r *RefundRepository) FindByID(ctx context.Context, id string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM gateway_refunds WHERE id = $1`
	return scanRefund(r.q.QueryRow(ctx, query, id))
}

func (r *RefundRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	query := `
		SELECT ` + refundColumns + `
		FROM gateway_refunds WHERE transaction_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query refunds by transaction_id: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Refund, error) {
		var m RefundModel
		err := row.Scan(
			&m.ID, &m.TransactionID, &m.GatewayRefundID, &m.Amount, &m.Status, &m.Reason,
			&m.GatewayResponse, &m.CreatedAt, &m.ProcessedAt,
		)
		return toRefundDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan refund rows: %w", err)
	}
	return results, nil
}

func (r *RefundRepository) FindByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM gateway_refunds WHERE gateway_refund_id = $1`
	return scanRefund(r.q.QueryRow(ctx, query, gatewayRefundID))
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	var m RefundModel
	err := row.Scan(
		&m.ID, &m.TransactionID, &m.GatewayRefundID, &m.Amount, &m.Status, &m.Reason,
		&m.GatewayResponse, &m.CreatedAt, &m.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrRefundNotFound
		}
		return nil, fmt.Errorf("failed to scan refund: %w", err)
	}
	return toRefundDomain(m), nil
}
