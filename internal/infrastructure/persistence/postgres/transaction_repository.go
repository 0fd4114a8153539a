package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence"
)

const transactionColumns = `
	id, tenant_id, outlet_id, order_id, payment_id, gateway_type,
	gateway_order_id, gateway_payment_id, gateway_signature,
	amount, currency, status, payment_method, failure_reason,
	gateway_response, idempotency_key, created_at, updated_at, completed_at`

type TransactionRepository struct {
	q persistence.Executor
}

func NewTransactionRepository(db *persistence.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO gateway_transactions (` + transactionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	m := toTransactionModel(tx)
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TenantID, m.OutletID, m.OrderID, m.PaymentID, m.GatewayType,
		m.GatewayOrderID, m.GatewayPaymentID, m.GatewaySignature,
		m.Amount, m.Currency, m.Status, m.PaymentMethod, m.FailureReason,
		m.GatewayResponse, m.IdempotencyKey, m.CreatedAt, m.UpdatedAt, m.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE gateway_transactions
		SET gateway_order_id = $1, gateway_payment_id = $2, gateway_signature = $3,
			status = $4, payment_method = $5, failure_reason = $6,
			gateway_response = $7, updated_at = $8, completed_at = $9
		WHERE id = $10
	`

	m := toTransactionModel(tx)
	result, err := r.q.Exec(ctx, query,
		m.GatewayOrderID, m.GatewayPaymentID, m.GatewaySignature,
		m.Status, m.PaymentMethod, m.FailureReason,
		m.GatewayResponse, m.UpdatedAt, m.CompletedAt,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return application.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions WHERE id = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, id))
}

// FindByIDForUpdate retrieves a transaction with a row-level lock. Callers
// must run inside WithTx for the lock to outlive the query.
func (r *TransactionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(r.q.QueryRow(ctx, query, id))
}

func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM gateway_transactions WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanTransaction(r.q.QueryRow(ctx, query, orderID))
}

func (r *TransactionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions WHERE gateway_order_id = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, gatewayOrderID))
}

func (r *TransactionRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions WHERE gateway_payment_id = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, gatewayPaymentID))
}

func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM gateway_transactions WHERE idempotency_key = $1`
	return scanTransaction(r.q.QueryRow(ctx, query, key))
}

func (r *TransactionRepository) FindByOutletID(ctx context.Context, outletID string, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM gateway_transactions WHERE outlet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, outletID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions by outlet_id: %w", err)
	}
	return collectTransactions(rows)
}

// FindPendingOlderThan returns PENDING transactions whose last update is older
// than the given age. The reconciliation worker feeds on this.
func (r *TransactionRepository) FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM gateway_transactions
		WHERE status = 'PENDING' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, time.Now().Add(-age), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending transactions: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		var m TransactionModel
		err := row.Scan(
			&m.ID, &m.TenantID, &m.OutletID, &m.OrderID, &m.PaymentID, &m.GatewayType,
			&m.GatewayOrderID, &m.GatewayPaymentID, &m.GatewaySignature,
			&m.Amount, &m.Currency, &m.Status, &m.PaymentMethod, &m.FailureReason,
			&m.GatewayResponse, &m.IdempotencyKey, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt,
		)
		return toTransactionDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transaction rows: %w", err)
	}
	return results, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m TransactionModel
	err := row.Scan(
		&m.ID, &m.TenantID, &m.OutletID, &m.OrderID, &m.PaymentID, &m.GatewayType,
		&m.GatewayOrderID, &m.GatewayPaymentID, &m.GatewaySignature,
		&m.Amount, &m.Currency, &m.Status, &m.PaymentMethod, &m.FailureReason,
		&m.GatewayResponse, &m.IdempotencyKey, &m.CreatedAt, &m.UpdatedAt, &m.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return toTransactionDomain(m), nil
}
