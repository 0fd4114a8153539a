package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence"
)

// TransactionCoordinator runs ledger mutations inside a database transaction.
// Repositories handed to the callback share that transaction, so a FOR UPDATE
// lock taken by one call holds until the callback returns.
type TransactionCoordinator struct {
	pool *pgxpool.Pool
}

func NewTransactionCoordinator(db *persistence.DB) *TransactionCoordinator {
	return &TransactionCoordinator{pool: db.Pool}
}

func (tc *TransactionCoordinator) WithTx(
	ctx context.Context,
	fn func(txs application.TransactionRepository, refunds application.RefundRepository) error,
) error {
	tx, err := tc.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txRepo := &TransactionRepository{q: tx}
	refundRepo := &RefundRepository{q: tx}

	if err := fn(txRepo, refundRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
