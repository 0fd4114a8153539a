package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

type refundFixture struct {
	service      *RefundService
	ledger       *Ledger
	transactions *MockTransactionRepository
	refunds      *MockRefundRepository
	gateway      *MockGateway
}

func newRefundFixture() *refundFixture {
	transactions := NewMockTransactionRepository()
	refunds := NewMockRefundRepository()
	tx := NewMockTxRunner(transactions, refunds)
	ledger := NewLedger(transactions, refunds, tx, testLogger())
	gateway := NewMockGateway(domain.GatewayRazorpay)
	registry := NewMockGatewayRegistry(gateway)

	return &refundFixture{
		service:      NewRefundService(ledger, transactions, refunds, registry, testLogger()),
		ledger:       ledger,
		transactions: transactions,
		refunds:      refunds,
		gateway:      gateway,
	}
}

func TestRefund_Partial(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 600, domain.StatusCaptured)

	resp, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(200),
		Reason:        "item unavailable",
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.RefundCompleted), resp.Status)
	require.NotNil(t, resp.GatewayRefundID)
	assert.Equal(t, "gw_refund_1", *resp.GatewayRefundID)

	trx, err := f.transactions.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyRefunded, trx.Status)
}

func TestRefund_FullAmount(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 600, domain.StatusCaptured)

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(600),
	})
	require.NoError(t, err)

	trx, err := f.transactions.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, trx.Status)
}

func TestRefund_SequentialPartialsReachFullRefund(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 600, domain.StatusCaptured)

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	_, err = f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(400),
	})
	require.NoError(t, err)

	trx, err := f.transactions.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, trx.Status)
}

func TestRefund_RejectsOverBalanceBeforeGatewayCall(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(400),
	})
	require.NoError(t, err)

	_, err = f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(200),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeRefundExceeded, svcErr.Code)

	// The rejected attempt never reached the gateway.
	assert.Equal(t, 1, f.gateway.ProcessRefundCalls)
}

func TestRefund_RejectsUncapturedTransaction(t *testing.T) {
	f := newRefundFixture()
	trx := seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusPending)
	paymentID := "gw_pay_tx-1"
	trx.GatewayPaymentID = &paymentID

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidState, svcErr.Code)
	assert.Equal(t, 0, f.gateway.ProcessRefundCalls)
}

func TestRefund_RejectsWithoutGatewayPaymentID(t *testing.T) {
	f := newRefundFixture()
	trx := seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)
	trx.GatewayPaymentID = nil

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidState, svcErr.Code)
}

func TestRefund_GatewayRejection(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	f.gateway.ProcessRefundFn = func(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: "payment not refundable",
		}, nil
	}

	resp, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayRejected, svcErr.Code)
	require.NotNil(t, resp)
	assert.Equal(t, string(domain.RefundFailed), resp.Status)

	// A failed refund releases the reservation and leaves the transaction.
	trx, err := f.transactions.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCaptured, trx.Status)
}

func TestRefund_GatewayUnreachable(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	f.gateway.ProcessRefundFn = func(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayUnavailable, svcErr.Code)

	// The reserved refund row is marked FAILED so the balance is released.
	refunds, err := f.refunds.FindByTransactionID(context.Background(), "tx-1")
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, domain.RefundFailed, refunds[0].Status)
}

func TestRefund_AsyncGatewayLeavesProcessing(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	f.gateway.ProcessRefundFn = func(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
		return &application.RefundResult{
			Success:         true,
			Status:          domain.RefundProcessing,
			GatewayRefundID: "req_186073",
		}, nil
	}

	resp, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(200),
	})
	require.NoError(t, err)
	assert.Equal(t, string(domain.RefundProcessing), resp.Status)

	// In-flight refunds already count toward the transaction state.
	trx, err := f.transactions.FindByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyRefunded, trx.Status)
}

func TestRefund_OtherTenantReadsAsMissing(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-rogue",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)

	// Nothing was reserved and the victim's gateway was never called.
	assert.Equal(t, 0, f.gateway.ProcessRefundCalls)
	refunds, err := f.refunds.FindByTransactionID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

func TestGetRefundsByTransaction_OtherTenantReadsAsMissing(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	_, err := f.service.GetRefundsByTransaction(context.Background(), "tenant-rogue", "tx-1")
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
}

func TestRefund_TransactionNotFound(t *testing.T) {
	f := newRefundFixture()

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "missing",
		Amount:        decimal.NewFromInt(100),
	})
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
}

func TestGetRefundsByTransaction(t *testing.T) {
	f := newRefundFixture()
	seedTransaction(t, f.transactions, "tx-1", 500, domain.StatusCaptured)

	_, err := f.service.Refund(context.Background(), RefundCommand{
		TenantID:      "tenant-1",
		TransactionID: "tx-1",
		Amount:        decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	refunds, err := f.service.GetRefundsByTransaction(context.Background(), "tenant-1", "tx-1")
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, string(domain.RefundCompleted), refunds[0].Status)
}
