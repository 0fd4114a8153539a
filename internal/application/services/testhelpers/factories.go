package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// DefaultInitiateCommand returns a valid initiate command for testing.
func DefaultInitiateCommand(tenantID string) services.InitiatePaymentCommand {
	return services.InitiatePaymentCommand{
		TenantID:       tenantID,
		OutletID:       "outlet-" + uuid.New().String(),
		OrderID:        "order-" + uuid.New().String(),
		GatewayType:    string(domain.GatewayRazorpay),
		Amount:         decimal.NewFromInt(500),
		Currency:       "INR",
		IdempotencyKey: "idem-" + uuid.New().String(),
	}
}

// DefaultSaveConfigCommand returns a valid Razorpay config command for testing.
func DefaultSaveConfigCommand(tenantID string) services.SaveConfigCommand {
	return services.SaveConfigCommand{
		TenantID:      tenantID,
		GatewayType:   domain.GatewayRazorpay,
		APIKey:        "rzp_test_" + uuid.New().String()[:8],
		SecretKey:     "secret_" + uuid.New().String()[:8],
		WebhookSecret: "whsec_" + uuid.New().String()[:8],
	}
}

// CreateCapturedTransaction persists a transaction that has completed the full
// initiate, pending, capture path so refund tests start from a settled row.
func CreateCapturedTransaction(
	t *testing.T,
	ctx context.Context,
	transactions application.TransactionRepository,
	tenantID string,
	amount decimal.Decimal,
) *domain.Transaction {
	t.Helper()

	id := "tx-" + uuid.New().String()
	tx, err := domain.NewTransaction(
		id, tenantID, "outlet-1", "order-"+uuid.New().String(), nil,
		domain.GatewayRazorpay, amount, "INR", "",
	)
	require.NoError(t, err)
	require.NoError(t, tx.MarkPending("gw_order_"+id, ""))
	require.NoError(t, tx.Capture("gw_pay_"+id, "upi", ""))
	require.NoError(t, transactions.Create(ctx, tx))

	return tx
}
