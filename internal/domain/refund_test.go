package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefund(t *testing.T) {
	r, err := NewRefund("rf-1", "tx-1", decimal.NewFromInt(200), "customer request")
	require.NoError(t, err)

	assert.Equal(t, RefundInitiated, r.Status)
	require.NotNil(t, r.Reason)
	assert.Equal(t, "customer request", *r.Reason)
	assert.Nil(t, r.ProcessedAt)
}

func TestNewRefund_RejectsNonPositiveAmount(t *testing.T) {
	_, err := NewRefund("rf-1", "tx-1", decimal.Zero, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRefund_ApplyOutcome(t *testing.T) {
	r, err := NewRefund("rf-1", "tx-1", decimal.NewFromInt(200), "")
	require.NoError(t, err)

	r.ApplyOutcome(RefundProcessing, "gw_rf_1", `{"status":"pending"}`)
	assert.Equal(t, RefundProcessing, r.Status)
	require.NotNil(t, r.GatewayRefundID)
	assert.Equal(t, "gw_rf_1", *r.GatewayRefundID)
	assert.Nil(t, r.ProcessedAt)

	r.ApplyOutcome(RefundCompleted, "", "")
	assert.Equal(t, RefundCompleted, r.Status)
	assert.NotNil(t, r.ProcessedAt)
	// Blank gateway ID must not clear the stored one.
	assert.Equal(t, "gw_rf_1", *r.GatewayRefundID)
}

func TestRefund_CompleteIsIdempotent(t *testing.T) {
	r, err := NewRefund("rf-1", "tx-1", decimal.NewFromInt(200), "")
	require.NoError(t, err)

	r.ApplyOutcome(RefundCompleted, "gw_rf_1", "")
	first := *r.ProcessedAt

	r.Complete()
	assert.Equal(t, RefundCompleted, r.Status)
	assert.Equal(t, first, *r.ProcessedAt)
}

func TestCountsTowardRefundTotal(t *testing.T) {
	assert.True(t, RefundCompleted.CountsTowardRefundTotal())
	assert.True(t, RefundProcessing.CountsTowardRefundTotal())
	assert.False(t, RefundInitiated.CountsTowardRefundTotal())
	assert.False(t, RefundFailed.CountsTowardRefundTotal())
}

func TestTotalRefunded(t *testing.T) {
	mk := func(amount int64, status RefundStatus) *Refund {
		r, err := NewRefund("rf", "tx-1", decimal.NewFromInt(amount), "")
		require.NoError(t, err)
		r.Status = status
		return r
	}

	refunds := []*Refund{
		mk(100, RefundCompleted),
		mk(150, RefundProcessing),
		mk(75, RefundFailed),
		mk(50, RefundInitiated),
	}

	assert.True(t, TotalRefunded(refunds).Equal(decimal.NewFromInt(250)))
	assert.True(t, TotalRefunded(nil).IsZero())
}
