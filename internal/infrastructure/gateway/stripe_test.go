package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

func stripeCreds() application.GatewayCredentials {
	return application.GatewayCredentials{
		GatewayType:   domain.GatewayStripe,
		APIKey:        "pk_test_abc",
		SecretKey:     "sk_test_abc",
		WebhookSecret: "whsec_stripe",
	}
}

func TestStripe_CreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment_intents", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "50000", r.PostForm.Get("amount"))
		assert.Equal(t, "inr", r.PostForm.Get("currency"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[order_id]"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))

		w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_xyz","status":"requires_payment_method"}`))
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.CreateOrder(context.Background(), application.OrderRequest{
		OrderID:  "order-1",
		Amount:   decimal.NewFromInt(500),
		Currency: "INR",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "pi_123", result.GatewayOrderID)
	assert.Equal(t, "pi_123_secret_xyz", result.ClientData["client_secret"])
	assert.Equal(t, "pk_test_abc", result.ClientData["publishable_key"])
}

func TestStripe_CreatePaymentLink_Unsupported(t *testing.T) {
	g := NewStripe(stripeCreds(), http.DefaultClient)

	result, err := g.CreatePaymentLink(context.Background(), application.PaymentLinkRequest{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "not supported")
}

func TestStripe_VerifyPayment_Succeeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payment_intents/pi_123", r.URL.Path)
		w.Write([]byte(`{"id":"pi_123","status":"succeeded","latest_charge":"ch_456","payment_method_types":["card"]}`))
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{
		GatewayOrderID: "pi_123",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.StatusCaptured, result.Status)
	// The charge id is preferred over the intent id when available.
	assert.Equal(t, "ch_456", result.GatewayPaymentID)
	assert.Equal(t, "card", result.PaymentMethod)
}

func TestStripe_VerifyPayment_RequiresCapture(t *testing.T) {
	captured := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payment_intents/pi_123":
			w.Write([]byte(`{"id":"pi_123","status":"requires_capture","payment_method_types":["card"]}`))
		case "/payment_intents/pi_123/capture":
			captured = true
			w.Write([]byte(`{"id":"pi_123","status":"succeeded","latest_charge":"ch_456"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{
		GatewayOrderID: "pi_123",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, captured)
	assert.Equal(t, "ch_456", result.GatewayPaymentID)
}

func TestStripe_VerifyPayment_NotSucceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"pi_123","status":"requires_payment_method"}`))
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{GatewayOrderID: "pi_123"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestStripe_ProcessRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
		assert.Empty(t, r.PostForm.Get("charge"))
		assert.Equal(t, "20000", r.PostForm.Get("amount"))
		w.Write([]byte(`{"id":"re_1","status":"pending"}`))
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.ProcessRefund(context.Background(), "pi_123", decimal.NewFromInt(200), "")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.RefundProcessing, result.Status)
	assert.Equal(t, "re_1", result.GatewayRefundID)
}

func TestStripe_ProcessRefund_ChargeID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "ch_456", r.PostForm.Get("charge"))
		assert.Empty(t, r.PostForm.Get("payment_intent"))
		w.Write([]byte(`{"id":"re_2","status":"succeeded"}`))
	}))
	defer server.Close()

	g := newStripe(stripeCreds(), server.Client(), server.URL)

	result, err := g.ProcessRefund(context.Background(), "ch_456", decimal.NewFromInt(100), "")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundCompleted, result.Status)
}

func TestStripe_ParseWebhook(t *testing.T) {
	g := NewStripe(stripeCreds(), http.DefaultClient)

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "status": "succeeded", "payment_method_types": ["card"]}}
	}`)

	parsed, err := g.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", parsed.EventType)
	assert.Equal(t, "pi_123", parsed.GatewayOrderID)
	assert.Equal(t, "succeeded", parsed.Status)
	assert.Empty(t, parsed.GatewayRefundID)
}

func TestStripe_ParseWebhook_Refund(t *testing.T) {
	g := NewStripe(stripeCreds(), http.DefaultClient)

	payload := []byte(`{
		"type": "refund.updated",
		"data": {"object": {"id": "re_1", "status": "succeeded", "payment_intent": "pi_123"}}
	}`)

	parsed, err := g.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "re_1", parsed.GatewayRefundID)
	assert.Equal(t, "pi_123", parsed.GatewayPaymentID)
}

func TestStripe_VerifyWebhookSignature(t *testing.T) {
	g := NewStripe(stripeCreds(), http.DefaultClient)

	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	timestamp := "1700000000"
	v1 := hmacSHA256Hex(timestamp+"."+string(payload), "whsec_stripe")

	assert.True(t, g.VerifyWebhookSignature(payload, "t="+timestamp+",v1="+v1))
	assert.False(t, g.VerifyWebhookSignature(payload, "t="+timestamp+",v1=bogus"))
	assert.False(t, g.VerifyWebhookSignature(payload, "malformed"))

	creds := stripeCreds()
	creds.WebhookSecret = ""
	secretless := NewStripe(creds, http.DefaultClient)
	assert.False(t, secretless.VerifyWebhookSignature(payload, "t="+timestamp+",v1="+v1))
}
