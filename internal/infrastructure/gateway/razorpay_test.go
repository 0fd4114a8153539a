package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

func razorpayCreds() application.GatewayCredentials {
	return application.GatewayCredentials{
		GatewayType:   domain.GatewayRazorpay,
		APIKey:        "rzp_test_key",
		SecretKey:     "rzp_test_secret",
		WebhookSecret: "whsec_test",
	}
}

func TestRazorpay_CreateOrder(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"order_abc","amount":50000,"currency":"INR","status":"created"}`))
	}))
	defer server.Close()

	g := newRazorpay(razorpayCreds(), server.Client(), server.URL)

	result, err := g.CreateOrder(context.Background(), application.OrderRequest{
		OrderID:  "order-1",
		Amount:   decimal.NewFromInt(500),
		Currency: "INR",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, "order_abc", result.GatewayOrderID)

	// Amounts go out in paise.
	assert.Equal(t, float64(50000), gotBody["amount"])
	assert.Equal(t, "order-1", gotBody["receipt"])

	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("rzp_test_key:rzp_test_secret"))
	assert.Equal(t, expectedAuth, gotAuth)

	assert.Equal(t, "rzp_test_key", result.ClientData["key"])
	assert.Equal(t, "order_abc", result.ClientData["order_id"])
}

func TestRazorpay_CreateOrder_GatewayRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer server.Close()

	g := newRazorpay(razorpayCreds(), server.Client(), server.URL)

	result, err := g.CreateOrder(context.Background(), application.OrderRequest{
		OrderID:  "order-1",
		Amount:   decimal.NewFromInt(1),
		Currency: "INR",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "amount too small", result.ErrorMessage)
}

func TestRazorpay_VerifyPayment_CapturedPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/pay_123", r.URL.Path)
		w.Write([]byte(`{"id":"pay_123","status":"captured","method":"upi","amount":50000}`))
	}))
	defer server.Close()

	g := newRazorpay(razorpayCreds(), server.Client(), server.URL)

	sig := hmacSHA256Hex("order_abc|pay_123", "rzp_test_secret")
	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_123",
		Signature:        sig,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.StatusCaptured, result.Status)
	assert.Equal(t, "upi", result.PaymentMethod)
}

func TestRazorpay_VerifyPayment_BadSignature(t *testing.T) {
	// The signature gate runs before any network call.
	g := newRazorpay(razorpayCreds(), http.DefaultClient, "http://127.0.0.1:0")

	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_123",
		Signature:        "deadbeef",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.SignatureMismatch)
	assert.Equal(t, "invalid signature", result.ErrorMessage)
}

func TestRazorpay_VerifyPayment_AuthorizedTriggersCapture(t *testing.T) {
	captured := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay_123":
			w.Write([]byte(`{"id":"pay_123","status":"authorized","method":"card","amount":50000}`))
		case "/payments/pay_123/capture":
			captured = true
			var req map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(50000), req["amount"])
			w.Write([]byte(`{"id":"pay_123","status":"captured","method":"card"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	g := newRazorpay(razorpayCreds(), server.Client(), server.URL)

	sig := hmacSHA256Hex("order_abc|pay_123", "rzp_test_secret")
	result, err := g.VerifyPayment(context.Background(), application.VerifyRequest{
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_123",
		Signature:        sig,
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.True(t, captured)
	assert.Equal(t, domain.StatusCaptured, result.Status)
}

func TestRazorpay_ProcessRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/pay_123/refund", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(20000), req["amount"])
		w.Write([]byte(`{"id":"rfnd_1","status":"processed"}`))
	}))
	defer server.Close()

	g := newRazorpay(razorpayCreds(), server.Client(), server.URL)

	result, err := g.ProcessRefund(context.Background(), "pay_123", decimal.NewFromInt(200), "customer request")
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, domain.RefundCompleted, result.Status)
	assert.Equal(t, "rfnd_1", result.GatewayRefundID)
}

func TestRazorpay_ParseWebhook_PaymentEvent(t *testing.T) {
	g := NewRazorpay(razorpayCreds(), http.DefaultClient)

	payload := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {"id": "pay_123", "order_id": "order_abc", "status": "captured", "method": "upi"}
			}
		}
	}`)

	parsed, err := g.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "payment.captured", parsed.EventType)
	assert.Equal(t, "order_abc", parsed.GatewayOrderID)
	assert.Equal(t, "pay_123", parsed.GatewayPaymentID)
	assert.Equal(t, "captured", parsed.Status)
	assert.Empty(t, parsed.GatewayRefundID)
}

func TestRazorpay_ParseWebhook_RefundEvent(t *testing.T) {
	g := NewRazorpay(razorpayCreds(), http.DefaultClient)

	payload := []byte(`{
		"event": "refund.processed",
		"payload": {
			"refund": {
				"entity": {"id": "rfnd_1", "payment_id": "pay_123", "status": "processed"}
			}
		}
	}`)

	parsed, err := g.ParseWebhook(payload, "")
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", parsed.GatewayRefundID)
	assert.Equal(t, "pay_123", parsed.GatewayPaymentID)
	assert.Equal(t, "processed", parsed.Status)
}

func TestRazorpay_VerifyWebhookSignature(t *testing.T) {
	g := NewRazorpay(razorpayCreds(), http.DefaultClient)

	payload := []byte(`{"event":"payment.captured"}`)
	valid := hmacSHA256Hex(string(payload), "whsec_test")

	assert.True(t, g.VerifyWebhookSignature(payload, valid))
	assert.False(t, g.VerifyWebhookSignature(payload, "bogus"))

	// A config without a webhook secret can never verify a delivery, or a
	// single secretless tenant would vouch for everyone's webhooks.
	creds := razorpayCreds()
	creds.WebhookSecret = ""
	secretless := NewRazorpay(creds, http.DefaultClient)
	assert.False(t, secretless.VerifyWebhookSignature(payload, ""))
	assert.False(t, secretless.VerifyWebhookSignature(payload, valid))
}
