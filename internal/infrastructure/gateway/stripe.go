package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

const stripeBaseURL = "https://api.stripe.com/v1"

// Stripe implements the gateway contract against the PaymentIntents API.
// Stripe takes form-encoded bodies and amounts in the smallest currency unit.
type Stripe struct {
	creds      application.GatewayCredentials
	httpClient *http.Client
	baseURL    string
}

func NewStripe(creds application.GatewayCredentials, httpClient *http.Client) *Stripe {
	return newStripe(creds, httpClient, stripeBaseURL)
}

func newStripe(creds application.GatewayCredentials, httpClient *http.Client, baseURL string) *Stripe {
	return &Stripe{
		creds:      creds,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func (g *Stripe) Type() domain.GatewayType {
	return domain.GatewayStripe
}

// PublicKey returns the publishable key for Stripe.js on the client.
func (g *Stripe) PublicKey() string {
	return g.creds.APIKey
}

func (g *Stripe) CreateOrder(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(req.Amount), 10))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("automatic_payment_methods[enabled]", "true")

	status, body, err := g.postForm(ctx, "/payment_intents", form)
	if err != nil {
		return nil, newGatewayError(g.Type(), "create payment intent", err)
	}

	if status != http.StatusOK {
		return &application.OrderResult{
			Success:      false,
			ErrorMessage: g.errorMessage(body, "payment intent creation failed"),
			RawResponse:  string(body),
		}, nil
	}

	var intent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newGatewayError(g.Type(), "create payment intent", fmt.Errorf("decode response: %w", err))
	}

	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: intent.ID,
		ClientData: map[string]any{
			"client_secret":   intent.ClientSecret,
			"publishable_key": g.creds.APIKey,
		},
		RawResponse: string(body),
	}, nil
}

// CreatePaymentLink is not wired for Stripe; tenants use the intent flow.
func (g *Stripe) CreatePaymentLink(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error) {
	return &application.OrderResult{
		Success:      false,
		ErrorMessage: "payment links are not supported for stripe",
	}, nil
}

func (g *Stripe) VerifyPayment(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error) {
	status, body, err := g.get(ctx, "/payment_intents/"+req.GatewayOrderID)
	if err != nil {
		return nil, newGatewayError(g.Type(), "fetch payment intent", err)
	}
	if status != http.StatusOK {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: g.errorMessage(body, "failed to fetch payment intent"),
			RawResponse:  string(body),
		}, nil
	}

	var intent struct {
		ID                 string `json:"id"`
		Status             string `json:"status"`
		LatestCharge       string `json:"latest_charge"`
		PaymentMethodTypes []string `json:"payment_method_types"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newGatewayError(g.Type(), "fetch payment intent", fmt.Errorf("decode response: %w", err))
	}

	method := ""
	if len(intent.PaymentMethodTypes) > 0 {
		method = intent.PaymentMethodTypes[0]
	}

	switch intent.Status {
	case "succeeded":
		return &application.VerifyResult{
			Success:          true,
			Status:           domain.StatusCaptured,
			GatewayPaymentID: paymentIDForIntent(intent.ID, intent.LatestCharge),
			PaymentMethod:    method,
			RawResponse:      string(body),
		}, nil
	case "requires_capture":
		return g.captureIntent(ctx, intent.ID, method)
	default:
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "payment intent status: " + intent.Status,
			RawResponse:  string(body),
		}, nil
	}
}

func (g *Stripe) captureIntent(ctx context.Context, intentID, method string) (*application.VerifyResult, error) {
	status, body, err := g.postForm(ctx, "/payment_intents/"+intentID+"/capture", url.Values{})
	if err != nil {
		return nil, newGatewayError(g.Type(), "capture payment intent", err)
	}
	if status != http.StatusOK {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: g.errorMessage(body, "capture failed"),
			RawResponse:  string(body),
		}, nil
	}

	var intent struct {
		ID           string `json:"id"`
		LatestCharge string `json:"latest_charge"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, newGatewayError(g.Type(), "capture payment intent", fmt.Errorf("decode response: %w", err))
	}

	return &application.VerifyResult{
		Success:          true,
		Status:           domain.StatusCaptured,
		GatewayPaymentID: paymentIDForIntent(intent.ID, intent.LatestCharge),
		PaymentMethod:    method,
		RawResponse:      string(body),
	}, nil
}

func (g *Stripe) ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(amount), 10))
	if strings.HasPrefix(gatewayPaymentID, "pi_") {
		form.Set("payment_intent", gatewayPaymentID)
	} else {
		form.Set("charge", gatewayPaymentID)
	}
	if reason != "" {
		form.Set("metadata[reason]", reason)
	}

	status, body, err := g.postForm(ctx, "/refunds", form)
	if err != nil {
		return nil, newGatewayError(g.Type(), "process refund", err)
	}

	if status != http.StatusOK {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: g.errorMessage(body, "refund failed"),
			RawResponse:  string(body),
		}, nil
	}

	var refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &refund); err != nil {
		return nil, newGatewayError(g.Type(), "process refund", fmt.Errorf("decode response: %w", err))
	}

	refundStatus := domain.RefundProcessing
	if refund.Status == "succeeded" {
		refundStatus = domain.RefundCompleted
	}

	return &application.RefundResult{
		Success:         true,
		Status:          refundStatus,
		GatewayRefundID: refund.ID,
		RawResponse:     string(body),
	}, nil
}

func (g *Stripe) ParseWebhook(payload []byte, signature string) (*application.ParsedWebhook, error) {
	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string `json:"id"`
				Status   string `json:"status"`
				Metadata struct {
					OrderID string `json:"order_id"`
				} `json:"metadata"`
				PaymentIntent      string   `json:"payment_intent"`
				PaymentMethodTypes []string `json:"payment_method_types"`
			} `json:"object"`
		} `json:"data"`
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, newGatewayError(g.Type(), "parse webhook", err)
	}

	obj := event.Data.Object
	parsed := &application.ParsedWebhook{
		EventType: event.Type,
		Status:    obj.Status,
		RawData:   string(payload),
	}

	if strings.HasPrefix(event.Type, "refund.") || strings.HasPrefix(obj.ID, "re_") {
		parsed.GatewayRefundID = obj.ID
		parsed.GatewayPaymentID = obj.PaymentIntent
	} else {
		parsed.GatewayOrderID = obj.ID
		parsed.GatewayPaymentID = obj.ID
		if obj.PaymentIntent != "" {
			parsed.GatewayOrderID = obj.PaymentIntent
			parsed.GatewayPaymentID = obj.PaymentIntent
		}
	}
	if len(obj.PaymentMethodTypes) > 0 {
		parsed.PaymentMethod = obj.PaymentMethodTypes[0]
	}

	return parsed, nil
}

// VerifyWebhookSignature checks a Stripe-Signature header. The signed string
// is "<timestamp>.<payload>" and v1 carries the HMAC-SHA256 hex digest.
func (g *Stripe) VerifyWebhookSignature(payload []byte, signature string) bool {
	if g.creds.WebhookSecret == "" {
		return false
	}

	var timestamp, v1 string
	for _, part := range strings.Split(signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			v1 = value
		}
	}
	if timestamp == "" || v1 == "" {
		return false
	}

	expected := hmacSHA256Hex(timestamp+"."+string(payload), g.creds.WebhookSecret)
	return hmacEqual(expected, v1)
}

func (g *Stripe) postForm(ctx context.Context, path string, form url.Values) (int, []byte, error) {
	return doRequest(ctx, g.httpClient, http.MethodPost, g.baseURL+path,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), g.authorize)
}

func (g *Stripe) get(ctx context.Context, path string) (int, []byte, error) {
	return doRequest(ctx, g.httpClient, http.MethodGet, g.baseURL+path, "", nil, g.authorize)
}

func (g *Stripe) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+g.creds.SecretKey)
}

func (g *Stripe) errorMessage(body []byte, fallback string) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return fallback
}

func paymentIDForIntent(intentID, latestCharge string) string {
	if latestCharge != "" {
		return latestCharge
	}
	return intentID
}
