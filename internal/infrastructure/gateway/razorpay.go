package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// Razorpay implements the gateway contract against the Razorpay Orders API.
// Amounts are sent in paise. https://razorpay.com/docs/api/
type Razorpay struct {
	creds      application.GatewayCredentials
	httpClient *http.Client
	baseURL    string
}

func NewRazorpay(creds application.GatewayCredentials, httpClient *http.Client) *Razorpay {
	return newRazorpay(creds, httpClient, razorpayBaseURL)
}

func newRazorpay(creds application.GatewayCredentials, httpClient *http.Client, baseURL string) *Razorpay {
	return &Razorpay{
		creds:      creds,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func (g *Razorpay) Type() domain.GatewayType {
	return domain.GatewayRazorpay
}

// PublicKey returns the key id the client-side checkout SDK needs.
func (g *Razorpay) PublicKey() string {
	return g.creds.APIKey
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *Razorpay) CreateOrder(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error) {
	amountInPaise := toMinorUnits(req.Amount)

	orderReq := map[string]any{
		"amount":   amountInPaise,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if orderReq["receipt"] == "" {
		orderReq["receipt"] = req.OrderID
	}
	if len(req.Notes) > 0 {
		orderReq["notes"] = req.Notes
	}

	status, body, err := g.postJSON(ctx, "/orders", orderReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "create order", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return &application.OrderResult{
			Success:      false,
			ErrorMessage: g.errorDescription(body, "order creation failed"),
			RawResponse:  string(body),
		}, nil
	}

	var order struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, newGatewayError(g.Type(), "create order", fmt.Errorf("decode response: %w", err))
	}

	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: order.ID,
		ClientData: map[string]any{
			"key":      g.creds.APIKey,
			"order_id": order.ID,
			"amount":   amountInPaise,
			"currency": req.Currency,
			"name":     "Mealstack",
		},
		RawResponse: string(body),
	}, nil
}

func (g *Razorpay) CreatePaymentLink(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error) {
	linkReq := map[string]any{
		"amount":      toMinorUnits(req.Amount),
		"currency":    req.Currency,
		"description": req.Description,
		"reference_id": req.OrderID,
	}
	customer := map[string]any{}
	if req.CustomerName != "" {
		customer["name"] = req.CustomerName
	}
	if req.CustomerContact != "" {
		customer["contact"] = req.CustomerContact
	}
	if len(customer) > 0 {
		linkReq["customer"] = customer
	}
	if req.CallbackURL != "" {
		linkReq["callback_url"] = req.CallbackURL
		linkReq["callback_method"] = "get"
	}

	status, body, err := g.postJSON(ctx, "/payment_links", linkReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "create payment link", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return &application.OrderResult{
			Success:      false,
			ErrorMessage: g.errorDescription(body, "payment link creation failed"),
			RawResponse:  string(body),
		}, nil
	}

	var link struct {
		ID       string `json:"id"`
		ShortURL string `json:"short_url"`
	}
	if err := json.Unmarshal(body, &link); err != nil {
		return nil, newGatewayError(g.Type(), "create payment link", fmt.Errorf("decode response: %w", err))
	}

	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: link.ID,
		ClientData: map[string]any{
			"key":       g.creds.APIKey,
			"link_id":   link.ID,
			"short_url": link.ShortURL,
		},
		RawResponse: string(body),
	}, nil
}

func (g *Razorpay) VerifyPayment(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error) {
	// Signature: HMAC-SHA256(order_id + "|" + payment_id, secret)
	expected := hmacSHA256Hex(req.GatewayOrderID+"|"+req.GatewayPaymentID, g.creds.SecretKey)
	if !hmacEqual(expected, req.Signature) {
		return &application.VerifyResult{
			Success:           false,
			Status:            domain.StatusFailed,
			SignatureMismatch: true,
			ErrorMessage:      "invalid signature",
		}, nil
	}

	status, body, err := g.get(ctx, "/payments/"+req.GatewayPaymentID)
	if err != nil {
		return nil, newGatewayError(g.Type(), "fetch payment", err)
	}
	if status != http.StatusOK {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "failed to fetch payment details",
			RawResponse:  string(body),
		}, nil
	}

	var payment struct {
		Status string `json:"status"`
		Method string `json:"method"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, newGatewayError(g.Type(), "fetch payment", fmt.Errorf("decode response: %w", err))
	}

	switch payment.Status {
	case "captured":
		return &application.VerifyResult{
			Success:          true,
			Status:           domain.StatusCaptured,
			GatewayPaymentID: req.GatewayPaymentID,
			PaymentMethod:    payment.Method,
			RawResponse:      string(body),
		}, nil
	case "authorized":
		// Razorpay leaves authorized charges uncaptured; issue the capture
		// call before reporting success.
		return g.capturePayment(ctx, req.GatewayPaymentID, payment.Amount)
	default:
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "payment status: " + payment.Status,
			RawResponse:  string(body),
		}, nil
	}
}

func (g *Razorpay) capturePayment(ctx context.Context, paymentID string, amountInPaise int64) (*application.VerifyResult, error) {
	captureReq := map[string]any{
		"amount":   amountInPaise,
		"currency": "INR",
	}

	status, body, err := g.postJSON(ctx, "/payments/"+paymentID+"/capture", captureReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "capture payment", err)
	}
	if status != http.StatusOK {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "capture failed",
			RawResponse:  string(body),
		}, nil
	}

	var payment struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, newGatewayError(g.Type(), "capture payment", fmt.Errorf("decode response: %w", err))
	}

	return &application.VerifyResult{
		Success:          true,
		Status:           domain.StatusCaptured,
		GatewayPaymentID: paymentID,
		PaymentMethod:    payment.Method,
		RawResponse:      string(body),
	}, nil
}

func (g *Razorpay) ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
	refundReq := map[string]any{
		"amount": toMinorUnits(amount),
	}
	if reason != "" {
		refundReq["notes"] = map[string]string{"reason": reason}
	}

	status, body, err := g.postJSON(ctx, "/payments/"+gatewayPaymentID+"/refund", refundReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "process refund", err)
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: g.errorDescription(body, "refund failed"),
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
	if refund.Status == "processed" {
		refundStatus = domain.RefundCompleted
	}

	return &application.RefundResult{
		Success:         true,
		Status:          refundStatus,
		GatewayRefundID: refund.ID,
		RawResponse:     string(body),
	}, nil
}

func (g *Razorpay) ParseWebhook(payload []byte, signature string) (*application.ParsedWebhook, error) {
	var event struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string `json:"id"`
					OrderID string `json:"order_id"`
					Status  string `json:"status"`
					Method  string `json:"method"`
				} `json:"entity"`
			} `json:"payment"`
			Refund struct {
				Entity struct {
					ID        string `json:"id"`
					PaymentID string `json:"payment_id"`
					Status    string `json:"status"`
				} `json:"entity"`
			} `json:"refund"`
		} `json:"payload"`
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, newGatewayError(g.Type(), "parse webhook", err)
	}

	parsed := &application.ParsedWebhook{
		EventType: event.Event,
		RawData:   string(payload),
	}

	payment := event.Payload.Payment.Entity
	parsed.GatewayOrderID = payment.OrderID
	parsed.GatewayPaymentID = payment.ID
	parsed.Status = payment.Status
	parsed.PaymentMethod = payment.Method

	refund := event.Payload.Refund.Entity
	if refund.ID != "" {
		parsed.GatewayRefundID = refund.ID
		if parsed.GatewayPaymentID == "" {
			parsed.GatewayPaymentID = refund.PaymentID
		}
		if parsed.Status == "" {
			parsed.Status = refund.Status
		}
	}

	return parsed, nil
}

func (g *Razorpay) VerifyWebhookSignature(payload []byte, signature string) bool {
	// A config without a webhook secret cannot vouch for any delivery.
	if g.creds.WebhookSecret == "" {
		return false
	}
	expected := hmacSHA256Hex(string(payload), g.creds.WebhookSecret)
	return hmacEqual(expected, signature)
}

func (g *Razorpay) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	return doRequest(ctx, g.httpClient, http.MethodPost, g.baseURL+path, "application/json", bytes.NewReader(data), g.authorize)
}

func (g *Razorpay) get(ctx context.Context, path string) (int, []byte, error) {
	return doRequest(ctx, g.httpClient, http.MethodGet, g.baseURL+path, "", nil, g.authorize)
}

func (g *Razorpay) authorize(req *http.Request) {
	auth := g.creds.APIKey + ":" + g.creds.SecretKey
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(auth)))
}

func (g *Razorpay) errorDescription(body []byte, fallback string) string {
	var errResp razorpayError
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Description != "" {
		return errResp.Error.Description
	}
	return fallback
}

// toMinorUnits converts a 2-place decimal amount to the provider's smallest
// currency unit (paise/cents).
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
