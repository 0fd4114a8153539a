package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	bharatpayLiveBaseURL = "https://api.bharatpay.co.in/v1"
	bharatpayTestBaseURL = "https://sandbox.bharatpay.co.in/v1"
)

// BharatPay implements the gateway contract against the BharatPay merchant
// API. Amounts are sent in paise. Every request carries an HMAC-SHA256
// signature over the pipe-joined parameter values in key order.
// https://docs.bharatpay.co.in/
type BharatPay struct {
	creds      application.GatewayCredentials
	httpClient *http.Client
	baseURL    string
}

func NewBharatPay(creds application.GatewayCredentials, httpClient *http.Client) *BharatPay {
	baseURL := bharatpayTestBaseURL
	if creds.IsLiveMode {
		baseURL = bharatpayLiveBaseURL
	}
	return newBharatPay(creds, httpClient, baseURL)
}

func newBharatPay(creds application.GatewayCredentials, httpClient *http.Client, baseURL string) *BharatPay {
	return &BharatPay{
		creds:      creds,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

func (g *BharatPay) Type() domain.GatewayType {
	return domain.GatewayBharatPay
}

// PublicKey returns the merchant api key the client-side checkout needs.
func (g *BharatPay) PublicKey() string {
	return g.creds.APIKey
}

func (g *BharatPay) CreateOrder(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error) {
	amountInPaise := toMinorUnits(req.Amount)
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	receipt := req.Receipt
	if receipt == "" {
		receipt = req.OrderID
	}

	orderReq := map[string]any{
		"merchant_id": g.creds.MerchantID,
		"order_id":    req.OrderID,
		"amount":      amountInPaise,
		"currency":    currency,
		"receipt":     receipt,
		"timestamp":   strconv.FormatInt(time.Now().Unix(), 10),
	}
	if len(req.Notes) > 0 {
		orderReq["notes"] = req.Notes
	}
	orderReq["signature"] = g.sign(orderReq)

	status, body, err := g.postJSON(ctx, "/orders/create", orderReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "create order", err)
	}

	envelope, errMsg := decodeBharatpayEnvelope(body, "order creation failed")
	if status != http.StatusOK && status != http.StatusCreated || envelope == nil {
		return &application.OrderResult{
			Success:      false,
			ErrorMessage: errMsg,
			RawResponse:  string(body),
		}, nil
	}

	clientData := map[string]any{
		"merchant_id": g.creds.MerchantID,
		"order_id":    envelope.Data.OrderID,
		"amount":      amountInPaise,
		"currency":    currency,
		"api_key":     g.creds.APIKey,
	}
	if envelope.Data.PaymentLink != "" {
		clientData["payment_link"] = envelope.Data.PaymentLink
	}

	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: envelope.Data.OrderID,
		ClientData:     clientData,
		RawResponse:    string(body),
	}, nil
}

// CreatePaymentLink rides on the order endpoint: BharatPay returns a hosted
// payment_link with every created order.
func (g *BharatPay) CreatePaymentLink(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error) {
	result, err := g.CreateOrder(ctx, application.OrderRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Description,
	})
	if err != nil || !result.Success {
		return result, err
	}
	if _, ok := result.ClientData["payment_link"]; !ok {
		return &application.OrderResult{
			Success:      false,
			ErrorMessage: "order created without a payment link",
			RawResponse:  result.RawResponse,
		}, nil
	}
	return result, nil
}

// VerifyPayment checks the callback signature, then fetches the payment
// status server-side.
func (g *BharatPay) VerifyPayment(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error) {
	expected := g.sign(map[string]any{
		"order_id":   req.GatewayOrderID,
		"payment_id": req.GatewayPaymentID,
	})
	if !hmacEqual(expected, req.Signature) {
		return &application.VerifyResult{
			Success:           false,
			Status:            domain.StatusFailed,
			SignatureMismatch: true,
			ErrorMessage:      "invalid signature",
		}, nil
	}

	status, body, err := g.get(ctx, "/payments/"+req.GatewayPaymentID+"/status")
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

	envelope, errMsg := decodeBharatpayEnvelope(body, "verification failed")
	if envelope == nil {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: errMsg,
			RawResponse:  string(body),
		}, nil
	}

	switch strings.ToUpper(envelope.Data.Status) {
	case "SUCCESS", "CAPTURED":
		return &application.VerifyResult{
			Success:          true,
			Status:           domain.StatusCaptured,
			GatewayPaymentID: req.GatewayPaymentID,
			PaymentMethod:    envelope.Data.PaymentMethod,
			RawResponse:      string(body),
		}, nil
	case "PENDING":
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusPending,
			ErrorMessage: "payment pending",
			RawResponse:  string(body),
		}, nil
	default:
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "payment status: " + envelope.Data.Status,
			RawResponse:  string(body),
		}, nil
	}
}

func (g *BharatPay) ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
	refundReq := map[string]any{
		"merchant_id": g.creds.MerchantID,
		"payment_id":  gatewayPaymentID,
		"amount":      toMinorUnits(amount),
		"timestamp":   strconv.FormatInt(time.Now().Unix(), 10),
	}
	if reason != "" {
		refundReq["reason"] = reason
	}
	refundReq["signature"] = g.sign(refundReq)

	status, body, err := g.postJSON(ctx, "/refunds/create", refundReq)
	if err != nil {
		return nil, newGatewayError(g.Type(), "process refund", err)
	}

	envelope, errMsg := decodeBharatpayEnvelope(body, "refund failed")
	if status != http.StatusOK && status != http.StatusCreated || envelope == nil {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: errMsg,
			RawResponse:  string(body),
		}, nil
	}

	refundStatus := domain.RefundProcessing
	switch strings.ToUpper(envelope.Data.Status) {
	case "SUCCESS", "PROCESSED":
		refundStatus = domain.RefundCompleted
	}

	return &application.RefundResult{
		Success:         true,
		Status:          refundStatus,
		GatewayRefundID: envelope.Data.RefundID,
		RawResponse:     string(body),
	}, nil
}

// ParseWebhook reads BharatPay's JSON callback: {"event": ..., "data": {...}}.
func (g *BharatPay) ParseWebhook(payload []byte, signature string) (*application.ParsedWebhook, error) {
	var event struct {
		Event string `json:"event"`
		Data  struct {
			OrderID       string `json:"order_id"`
			PaymentID     string `json:"payment_id"`
			RefundID      string `json:"refund_id"`
			Status        string `json:"status"`
			PaymentMethod string `json:"payment_method"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, newGatewayError(g.Type(), "parse webhook", err)
	}

	return &application.ParsedWebhook{
		EventType:        event.Event,
		GatewayOrderID:   event.Data.OrderID,
		GatewayPaymentID: event.Data.PaymentID,
		GatewayRefundID:  event.Data.RefundID,
		Status:           event.Data.Status,
		PaymentMethod:    event.Data.PaymentMethod,
		RawData:          string(payload),
	}, nil
}

// VerifyWebhookSignature checks the X-Bharatpay-Signature header, an
// HMAC-SHA256 hex digest over the raw payload keyed by the merchant secret.
func (g *BharatPay) VerifyWebhookSignature(payload []byte, signature string) bool {
	expected := hmacSHA256Hex(string(payload), g.creds.SecretKey)
	return hmacEqual(expected, signature)
}

// sign builds the request signature: parameter values pipe-joined in key
// order, the signature field itself excluded, HMAC-SHA256 hex with the
// merchant secret.
func (g *BharatPay) sign(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, key := range keys {
		values = append(values, fmt.Sprint(params[key]))
	}
	return hmacSHA256Hex(strings.Join(values, "|"), g.creds.SecretKey)
}

type bharatpayEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		OrderID       string `json:"order_id"`
		PaymentID     string `json:"payment_id"`
		RefundID      string `json:"refund_id"`
		Status        string `json:"status"`
		PaymentMethod string `json:"payment_method"`
		PaymentLink   string `json:"payment_link"`
	} `json:"data"`
}

// decodeBharatpayEnvelope unwraps the {success, message, data} envelope every
// BharatPay response uses. A nil envelope means a business failure; the second
// return carries the message to report.
func decodeBharatpayEnvelope(body []byte, fallback string) (*bharatpayEnvelope, string) {
	var envelope bharatpayEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fallback
	}
	if !envelope.Success {
		if envelope.Message != "" {
			return nil, envelope.Message
		}
		return nil, fallback
	}
	return &envelope, ""
}

func (g *BharatPay) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	return doRequest(ctx, g.httpClient, http.MethodPost, g.baseURL+path, "application/json", bytes.NewReader(data), g.authorize)
}

func (g *BharatPay) get(ctx context.Context, path string) (int, []byte, error) {
	return doRequest(ctx, g.httpClient, http.MethodGet, g.baseURL+path, "", nil, g.authorize)
}

func (g *BharatPay) authorize(req *http.Request) {
	req.Header.Set("X-Api-Key", g.creds.APIKey)
	req.Header.Set("X-Merchant-Id", g.creds.MerchantID)
}
