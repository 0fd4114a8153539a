package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	payuLiveBaseURL = "https://secure.payu.in"
	payuTestBaseURL = "https://test.payu.in"

	payuLiveServiceURL = "https://info.payu.in/merchant/postservice.php?form=2"
	payuTestServiceURL = "https://test.payu.in/merchant/postservice.php?form=2"

	// PayU rejects transaction ids longer than 25 characters.
	payuTxnIDMaxLen = 25
)

// PayU implements the gateway contract for PayU's hosted checkout. There is
// no server-side order call: CreateOrder computes the request hash and hands
// the client the form fields to POST to PayU's payment page.
type PayU struct {
	creds      application.GatewayCredentials
	httpClient *http.Client
	baseURL    string
	serviceURL string
}

func NewPayU(creds application.GatewayCredentials, httpClient *http.Client) *PayU {
	baseURL, serviceURL := payuTestBaseURL, payuTestServiceURL
	if creds.IsLiveMode {
		baseURL, serviceURL = payuLiveBaseURL, payuLiveServiceURL
	}
	return newPayU(creds, httpClient, baseURL, serviceURL)
}

func newPayU(creds application.GatewayCredentials, httpClient *http.Client, baseURL, serviceURL string) *PayU {
	return &PayU{
		creds:      creds,
		httpClient: httpClient,
		baseURL:    baseURL,
		serviceURL: serviceURL,
	}
}

func (g *PayU) Type() domain.GatewayType {
	return domain.GatewayPayU
}

// PublicKey returns the merchant key embedded in the checkout form.
func (g *PayU) PublicKey() string {
	return g.creds.APIKey
}

func (g *PayU) CreateOrder(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error) {
	txnID := payuTxnID(req.OrderID)
	amount := req.Amount.StringFixed(2)
	productInfo := req.Receipt
	if productInfo == "" {
		productInfo = "order-" + req.OrderID
	}
	firstName := req.Notes["firstname"]
	if firstName == "" {
		firstName = "Customer"
	}
	email := req.Notes["email"]

	hash := g.requestHash(txnID, amount, productInfo, firstName, email)

	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: txnID,
		ClientData: map[string]any{
			"action":      g.baseURL + "/_payment",
			"key":         g.creds.APIKey,
			"txnid":       txnID,
			"amount":      amount,
			"productinfo": productInfo,
			"firstname":   firstName,
			"email":       email,
			"hash":        hash,
		},
	}, nil
}

// CreatePaymentLink is not wired for PayU; tenants use the hosted checkout.
func (g *PayU) CreatePaymentLink(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error) {
	return &application.OrderResult{
		Success:      false,
		ErrorMessage: "payment links are not supported for payu",
	}, nil
}

// VerifyPayment checks the callback params against the response hash. PayU
// returns the payment outcome in the redirect back to the merchant, so the
// whole verification is the reverse-hash comparison.
func (g *PayU) VerifyPayment(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error) {
	params := req.AdditionalData
	status := params["status"]
	mihpayid := params["mihpayid"]
	if mihpayid == "" {
		mihpayid = req.GatewayPaymentID
	}

	hash := params["hash"]
	if hash == "" {
		hash = req.Signature
	}

	expected := g.responseHash(status, params["email"], params["firstname"],
		params["productinfo"], params["amount"], req.GatewayOrderID)
	if !hmacEqual(expected, hash) {
		return &application.VerifyResult{
			Success:           false,
			Status:            domain.StatusFailed,
			SignatureMismatch: true,
			ErrorMessage:      "invalid hash",
		}, nil
	}

	raw, _ := json.Marshal(params)

	if !strings.EqualFold(status, "success") {
		return &application.VerifyResult{
			Success:      false,
			Status:       domain.StatusFailed,
			ErrorMessage: "payment status: " + status,
			RawResponse:  string(raw),
		}, nil
	}

	return &application.VerifyResult{
		Success:          true,
		Status:           domain.StatusCaptured,
		GatewayPaymentID: mihpayid,
		PaymentMethod:    params["mode"],
		RawResponse:      string(raw),
	}, nil
}

func (g *PayU) ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
	const command = "cancel_refund_transaction"

	form := url.Values{}
	form.Set("key", g.creds.APIKey)
	form.Set("command", command)
	form.Set("var1", gatewayPaymentID)
	form.Set("var2", payuTxnID(gatewayPaymentID+"-refund"))
	form.Set("var3", amount.StringFixed(2))
	form.Set("hash", sha512Hex(g.creds.APIKey+"|"+command+"|"+gatewayPaymentID+"|"+g.creds.SecretKey))

	status, body, err := doRequest(ctx, g.httpClient, http.MethodPost, g.serviceURL,
		"application/x-www-form-urlencoded", strings.NewReader(form.Encode()), nil)
	if err != nil {
		return nil, newGatewayError(g.Type(), "process refund", err)
	}
	if status != http.StatusOK {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: "refund request failed",
			RawResponse:  string(body),
		}, nil
	}

	var result struct {
		Status  int    `json:"status"`
		Msg     string `json:"msg"`
		RequestID json.Number `json:"request_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, newGatewayError(g.Type(), "process refund", fmt.Errorf("decode response: %w", err))
	}

	if result.Status != 1 {
		return &application.RefundResult{
			Success:      false,
			Status:       domain.RefundFailed,
			ErrorMessage: result.Msg,
			RawResponse:  string(body),
		}, nil
	}

	// PayU settles refunds asynchronously; the webhook moves it to COMPLETED.
	return &application.RefundResult{
		Success:         true,
		Status:          domain.RefundProcessing,
		GatewayRefundID: result.RequestID.String(),
		RawResponse:     string(body),
	}, nil
}

// ParseWebhook reads PayU's form-encoded server-to-server callback.
func (g *PayU) ParseWebhook(payload []byte, signature string) (*application.ParsedWebhook, error) {
	params, err := url.ParseQuery(string(payload))
	if err != nil {
		return nil, newGatewayError(g.Type(), "parse webhook", err)
	}

	return &application.ParsedWebhook{
		EventType:        "payment." + strings.ToLower(params.Get("status")),
		GatewayOrderID:   params.Get("txnid"),
		GatewayPaymentID: params.Get("mihpayid"),
		GatewayRefundID:  params.Get("request_id"),
		Status:           params.Get("status"),
		PaymentMethod:    params.Get("mode"),
		RawData:          string(payload),
	}, nil
}

// VerifyWebhookSignature checks the response hash inside the form payload.
// PayU sends no detached signature header; the salted hash over the payload
// fields is the only proof the callback came from PayU.
func (g *PayU) VerifyWebhookSignature(payload []byte, signature string) bool {
	params, err := url.ParseQuery(string(payload))
	if err != nil {
		return false
	}
	return g.VerifyResponseHash(params)
}

// VerifyResponseHash checks the hash field of a callback payload.
func (g *PayU) VerifyResponseHash(params url.Values) bool {
	expected := g.responseHash(params.Get("status"), params.Get("email"),
		params.Get("firstname"), params.Get("productinfo"), params.Get("amount"),
		params.Get("txnid"))
	return hmacEqual(expected, params.Get("hash"))
}

// requestHash is sha512 over the pipe-joined checkout fields with five empty
// udf slots and six reserved slots before the salt.
func (g *PayU) requestHash(txnID, amount, productInfo, firstName, email string) string {
	return sha512Hex(g.creds.APIKey + "|" + txnID + "|" + amount + "|" + productInfo +
		"|" + firstName + "|" + email + "|||||||||||" + g.creds.SecretKey)
}

// responseHash is the request hash sequence reversed, keyed by the salt.
func (g *PayU) responseHash(status, email, firstName, productInfo, amount, txnID string) string {
	return sha512Hex(g.creds.SecretKey + "|" + status + "|||||||||||" + email +
		"|" + firstName + "|" + productInfo + "|" + amount + "|" + txnID + "|" + g.creds.APIKey)
}

func payuTxnID(orderID string) string {
	id := strings.ReplaceAll(orderID, "-", "")
	if len(id) > payuTxnIDMaxLen {
		id = id[:payuTxnIDMaxLen]
	}
	return id
}
