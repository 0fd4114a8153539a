package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/interfaces/rest"
	"github.com/shopspring/decimal"
)

type InitiatePaymentRequest struct {
	OutletID    string          `json:"outletId"`
	OrderID     string          `json:"orderId" validate:"required"`
	PaymentID   string          `json:"paymentId"`
	GatewayType string          `json:"gatewayType"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Currency    string          `json:"currency"`
}

type CreateLinkRequest struct {
	OutletID        string          `json:"outletId"`
	OrderID         string          `json:"orderId" validate:"required"`
	GatewayType     string          `json:"gatewayType"`
	Amount          decimal.Decimal `json:"amount" validate:"required"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	CustomerName    string          `json:"customerName"`
	CustomerContact string          `json:"customerContact"`
	CallbackURL     string          `json:"callbackUrl"`
}

type VerifyPaymentRequest struct {
	TransactionID    string            `json:"transactionId" validate:"required"`
	GatewayOrderID   string            `json:"gatewayOrderId"`
	GatewayPaymentID string            `json:"gatewayPaymentId"`
	Signature        string            `json:"signature"`
	AdditionalData   map[string]string `json:"additionalData"`
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason"`
}

func (h *PaymentHandler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	resp, err := h.paymentService.InitiatePayment(r.Context(), services.InitiatePaymentCommand{
		TenantID:       tenantID,
		OutletID:       req.OutletID,
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		GatewayType:    req.GatewayType,
		Amount:         req.Amount,
		Currency:       defaultCurrency(req.Currency),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	resp, err := h.paymentService.CreatePaymentLink(r.Context(), services.CreatePaymentLinkCommand{
		TenantID:        tenantID,
		OutletID:        req.OutletID,
		OrderID:         req.OrderID,
		GatewayType:     req.GatewayType,
		Amount:          req.Amount,
		Currency:        defaultCurrency(req.Currency),
		Description:     req.Description,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		CallbackURL:     req.CallbackURL,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	resp, err := h.paymentService.VerifyPayment(r.Context(), services.VerifyPaymentCommand{
		TenantID:         tenantID,
		TransactionID:    req.TransactionID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		AdditionalData:   req.AdditionalData,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	resp, err := h.refundService.Refund(r.Context(), services.RefundCommand{
		TenantID:      tenantID,
		TransactionID: r.PathValue("transactionId"),
		Amount:        req.Amount,
		Reason:        req.Reason,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleListRefunds(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.refundService.GetRefundsByTransaction(r.Context(), tenantID, r.PathValue("transactionId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.paymentService.GetPaymentStatus(r.Context(), tenantID, r.PathValue("transactionId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleOrderStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.paymentService.GetOrderPaymentStatus(r.Context(), tenantID, r.PathValue("orderId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.queryService.GetTransaction(r.Context(), tenantID, r.PathValue("transactionId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleGetByOrder(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.queryService.GetTransactionByOrder(r.Context(), tenantID, r.PathValue("orderId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleListByOutlet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp, err := h.queryService.GetTransactionsByOutlet(r.Context(), tenantID, r.PathValue("outletId"), limit)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

// tenantID resolves the caller's tenant from the X-Tenant-ID header the edge
// proxy injects after authentication.
func (h *PaymentHandler) tenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		rest.RespondWithJSON(w, http.StatusBadRequest, &rest.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "X-Tenant-ID header is required",
		})
		return "", false
	}
	return tenantID, true
}

func defaultCurrency(currency string) string {
	if currency == "" {
		return "INR"
	}
	return currency
}
