package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/interfaces/rest"
)

type PublicVerifyRequest struct {
	GatewayOrderID   string            `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string            `json:"gatewayPaymentId"`
	Signature        string            `json:"signature"`
	AdditionalData   map[string]string `json:"additionalData"`
}

// HandleVerifyPublic settles a payment from a gateway redirect callback. The
// caller is unauthenticated; the transaction is located by its gateway order
// id. PayU posts form fields, everything else sends JSON.
func (h *PaymentHandler) HandleVerifyPublic(w http.ResponseWriter, r *http.Request) {
	var req PublicVerifyRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			rest.WriteValidationError(w, err)
			return
		}
		req.GatewayOrderID = r.PostForm.Get("txnid")
		req.GatewayPaymentID = r.PostForm.Get("mihpayid")
		req.Signature = r.PostForm.Get("hash")
		req.AdditionalData = make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			req.AdditionalData[key] = r.PostForm.Get(key)
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rest.WriteValidationError(w, err)
			return
		}
	}

	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	resp, err := h.paymentService.VerifyPaymentPublic(r.Context(), services.VerifyPaymentCommand{
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
