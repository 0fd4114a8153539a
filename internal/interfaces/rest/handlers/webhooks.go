package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/interfaces/rest"
)

// HandleWebhook ingests a gateway callback. The response is 200 regardless of
// processing outcome so providers do not retry deliveries we have already
// recorded; failures live on the stored event for the replay worker.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	gatewayType, ok := domain.ParseGatewayType(strings.ToUpper(r.PathValue("gatewayType")))
	if !ok {
		rest.RespondWithJSON(w, http.StatusNotFound, &rest.APIError{
			Code:    "NOT_FOUND",
			Message: "unknown gateway type",
		})
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "gateway_type", gatewayType, "error", err)
		rest.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	if err := h.webhookService.Process(r.Context(), gatewayType, payload, webhookSignature(r, gatewayType)); err != nil {
		h.logger.Error("webhook ingestion failed", "gateway_type", gatewayType, "error", err)
	}

	rest.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// webhookSignature pulls the provider's signature header; PayU sends none.
func webhookSignature(r *http.Request, gatewayType domain.GatewayType) string {
	switch gatewayType {
	case domain.GatewayRazorpay:
		return r.Header.Get("X-Razorpay-Signature")
	case domain.GatewayStripe:
		return r.Header.Get("Stripe-Signature")
	case domain.GatewayBharatPay:
		return r.Header.Get("X-Bharatpay-Signature")
	default:
		return ""
	}
}
