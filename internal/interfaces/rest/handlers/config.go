package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/interfaces/rest"
)

type SaveConfigRequest struct {
	ConfigID         string `json:"configId"`
	GatewayType      string `json:"gatewayType" validate:"required"`
	APIKey           string `json:"apiKey"`
	SecretKey        string `json:"secretKey"`
	WebhookSecret    string `json:"webhookSecret"`
	MerchantID       string `json:"merchantId"`
	IsLiveMode       bool   `json:"isLiveMode"`
	AdditionalConfig string `json:"additionalConfig"`
}

func (h *PaymentHandler) HandleSaveConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	var req SaveConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		rest.WriteValidationError(w, err)
		return
	}

	gatewayType, valid := domain.ParseGatewayType(req.GatewayType)
	if !valid {
		rest.RespondWithJSON(w, http.StatusBadRequest, &rest.APIError{
			Code:    "VALIDATION_ERROR",
			Message: "unknown gateway type: " + req.GatewayType,
		})
		return
	}

	resp, err := h.configService.SaveConfig(r.Context(), services.SaveConfigCommand{
		ConfigID:         req.ConfigID,
		TenantID:         tenantID,
		GatewayType:      gatewayType,
		APIKey:           req.APIKey,
		SecretKey:        req.SecretKey,
		WebhookSecret:    req.WebhookSecret,
		MerchantID:       req.MerchantID,
		IsLiveMode:       req.IsLiveMode,
		AdditionalConfig: req.AdditionalConfig,
	})
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.configService.ListConfigs(r.Context(), tenantID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleReactivateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	resp, err := h.configService.ReactivateConfig(r.Context(), tenantID, r.PathValue("configId"))
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *PaymentHandler) HandleDeactivateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantID(w, r)
	if !ok {
		return
	}

	if err := h.configService.DeactivateConfig(r.Context(), tenantID, r.PathValue("configId")); err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	rest.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
