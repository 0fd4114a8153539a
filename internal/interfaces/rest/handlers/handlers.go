// Package handlers exposes the payment core over HTTP. Routes are registered
// on a plain ServeMux using method patterns; every response uses the shared
// APIResponse envelope.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/mealstack/payment-core/internal/application/services"
	"github.com/mealstack/payment-core/internal/domain"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, cmd services.InitiatePaymentCommand) (*services.InitiatePaymentResponse, error)
	CreatePaymentLink(ctx context.Context, cmd services.CreatePaymentLinkCommand) (*services.PaymentLinkResponse, error)
	VerifyPayment(ctx context.Context, cmd services.VerifyPaymentCommand) (*services.GatewayTransactionResponse, error)
	VerifyPaymentPublic(ctx context.Context, cmd services.VerifyPaymentCommand) (*services.GatewayTransactionResponse, error)
	GetPaymentStatus(ctx context.Context, tenantID, transactionID string) (*services.GatewayTransactionResponse, error)
	GetOrderPaymentStatus(ctx context.Context, tenantID, orderID string) (*services.PaymentStatusResponse, error)
}

type RefundService interface {
	Refund(ctx context.Context, cmd services.RefundCommand) (*services.RefundResponse, error)
	GetRefundsByTransaction(ctx context.Context, tenantID, transactionID string) ([]*services.RefundResponse, error)
}

type WebhookService interface {
	Process(ctx context.Context, gatewayType domain.GatewayType, payload []byte, signature string) error
}

type ConfigService interface {
	SaveConfig(ctx context.Context, cmd services.SaveConfigCommand) (*services.GatewayConfigResponse, error)
	ReactivateConfig(ctx context.Context, tenantID, configID string) (*services.GatewayConfigResponse, error)
	DeactivateConfig(ctx context.Context, tenantID, configID string) error
	ListConfigs(ctx context.Context, tenantID string) ([]*services.GatewayConfigResponse, error)
}

type QueryService interface {
	GetTransaction(ctx context.Context, tenantID, id string) (*services.GatewayTransactionResponse, error)
	GetTransactionByOrder(ctx context.Context, tenantID, orderID string) (*services.GatewayTransactionResponse, error)
	GetTransactionsByOutlet(ctx context.Context, tenantID, outletID string, limit int) ([]*services.GatewayTransactionResponse, error)
}

type PaymentHandler struct {
	paymentService PaymentService
	refundService  RefundService
	webhookService WebhookService
	configService  ConfigService
	queryService   QueryService
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewPaymentHandler(
	paymentService PaymentService,
	refundService RefundService,
	webhookService WebhookService,
	configService ConfigService,
	queryService QueryService,
	logger *slog.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		refundService:  refundService,
		webhookService: webhookService,
		configService:  configService,
		queryService:   queryService,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (h *PaymentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/payments/initiate", h.HandleInitiate)
	mux.HandleFunc("POST /api/payments/link", h.HandleCreateLink)
	mux.HandleFunc("POST /api/payments/verify", h.HandleVerify)
	mux.HandleFunc("POST /api/payments/{transactionId}/refund", h.HandleRefund)
	mux.HandleFunc("GET /api/payments/{transactionId}/refunds", h.HandleListRefunds)
	mux.HandleFunc("GET /api/payments/{transactionId}/status", h.HandleStatus)
	mux.HandleFunc("GET /api/payments/{transactionId}", h.HandleGetTransaction)
	mux.HandleFunc("GET /api/payments/order/{orderId}", h.HandleGetByOrder)
	mux.HandleFunc("GET /api/payments/order/{orderId}/status", h.HandleOrderStatus)
	mux.HandleFunc("GET /api/outlets/{outletId}/payments", h.HandleListByOutlet)

	// No auth: redirect targets and gateway callbacks.
	mux.HandleFunc("POST /api/public/payments/verify", h.HandleVerifyPublic)
	mux.HandleFunc("POST /api/webhooks/{gatewayType}", h.HandleWebhook)

	mux.HandleFunc("POST /api/configs", h.HandleSaveConfig)
	mux.HandleFunc("GET /api/configs", h.HandleListConfigs)
	mux.HandleFunc("POST /api/configs/{configId}/reactivate", h.HandleReactivateConfig)
	mux.HandleFunc("POST /api/configs/{configId}/deactivate", h.HandleDeactivateConfig)
}
