package postgres

import (
	"github.com/mealstack/payment-core/internal/domain"
)

func toTransactionDomain(m TransactionModel) *domain.Transaction {
	return &domain.Transaction{
		ID:               m.ID,
		TenantID:         m.TenantID,
		OutletID:         m.OutletID,
		OrderID:          m.OrderID,
		PaymentID:        m.PaymentID,
		GatewayType:      domain.GatewayType(m.GatewayType),
		GatewayOrderID:   m.GatewayOrderID,
		GatewayPaymentID: m.GatewayPaymentID,
		GatewaySignature: m.GatewaySignature,
		Amount:           m.Amount,
		Currency:         m.Currency,
		Status:           domain.TransactionStatus(m.Status),
		PaymentMethod:    m.PaymentMethod,
		FailureReason:    m.FailureReason,
		GatewayResponse:  m.GatewayResponse,
		IdempotencyKey:   m.IdempotencyKey,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		CompletedAt:      m.CompletedAt,
	}
}

func toTransactionModel(t *domain.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:               t.ID,
		TenantID:         t.TenantID,
		OutletID:         t.OutletID,
		OrderID:          t.OrderID,
		PaymentID:        t.PaymentID,
		GatewayType:      string(t.GatewayType),
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		GatewaySignature: t.GatewaySignature,
		Amount:           t.Amount,
		Currency:         t.Currency,
		Status:           string(t.Status),
		PaymentMethod:    t.PaymentMethod,
		FailureReason:    t.FailureReason,
		GatewayResponse:  t.GatewayResponse,
		IdempotencyKey:   t.IdempotencyKey,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
		CompletedAt:      t.CompletedAt,
	}
}

func toRefundDomain(m RefundModel) *domain.Refund {
	return &domain.Refund{
		ID:              m.ID,
		TransactionID:   m.TransactionID,
		GatewayRefundID: m.GatewayRefundID,
		Amount:          m.Amount,
		Status:          domain.RefundStatus(m.Status),
		Reason:          m.Reason,
		GatewayResponse: m.GatewayResponse,
		CreatedAt:       m.CreatedAt,
		ProcessedAt:     m.ProcessedAt,
	}
}

func toRefundModel(r *domain.Refund) *RefundModel {
	return &RefundModel{
		ID:              r.ID,
		TransactionID:   r.TransactionID,
		GatewayRefundID: r.GatewayRefundID,
		Amount:          r.Amount,
		Status:          string(r.Status),
		Reason:          r.Reason,
		GatewayResponse: r.GatewayResponse,
		CreatedAt:       r.CreatedAt,
		ProcessedAt:     r.ProcessedAt,
	}
}

func toWebhookEventDomain(m WebhookEventModel) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:              m.ID,
		GatewayType:     domain.GatewayType(m.GatewayType),
		EventType:       m.EventType,
		GatewayEventID:  m.GatewayEventID,
		Payload:         m.Payload,
		Signature:       m.Signature,
		IsVerified:      m.IsVerified,
		IsProcessed:     m.IsProcessed,
		ProcessingError: m.ProcessingError,
		CreatedAt:       m.CreatedAt,
		ProcessedAt:     m.ProcessedAt,
	}
}

func toWebhookEventModel(e *domain.WebhookEvent) *WebhookEventModel {
	return &WebhookEventModel{
		ID:              e.ID,
		GatewayType:     string(e.GatewayType),
		EventType:       e.EventType,
		GatewayEventID:  e.GatewayEventID,
		Payload:         e.Payload,
		Signature:       e.Signature,
		IsVerified:      e.IsVerified,
		IsProcessed:     e.IsProcessed,
		ProcessingError: e.ProcessingError,
		CreatedAt:       e.CreatedAt,
		ProcessedAt:     e.ProcessedAt,
	}
}

func toGatewayConfigDomain(m GatewayConfigModel) *domain.TenantGatewayConfig {
	return &domain.TenantGatewayConfig{
		ID:                     m.ID,
		TenantID:               m.TenantID,
		GatewayType:            domain.GatewayType(m.GatewayType),
		APIKeyEncrypted:        m.APIKeyEncrypted,
		SecretKeyEncrypted:     m.SecretKeyEncrypted,
		WebhookSecretEncrypted: m.WebhookSecretEncrypted,
		MerchantID:             m.MerchantID,
		IsActive:               m.IsActive,
		IsLiveMode:             m.IsLiveMode,
		AdditionalConfig:       m.AdditionalConfig,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

func toGatewayConfigModel(c *domain.TenantGatewayConfig) *GatewayConfigModel {
	return &GatewayConfigModel{
		ID:                     c.ID,
		TenantID:               c.TenantID,
		GatewayType:            string(c.GatewayType),
		APIKeyEncrypted:        c.APIKeyEncrypted,
		SecretKeyEncrypted:     c.SecretKeyEncrypted,
		WebhookSecretEncrypted: c.WebhookSecretEncrypted,
		MerchantID:             c.MerchantID,
		IsActive:               c.IsActive,
		IsLiveMode:             c.IsLiveMode,
		AdditionalConfig:       c.AdditionalConfig,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}
