package domain

import "time"

// WebhookEvent is the immutable audit record of an inbound gateway callback.
// It is persisted before any side effect is attempted, even when signature
// verification fails.
type WebhookEvent struct {
	ID              string
	GatewayType     GatewayType
	EventType       *string
	GatewayEventID  *string
	Payload         string
	Signature       *string
	IsVerified      bool
	IsProcessed     bool
	ProcessingError *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

func NewWebhookEvent(id string, gatewayType GatewayType, payload, signature string) *WebhookEvent {
	e := &WebhookEvent{
		ID:          id,
		GatewayType: gatewayType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}
	if signature != "" {
		e.Signature = &signature
	}
	return e
}

func (e *WebhookEvent) MarkVerified() {
	e.IsVerified = true
}

func (e *WebhookEvent) MarkProcessed() {
	e.IsProcessed = true
	now := time.Now()
	e.ProcessedAt = &now
}

func (e *WebhookEvent) RecordError(msg string) {
	e.ProcessingError = &msg
}
