package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/persistence"
)

const webhookColumns = `
	id, gateway_type, event_type, gateway_event_id, payload, signature,
	is_verified, is_processed, processing_error, created_at, processed_at`

type WebhookEventRepository struct {
	q persistence.Executor
}

func NewWebhookEventRepository(db *persistence.DB) *WebhookEventRepository {
	return &WebhookEventRepository{q: db.Pool}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		INSERT INTO gateway_webhook_events (` + webhookColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	m := toWebhookEventModel(event)
	_, err := r.q.Exec(ctx, query,
		m.ID, m.GatewayType, m.EventType, m.GatewayEventID, m.Payload, m.Signature,
		m.IsVerified, m.IsProcessed, m.ProcessingError, m.CreatedAt, m.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) Update(ctx context.Context, event *domain.WebhookEvent) error {
	query := `
		UPDATE gateway_webhook_events
		SET event_type = $1, gateway_event_id = $2, is_verified = $3,
			is_processed = $4, processing_error = $5, processed_at = $6
		WHERE id = $7
	`

	m := toWebhookEventModel(event)
	result, err := r.q.Exec(ctx, query,
		m.EventType, m.GatewayEventID, m.IsVerified,
		m.IsProcessed, m.ProcessingError, m.ProcessedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return application.ErrWebhookNotFound
	}
	return nil
}

func (r *WebhookEventRepository) FindByID(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	query := `SELECT ` + webhookColumns + ` FROM gateway_webhook_events WHERE id = $1`
	return scanWebhookEvent(r.q.QueryRow(ctx, query, id))
}

// FindUnprocessed returns verified events whose processing never completed,
// oldest first. The replay worker retries these.
func (r *WebhookEventRepository) FindUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM gateway_webhook_events
		WHERE is_verified = TRUE AND is_processed = FALSE
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed webhook events: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.WebhookEvent, error) {
		var m WebhookEventModel
		err := row.Scan(
			&m.ID, &m.GatewayType, &m.EventType, &m.GatewayEventID, &m.Payload, &m.Signature,
			&m.IsVerified, &m.IsProcessed, &m.ProcessingError, &m.CreatedAt, &m.ProcessedAt,
		)
		return toWebhookEventDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan webhook event rows: %w", err)
	}
	return results, nil
}

func scanWebhookEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var m WebhookEventModel
	err := row.Scan(
		&m.ID, &m.GatewayType, &m.EventType, &m.GatewayEventID, &m.Payload, &m.Signature,
		&m.IsVerified, &m.IsProcessed, &m.ProcessingError, &m.CreatedAt, &m.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}
	return toWebhookEventDomain(m), nil
}
