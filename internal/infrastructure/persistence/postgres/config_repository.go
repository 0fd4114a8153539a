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

const configColumns = `
	id, tenant_id, gateway_type, api_key_encrypted, secret_key_encrypted,
	webhook_secret_encrypted, merchant_id, is_active, is_live_mode,
	additional_config, created_at, updated_at`

type ConfigRepository struct {
	q persistence.Executor
}

func NewConfigRepository(db *persistence.DB) *ConfigRepository {
	return &ConfigRepository{q: db.Pool}
}

func (r *ConfigRepository) Create(ctx context.Context, config *domain.TenantGatewayConfig) error {
	query := `
		INSERT INTO tenant_gateway_configs (` + configColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	m := toGatewayConfigModel(config)
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TenantID, m.GatewayType, m.APIKeyEncrypted, m.SecretKeyEncrypted,
		m.WebhookSecretEncrypted, m.MerchantID, m.IsActive, m.IsLiveMode,
		m.AdditionalConfig, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create gateway config: %w", err)
	}
	return nil
}

func (r *ConfigRepository) Update(ctx context.Context, config *domain.TenantGatewayConfig) error {
	query := `
		UPDATE tenant_gateway_configs
		SET api_key_encrypted = $1, secret_key_encrypted = $2, webhook_secret_encrypted = $3,
			merchant_id = $4, is_active = $5, is_live_mode = $6,
			additional_config = $7, updated_at = $8
		WHERE id = $9
	`

	m := toGatewayConfigModel(config)
	result, err := r.q.Exec(ctx, query,
		m.APIKeyEncrypted, m.SecretKeyEncrypted, m.WebhookSecretEncrypted,
		m.MerchantID, m.IsActive, m.IsLiveMode,
		m.AdditionalConfig, m.UpdatedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gateway config: %w", err)
	}
	if result.RowsAffected() == 0 {
		return application.ErrConfigNotFound
	}
	return nil
}

func (r *ConfigRepository) FindByID(ctx context.Context, id string) (*domain.TenantGatewayConfig, error) {
	query := `SELECT ` + configColumns + ` FROM tenant_gateway_configs WHERE id = $1`
	return scanGatewayConfig(r.q.QueryRow(ctx, query, id))
}

func (r *ConfigRepository) FindActiveByTenantAndGateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (*domain.TenantGatewayConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM tenant_gateway_configs
		WHERE tenant_id = $1 AND gateway_type = $2 AND is_active = TRUE
	`
	return scanGatewayConfig(r.q.QueryRow(ctx, query, tenantID, string(gatewayType)))
}

// FindPrimaryActiveByTenant returns the tenant's oldest active config.
func (r *ConfigRepository) FindPrimaryActiveByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM tenant_gateway_configs
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY created_at ASC
		LIMIT 1
	`
	return scanGatewayConfig(r.q.QueryRow(ctx, query, tenantID))
}

func (r *ConfigRepository) FindAllByTenant(ctx context.Context, tenantID string) ([]*domain.TenantGatewayConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM tenant_gateway_configs
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query configs by tenant: %w", err)
	}
	return collectGatewayConfigs(rows)
}

// FindActiveByGatewayType returns every tenant's active config for one
// provider. The webhook path trial-verifies deliveries against these.
func (r *ConfigRepository) FindActiveByGatewayType(ctx context.Context, gatewayType domain.GatewayType) ([]*domain.TenantGatewayConfig, error) {
	query := `
		SELECT ` + configColumns + `
		FROM tenant_gateway_configs
		WHERE gateway_type = $1 AND is_active = TRUE
		ORDER BY created_at ASC
	`

	rows, err := r.q.Query(ctx, query, string(gatewayType))
	if err != nil {
		return nil, fmt.Errorf("query configs by gateway type: %w", err)
	}
	return collectGatewayConfigs(rows)
}

func collectGatewayConfigs(rows pgx.Rows) ([]*domain.TenantGatewayConfig, error) {
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.TenantGatewayConfig, error) {
		var m GatewayConfigModel
		err := row.Scan(
			&m.ID, &m.TenantID, &m.GatewayType, &m.APIKeyEncrypted, &m.SecretKeyEncrypted,
			&m.WebhookSecretEncrypted, &m.MerchantID, &m.IsActive, &m.IsLiveMode,
			&m.AdditionalConfig, &m.CreatedAt, &m.UpdatedAt,
		)
		return toGatewayConfigDomain(m), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan gateway config rows: %w", err)
	}
	return results, nil
}

func scanGatewayConfig(row pgx.Row) (*domain.TenantGatewayConfig, error) {
	var m GatewayConfigModel
	err := row.Scan(
		&m.ID, &m.TenantID, &m.GatewayType, &m.APIKeyEncrypted, &m.SecretKeyEncrypted,
		&m.WebhookSecretEncrypted, &m.MerchantID, &m.IsActive, &m.IsLiveMode,
		&m.AdditionalConfig, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to scan gateway config: %w", err)
	}
	return toGatewayConfigDomain(m), nil
}
