package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/crypto"
)

// ConfigService manages tenant gateway credentials. Secrets are encrypted
// before they touch the database, and any change that affects which
// credentials are live synchronously invalidates the registry cache, so no
// request after the change runs on stale credentials.
type ConfigService struct {
	configs  application.ConfigRepository
	vault    *crypto.Vault
	registry application.GatewayRegistry
	logger   *slog.Logger
}

func NewConfigService(
	configs application.ConfigRepository,
	vault *crypto.Vault,
	registry application.GatewayRegistry,
	logger *slog.Logger,
) *ConfigService {
	return &ConfigService{
		configs:  configs,
		vault:    vault,
		registry: registry,
		logger:   logger,
	}
}

// SaveConfig creates or updates a tenant's configuration for one gateway and
// activates it, deactivating any sibling for the same type. On updates, blank
// credential fields keep the stored ciphertext.
func (s *ConfigService) SaveConfig(ctx context.Context, cmd SaveConfigCommand) (*GatewayConfigResponse, error) {
	var config *domain.TenantGatewayConfig

	if cmd.ConfigID != "" {
		existing, err := s.configs.FindByID(ctx, cmd.ConfigID)
		if err != nil {
			if errors.Is(err, application.ErrConfigNotFound) {
				return nil, application.NewNotFoundError("gateway config", err)
			}
			return nil, application.NewInternalError(err)
		}
		if existing.TenantID != cmd.TenantID {
			return nil, application.NewNotFoundError("gateway config", application.ErrConfigNotFound)
		}
		config = existing
	} else {
		now := time.Now()
		config = &domain.TenantGatewayConfig{
			ID:          uuid.New().String(),
			TenantID:    cmd.TenantID,
			GatewayType: cmd.GatewayType,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	if err := s.applyCredentials(config, cmd); err != nil {
		return nil, application.NewInternalError(err)
	}
	if !config.HasCredentials() {
		return nil, application.NewInvalidInputError("api key and secret key are required")
	}

	if err := s.deactivateSibling(ctx, cmd.TenantID, cmd.GatewayType, config.ID); err != nil {
		return nil, application.NewInternalError(err)
	}

	config.IsLiveMode = cmd.IsLiveMode
	config.Activate()

	var err error
	if cmd.ConfigID != "" {
		err = s.configs.Update(ctx, config)
	} else {
		err = s.configs.Create(ctx, config)
	}
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	s.registry.Invalidate(cmd.TenantID, cmd.GatewayType)

	s.logger.Info("gateway config saved",
		"config_id", config.ID,
		"tenant_id", cmd.TenantID,
		"gateway_type", cmd.GatewayType,
		"live_mode", cmd.IsLiveMode,
	)

	return toConfigResponse(config), nil
}

// ReactivateConfig switches the tenant's active config for a gateway type to
// a previously saved one.
func (s *ConfigService) ReactivateConfig(ctx context.Context, tenantID, configID string) (*GatewayConfigResponse, error) {
	config, err := s.configs.FindByID(ctx, configID)
	if err != nil {
		if errors.Is(err, application.ErrConfigNotFound) {
			return nil, application.NewNotFoundError("gateway config", err)
		}
		return nil, application.NewInternalError(err)
	}
	if config.TenantID != tenantID {
		return nil, application.NewNotFoundError("gateway config", application.ErrConfigNotFound)
	}

	if err := s.deactivateSibling(ctx, tenantID, config.GatewayType, config.ID); err != nil {
		return nil, application.NewInternalError(err)
	}

	config.Activate()
	if err := s.configs.Update(ctx, config); err != nil {
		return nil, application.NewInternalError(err)
	}

	s.registry.Invalidate(tenantID, config.GatewayType)

	return toConfigResponse(config), nil
}

func (s *ConfigService) DeactivateConfig(ctx context.Context, tenantID, configID string) error {
	config, err := s.configs.FindByID(ctx, configID)
	if err != nil {
		if errors.Is(err, application.ErrConfigNotFound) {
			return application.NewNotFoundError("gateway config", err)
		}
		return application.NewInternalError(err)
	}
	if config.TenantID != tenantID {
		return application.NewNotFoundError("gateway config", application.ErrConfigNotFound)
	}

	config.Deactivate()
	if err := s.configs.Update(ctx, config); err != nil {
		return application.NewInternalError(err)
	}

	s.registry.Invalidate(tenantID, config.GatewayType)
	return nil
}

// ListConfigs returns the tenant's configs with credentials redacted.
func (s *ConfigService) ListConfigs(ctx context.Context, tenantID string) ([]*GatewayConfigResponse, error) {
	configs, err := s.configs.FindAllByTenant(ctx, tenantID)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	responses := make([]*GatewayConfigResponse, 0, len(configs))
	for _, c := range configs {
		responses = append(responses, toConfigResponse(c))
	}
	return responses, nil
}

// applyCredentials encrypts the provided secrets onto the config. Blank
// fields are left as stored.
func (s *ConfigService) applyCredentials(config *domain.TenantGatewayConfig, cmd SaveConfigCommand) error {
	if cmd.APIKey != "" {
		enc, err := s.vault.Encrypt(cmd.APIKey)
		if err != nil {
			return err
		}
		config.APIKeyEncrypted = &enc
	}
	if cmd.SecretKey != "" {
		enc, err := s.vault.Encrypt(cmd.SecretKey)
		if err != nil {
			return err
		}
		config.SecretKeyEncrypted = &enc
	}
	if cmd.WebhookSecret != "" {
		enc, err := s.vault.Encrypt(cmd.WebhookSecret)
		if err != nil {
			return err
		}
		config.WebhookSecretEncrypted = &enc
	}
	if cmd.MerchantID != "" {
		config.MerchantID = &cmd.MerchantID
	}
	if cmd.AdditionalConfig != "" {
		config.AdditionalConfig = &cmd.AdditionalConfig
	}
	return nil
}

func (s *ConfigService) deactivateSibling(ctx context.Context, tenantID string, gatewayType domain.GatewayType, keepID string) error {
	active, err := s.configs.FindActiveByTenantAndGateway(ctx, tenantID, gatewayType)
	if err != nil {
		if errors.Is(err, application.ErrConfigNotFound) {
			return nil
		}
		return err
	}
	if active.ID == keepID {
		return nil
	}

	active.Deactivate()
	return s.configs.Update(ctx, active)
}
