package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/crypto"
)

// Registry resolves tenants to credential-bound adapters. Adapters are cached
// per (tenant, gateway type, live mode) and rebuilt after invalidation, so a
// credential rotation takes effect on the next resolution.
type Registry struct {
	configs    application.ConfigRepository
	vault      *crypto.Vault
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	cache map[string]application.Gateway
}

func NewRegistry(configs application.ConfigRepository, vault *crypto.Vault, connTimeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		configs:    configs,
		vault:      vault,
		httpClient: &http.Client{Timeout: connTimeout},
		logger:     logger,
		cache:      make(map[string]application.Gateway),
	}
}

// Gateway returns the adapter for the tenant's active config of the given
// type. A tenant with no active config for that type is a hard error, never a
// silent fallback to another provider.
func (r *Registry) Gateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (application.Gateway, error) {
	config, err := r.configs.FindActiveByTenantAndGateway(ctx, tenantID, gatewayType)
	if err != nil {
		if errors.Is(err, application.ErrConfigNotFound) {
			return nil, application.NewGatewayNotConfiguredError(
				fmt.Sprintf("no active %s configuration for tenant", gatewayType))
		}
		return nil, fmt.Errorf("load gateway config: %w", err)
	}
	return r.cachedGateway(config)
}

// PrimaryGateway returns the adapter for the tenant's oldest active config.
func (r *Registry) PrimaryGateway(ctx context.Context, tenantID string) (application.Gateway, error) {
	config, err := r.configs.FindPrimaryActiveByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, application.ErrConfigNotFound) {
			return nil, application.NewGatewayNotConfiguredError("no active gateway configuration for tenant")
		}
		return nil, fmt.Errorf("load primary gateway config: %w", err)
	}
	return r.cachedGateway(config)
}

// GatewayForConfig builds an adapter straight from a config row, bypassing the
// active-config lookup. The webhook path uses this for trial verification.
func (r *Registry) GatewayForConfig(config *domain.TenantGatewayConfig) (application.Gateway, error) {
	return r.cachedGateway(config)
}

func (r *Registry) Invalidate(tenantID string, gatewayType domain.GatewayType) {
	prefix := tenantID + ":" + string(gatewayType) + ":"

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
}

func (r *Registry) InvalidateTenant(tenantID string) {
	prefix := tenantID + ":"

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.cache {
		if strings.HasPrefix(key, prefix) {
			delete(r.cache, key)
		}
	}
}

func (r *Registry) cachedGateway(config *domain.TenantGatewayConfig) (application.Gateway, error) {
	key := cacheKey(config)

	r.mu.RLock()
	gw, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return gw, nil
	}

	gw, err := r.buildGateway(config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Another goroutine may have built the same adapter; keep the first one
	// so concurrent callers share an instance.
	if existing, ok := r.cache[key]; ok {
		gw = existing
	} else {
		r.cache[key] = gw
	}
	r.mu.Unlock()

	r.logger.Info("gateway adapter initialized",
		"tenant_id", config.TenantID,
		"gateway_type", config.GatewayType,
		"live_mode", config.IsLiveMode)

	return gw, nil
}

func (r *Registry) buildGateway(config *domain.TenantGatewayConfig) (application.Gateway, error) {
	if !config.HasCredentials() {
		return nil, application.NewGatewayNotConfiguredError(
			fmt.Sprintf("%s configuration is missing credentials", config.GatewayType))
	}

	creds, err := r.decryptCredentials(config)
	if err != nil {
		return nil, err
	}

	switch config.GatewayType {
	case domain.GatewayRazorpay:
		return NewRazorpay(creds, r.httpClient), nil
	case domain.GatewayStripe:
		return NewStripe(creds, r.httpClient), nil
	case domain.GatewayPayU:
		return NewPayU(creds, r.httpClient), nil
	case domain.GatewayBharatPay:
		return NewBharatPay(creds, r.httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", config.GatewayType)
	}
}

func (r *Registry) decryptCredentials(config *domain.TenantGatewayConfig) (application.GatewayCredentials, error) {
	creds := application.GatewayCredentials{
		GatewayType: config.GatewayType,
		IsLiveMode:  config.IsLiveMode,
	}

	var err error
	if creds.APIKey, err = r.vault.Decrypt(deref(config.APIKeyEncrypted)); err != nil {
		return creds, fmt.Errorf("decrypt api key for tenant %s: %w", config.TenantID, err)
	}
	if creds.SecretKey, err = r.vault.Decrypt(deref(config.SecretKeyEncrypted)); err != nil {
		return creds, fmt.Errorf("decrypt secret key for tenant %s: %w", config.TenantID, err)
	}
	if creds.WebhookSecret, err = r.vault.Decrypt(deref(config.WebhookSecretEncrypted)); err != nil {
		return creds, fmt.Errorf("decrypt webhook secret for tenant %s: %w", config.TenantID, err)
	}

	creds.MerchantID = deref(config.MerchantID)
	creds.AdditionalConfig = deref(config.AdditionalConfig)

	return creds, nil
}

func cacheKey(config *domain.TenantGatewayConfig) string {
	mode := "test"
	if config.IsLiveMode {
		mode = "live"
	}
	return config.TenantID + ":" + string(config.GatewayType) + ":" + mode
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
