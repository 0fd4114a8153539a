package gateway

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/crypto"
)

type stubConfigRepository struct {
	configs map[string]*domain.TenantGatewayConfig
}

func (s *stubConfigRepository) Create(ctx context.Context, config *domain.TenantGatewayConfig) error {
	s.configs[config.ID] = config
	return nil
}

func (s *stubConfigRepository) Update(ctx context.Context, config *domain.TenantGatewayConfig) error {
	s.configs[config.ID] = config
	return nil
}

func (s *stubConfigRepository) FindByID(ctx context.Context, id string) (*domain.TenantGatewayConfig, error) {
	if c, ok := s.configs[id]; ok {
		return c, nil
	}
	return nil, application.ErrConfigNotFound
}

func (s *stubConfigRepository) FindActiveByTenantAndGateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (*domain.TenantGatewayConfig, error) {
	for _, c := range s.configs {
		if c.TenantID == tenantID && c.GatewayType == gatewayType && c.IsActive {
			return c, nil
		}
	}
	return nil, application.ErrConfigNotFound
}

func (s *stubConfigRepository) FindPrimaryActiveByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayConfig, error) {
	var oldest *domain.TenantGatewayConfig
	for _, c := range s.configs {
		if c.TenantID != tenantID || !c.IsActive {
			continue
		}
		if oldest == nil || c.CreatedAt.Before(oldest.CreatedAt) {
			oldest = c
		}
	}
	if oldest == nil {
		return nil, application.ErrConfigNotFound
	}
	return oldest, nil
}

func (s *stubConfigRepository) FindAllByTenant(ctx context.Context, tenantID string) ([]*domain.TenantGatewayConfig, error) {
	var out []*domain.TenantGatewayConfig
	for _, c := range s.configs {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubConfigRepository) FindActiveByGatewayType(ctx context.Context, gatewayType domain.GatewayType) ([]*domain.TenantGatewayConfig, error) {
	var out []*domain.TenantGatewayConfig
	for _, c := range s.configs {
		if c.GatewayType == gatewayType && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestRegistry(t *testing.T) (*Registry, *stubConfigRepository, *crypto.Vault) {
	t.Helper()
	vault, err := crypto.NewVault("registry-test-key")
	require.NoError(t, err)

	repo := &stubConfigRepository{configs: make(map[string]*domain.TenantGatewayConfig)}
	registry := NewRegistry(repo, vault, 10*time.Second, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	return registry, repo, vault
}

func seedConfig(t *testing.T, repo *stubConfigRepository, vault *crypto.Vault, id, tenantID string, gatewayType domain.GatewayType) *domain.TenantGatewayConfig {
	t.Helper()
	apiKey, err := vault.Encrypt("api-key-" + id)
	require.NoError(t, err)
	secretKey, err := vault.Encrypt("secret-key-" + id)
	require.NoError(t, err)

	config := &domain.TenantGatewayConfig{
		ID:                 id,
		TenantID:           tenantID,
		GatewayType:        gatewayType,
		APIKeyEncrypted:    &apiKey,
		SecretKeyEncrypted: &secretKey,
		IsActive:           true,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	repo.configs[id] = config
	return config
}

func TestRegistry_Gateway(t *testing.T) {
	registry, repo, vault := newTestRegistry(t)
	seedConfig(t, repo, vault, "cfg-1", "tenant-1", domain.GatewayRazorpay)

	gw, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayRazorpay, gw.Type())
	// Decrypted credentials flow into the adapter.
	assert.Equal(t, "api-key-cfg-1", gw.PublicKey())
}

func TestRegistry_Gateway_NotConfigured(t *testing.T) {
	registry, _, _ := newTestRegistry(t)

	_, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayStripe)
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayNotConfigured, svcErr.Code)
}

func TestRegistry_Gateway_MissingCredentials(t *testing.T) {
	registry, repo, _ := newTestRegistry(t)
	repo.configs["cfg-1"] = &domain.TenantGatewayConfig{
		ID:          "cfg-1",
		TenantID:    "tenant-1",
		GatewayType: domain.GatewayRazorpay,
		IsActive:    true,
	}

	_, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.Error(t, err)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeGatewayNotConfigured, svcErr.Code)
}

func TestRegistry_CachesAdapterInstances(t *testing.T) {
	registry, repo, vault := newTestRegistry(t)
	seedConfig(t, repo, vault, "cfg-1", "tenant-1", domain.GatewayRazorpay)

	first, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	second, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestRegistry_InvalidateRebuildsAdapter(t *testing.T) {
	registry, repo, vault := newTestRegistry(t)
	seedConfig(t, repo, vault, "cfg-1", "tenant-1", domain.GatewayRazorpay)

	first, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)

	// Rotate the stored key and invalidate; the next resolution must see it.
	rotated, err := vault.Encrypt("rotated-api-key")
	require.NoError(t, err)
	repo.configs["cfg-1"].APIKeyEncrypted = &rotated
	registry.Invalidate("tenant-1", domain.GatewayRazorpay)

	second, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, "rotated-api-key", second.PublicKey())
}

func TestRegistry_InvalidateTenantDropsAllAdapters(t *testing.T) {
	registry, repo, vault := newTestRegistry(t)
	seedConfig(t, repo, vault, "cfg-1", "tenant-1", domain.GatewayRazorpay)
	seedConfig(t, repo, vault, "cfg-2", "tenant-1", domain.GatewayStripe)

	razorpay, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	stripe, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayStripe)
	require.NoError(t, err)

	registry.InvalidateTenant("tenant-1")

	razorpayAfter, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	stripeAfter, err := registry.Gateway(context.Background(), "tenant-1", domain.GatewayStripe)
	require.NoError(t, err)

	assert.NotSame(t, razorpay, razorpayAfter)
	assert.NotSame(t, stripe, stripeAfter)
}

func TestRegistry_PrimaryGatewayPicksOldestActive(t *testing.T) {
	registry, repo, vault := newTestRegistry(t)

	older := seedConfig(t, repo, vault, "cfg-1", "tenant-1", domain.GatewayRazorpay)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	seedConfig(t, repo, vault, "cfg-2", "tenant-1", domain.GatewayStripe)

	gw, err := registry.PrimaryGateway(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayRazorpay, gw.Type())
}
