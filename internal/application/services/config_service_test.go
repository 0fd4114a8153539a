package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
	"github.com/mealstack/payment-core/internal/infrastructure/crypto"
)

type configFixture struct {
	service  *ConfigService
	configs  *MockConfigRepository
	registry *MockGatewayRegistry
	vault    *crypto.Vault
}

func newConfigFixture(t *testing.T) *configFixture {
	t.Helper()
	vault, err := crypto.NewVault("config-test-key")
	require.NoError(t, err)

	configs := NewMockConfigRepository()
	registry := NewMockGatewayRegistry(NewMockGateway(domain.GatewayRazorpay))

	return &configFixture{
		service:  NewConfigService(configs, vault, registry, testLogger()),
		configs:  configs,
		registry: registry,
		vault:    vault,
	}
}

func saveCommand() SaveConfigCommand {
	return SaveConfigCommand{
		TenantID:    "tenant-1",
		GatewayType: domain.GatewayRazorpay,
		APIKey:      "rzp_key",
		SecretKey:   "rzp_secret",
	}
}

func TestSaveConfig(t *testing.T) {
	f := newConfigFixture(t)

	resp, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ConfigID)
	assert.True(t, resp.IsActive)
	assert.True(t, resp.HasCredentials)

	stored, err := f.configs.FindByID(context.Background(), resp.ConfigID)
	require.NoError(t, err)

	// Stored values are ciphertext, not the submitted secrets.
	require.NotNil(t, stored.APIKeyEncrypted)
	assert.NotEqual(t, "rzp_key", *stored.APIKeyEncrypted)
	decrypted, err := f.vault.Decrypt(*stored.APIKeyEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "rzp_key", decrypted)

	assert.Equal(t, []string{"tenant-1:RAZORPAY"}, f.registry.InvalidateCalls)
}

func TestSaveConfig_RequiresCredentials(t *testing.T) {
	f := newConfigFixture(t)

	cmd := saveCommand()
	cmd.SecretKey = ""

	_, err := f.service.SaveConfig(context.Background(), cmd)
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidInput, svcErr.Code)
}

func TestSaveConfig_DeactivatesSibling(t *testing.T) {
	f := newConfigFixture(t)

	first, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	second, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)
	require.NotEqual(t, first.ConfigID, second.ConfigID)

	old, err := f.configs.FindByID(context.Background(), first.ConfigID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	current, err := f.configs.FindByID(context.Background(), second.ConfigID)
	require.NoError(t, err)
	assert.True(t, current.IsActive)
}

func TestSaveConfig_UpdateKeepsStoredSecretsWhenBlank(t *testing.T) {
	f := newConfigFixture(t)

	created, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	// Update with blank credentials flips live mode only.
	cmd := SaveConfigCommand{
		ConfigID:    created.ConfigID,
		TenantID:    "tenant-1",
		GatewayType: domain.GatewayRazorpay,
		IsLiveMode:  true,
	}
	updated, err := f.service.SaveConfig(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, updated.IsLiveMode)

	stored, err := f.configs.FindByID(context.Background(), created.ConfigID)
	require.NoError(t, err)
	decrypted, err := f.vault.Decrypt(*stored.SecretKeyEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "rzp_secret", decrypted)
}

func TestSaveConfig_RejectsForeignConfig(t *testing.T) {
	f := newConfigFixture(t)

	created, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	cmd := saveCommand()
	cmd.ConfigID = created.ConfigID
	cmd.TenantID = "tenant-2"

	_, err = f.service.SaveConfig(context.Background(), cmd)
	require.Error(t, err)
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeNotFound, svcErr.Code)
}

func TestReactivateConfig(t *testing.T) {
	f := newConfigFixture(t)

	first, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)
	second, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	resp, err := f.service.ReactivateConfig(context.Background(), "tenant-1", first.ConfigID)
	require.NoError(t, err)
	assert.True(t, resp.IsActive)

	// The previously active sibling dropped out.
	sibling, err := f.configs.FindByID(context.Background(), second.ConfigID)
	require.NoError(t, err)
	assert.False(t, sibling.IsActive)

	active, err := f.configs.FindActiveByTenantAndGateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	require.NoError(t, err)
	assert.Equal(t, first.ConfigID, active.ID)
}

func TestDeactivateConfig(t *testing.T) {
	f := newConfigFixture(t)

	created, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	require.NoError(t, f.service.DeactivateConfig(context.Background(), "tenant-1", created.ConfigID))

	_, err = f.configs.FindActiveByTenantAndGateway(context.Background(), "tenant-1", domain.GatewayRazorpay)
	assert.ErrorIs(t, err, application.ErrConfigNotFound)

	// Every lifecycle change invalidated the cached adapter.
	assert.Len(t, f.registry.InvalidateCalls, 2)
}

func TestListConfigs_RedactsCredentials(t *testing.T) {
	f := newConfigFixture(t)

	_, err := f.service.SaveConfig(context.Background(), saveCommand())
	require.NoError(t, err)

	list, err := f.service.ListConfigs(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].HasCredentials)
}
