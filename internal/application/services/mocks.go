package services

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

// MockTransactionRepository
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction

	CreateFn                 func(ctx context.Context, tx *domain.Transaction) error
	UpdateFn                 func(ctx context.Context, tx *domain.Transaction) error
	FindByIDFn               func(ctx context.Context, id string) (*domain.Transaction, error)
	FindByIDForUpdateFn      func(ctx context.Context, id string) (*domain.Transaction, error)
	FindByOrderIDFn          func(ctx context.Context, orderID string) (*domain.Transaction, error)
	FindByGatewayOrderIDFn   func(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error)
	FindByGatewayPaymentIDFn func(ctx context.Context, gatewayPaymentID string) (*domain.Transaction, error)
	FindByIdempotencyKeyFn   func(ctx context.Context, key string) (*domain.Transaction, error)
	FindByOutletIDFn         func(ctx context.Context, outletID string, limit int) ([]*domain.Transaction, error)
	FindPendingOlderThanFn   func(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
	}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, tx)
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, tx)
	}
	if _, ok := m.transactions[tx.ID]; !ok {
		return application.ErrTransactionNotFound
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *MockTransactionRepository) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if t, ok := m.transactions[id]; ok {
		return t, nil
	}
	return nil, application.ErrTransactionNotFound
}

func (m *MockTransactionRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.Transaction, error) {
	if m.FindByIDForUpdateFn != nil {
		return m.FindByIDForUpdateFn(ctx, id)
	}
	return m.FindByID(ctx, id)
}

func (m *MockTransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByOrderIDFn != nil {
		return m.FindByOrderIDFn(ctx, orderID)
	}
	var latest *domain.Transaction
	for _, t := range m.transactions {
		if t.OrderID != orderID {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, application.ErrTransactionNotFound
	}
	return latest, nil
}

func (m *MockTransactionRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByGatewayOrderIDFn != nil {
		return m.FindByGatewayOrderIDFn(ctx, gatewayOrderID)
	}
	for _, t := range m.transactions {
		if t.GatewayOrderID != nil && *t.GatewayOrderID == gatewayOrderID {
			return t, nil
		}
	}
	return nil, application.ErrTransactionNotFound
}

func (m *MockTransactionRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByGatewayPaymentIDFn != nil {
		return m.FindByGatewayPaymentIDFn(ctx, gatewayPaymentID)
	}
	for _, t := range m.transactions {
		if t.GatewayPaymentID != nil && *t.GatewayPaymentID == gatewayPaymentID {
			return t, nil
		}
	}
	return nil, application.ErrTransactionNotFound
}

func (m *MockTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIdempotencyKeyFn != nil {
		return m.FindByIdempotencyKeyFn(ctx, key)
	}
	for _, t := range m.transactions {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			return t, nil
		}
	}
	return nil, application.ErrTransactionNotFound
}

func (m *MockTransactionRepository) FindByOutletID(ctx context.Context, outletID string, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByOutletIDFn != nil {
		return m.FindByOutletIDFn(ctx, outletID, limit)
	}
	var out []*domain.Transaction
	for _, t := range m.transactions {
		if t.OutletID == outletID {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) FindPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindPendingOlderThanFn != nil {
		return m.FindPendingOlderThanFn(ctx, age, limit)
	}
	cutoff := time.Now().Add(-age)
	var out []*domain.Transaction
	for _, t := range m.transactions {
		if t.Status == domain.StatusPending && t.UpdatedAt.Before(cutoff) {
			out = append(out, t)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MockRefundRepository
type MockRefundRepository struct {
	mu      sync.RWMutex
	refunds map[string]*domain.Refund

	CreateFn                func(ctx context.Context, refund *domain.Refund) error
	UpdateFn                func(ctx context.Context, refund *domain.Refund) error
	FindByIDFn              func(ctx context.Context, id string) (*domain.Refund, error)
	FindByTransactionIDFn   func(ctx context.Context, transactionID string) ([]*domain.Refund, error)
	FindByGatewayRefundIDFn func(ctx context.Context, gatewayRefundID string) (*domain.Refund, error)
}

func NewMockRefundRepository() *MockRefundRepository {
	return &MockRefundRepository{
		refunds: make(map[string]*domain.Refund),
	}
}

func (m *MockRefundRepository) Create(ctx context.Context, refund *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, refund)
	}
	m.refunds[refund.ID] = refund
	return nil
}

func (m *MockRefundRepository) Update(ctx context.Context, refund *domain.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, refund)
	}
	if _, ok := m.refunds[refund.ID]; !ok {
		return application.ErrRefundNotFound
	}
	m.refunds[refund.ID] = refund
	return nil
}

func (m *MockRefundRepository) FindByID(ctx context.Context, id string) (*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if r, ok := m.refunds[id]; ok {
		return r, nil
	}
	return nil, application.ErrRefundNotFound
}

func (m *MockRefundRepository) FindByTransactionID(ctx context.Context, transactionID string) ([]*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByTransactionIDFn != nil {
		return m.FindByTransactionIDFn(ctx, transactionID)
	}
	var out []*domain.Refund
	for _, r := range m.refunds {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockRefundRepository) FindByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*domain.Refund, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByGatewayRefundIDFn != nil {
		return m.FindByGatewayRefundIDFn(ctx, gatewayRefundID)
	}
	for _, r := range m.refunds {
		if r.GatewayRefundID != nil && *r.GatewayRefundID == gatewayRefundID {
			return r, nil
		}
	}
	return nil, application.ErrRefundNotFound
}

// MockTxRunner hands the callback the same mock repositories the test seeded.
// There is no real transaction to roll back, so a callback error simply
// propagates.
type MockTxRunner struct {
	transactions application.TransactionRepository
	refunds      application.RefundRepository

	WithTxFn func(ctx context.Context, fn func(txs application.TransactionRepository, refunds application.RefundRepository) error) error
}

func NewMockTxRunner(transactions application.TransactionRepository, refunds application.RefundRepository) *MockTxRunner {
	return &MockTxRunner{
		transactions: transactions,
		refunds:      refunds,
	}
}

func (m *MockTxRunner) WithTx(ctx context.Context, fn func(txs application.TransactionRepository, refunds application.RefundRepository) error) error {
	if m.WithTxFn != nil {
		return m.WithTxFn(ctx, fn)
	}
	return fn(m.transactions, m.refunds)
}

// MockWebhookEventRepository
type MockWebhookEventRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.WebhookEvent

	CreateFn          func(ctx context.Context, event *domain.WebhookEvent) error
	UpdateFn          func(ctx context.Context, event *domain.WebhookEvent) error
	FindByIDFn        func(ctx context.Context, id string) (*domain.WebhookEvent, error)
	FindUnprocessedFn func(ctx context.Context, limit int) ([]*domain.WebhookEvent, error)
}

func NewMockWebhookEventRepository() *MockWebhookEventRepository {
	return &MockWebhookEventRepository{
		events: make(map[string]*domain.WebhookEvent),
	}
}

func (m *MockWebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, event)
	}
	m.events[event.ID] = event
	return nil
}

func (m *MockWebhookEventRepository) Update(ctx context.Context, event *domain.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, event)
	}
	if _, ok := m.events[event.ID]; !ok {
		return application.ErrWebhookNotFound
	}
	m.events[event.ID] = event
	return nil
}

func (m *MockWebhookEventRepository) FindByID(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if e, ok := m.events[id]; ok {
		return e, nil
	}
	return nil, application.ErrWebhookNotFound
}

func (m *MockWebhookEventRepository) FindUnprocessed(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindUnprocessedFn != nil {
		return m.FindUnprocessedFn(ctx, limit)
	}
	var out []*domain.WebhookEvent
	for _, e := range m.events {
		if e.IsVerified && !e.IsProcessed {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MockConfigRepository
type MockConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]*domain.TenantGatewayConfig

	CreateFn                       func(ctx context.Context, config *domain.TenantGatewayConfig) error
	UpdateFn                       func(ctx context.Context, config *domain.TenantGatewayConfig) error
	FindByIDFn                     func(ctx context.Context, id string) (*domain.TenantGatewayConfig, error)
	FindActiveByTenantAndGatewayFn func(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (*domain.TenantGatewayConfig, error)
	FindPrimaryActiveByTenantFn    func(ctx context.Context, tenantID string) (*domain.TenantGatewayConfig, error)
	FindAllByTenantFn              func(ctx context.Context, tenantID string) ([]*domain.TenantGatewayConfig, error)
	FindActiveByGatewayTypeFn      func(ctx context.Context, gatewayType domain.GatewayType) ([]*domain.TenantGatewayConfig, error)
}

func NewMockConfigRepository() *MockConfigRepository {
	return &MockConfigRepository{
		configs: make(map[string]*domain.TenantGatewayConfig),
	}
}

func (m *MockConfigRepository) Create(ctx context.Context, config *domain.TenantGatewayConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, config)
	}
	m.configs[config.ID] = config
	return nil
}

func (m *MockConfigRepository) Update(ctx context.Context, config *domain.TenantGatewayConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, config)
	}
	if _, ok := m.configs[config.ID]; !ok {
		return application.ErrConfigNotFound
	}
	m.configs[config.ID] = config
	return nil
}

func (m *MockConfigRepository) FindByID(ctx context.Context, id string) (*domain.TenantGatewayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindByIDFn != nil {
		return m.FindByIDFn(ctx, id)
	}
	if c, ok := m.configs[id]; ok {
		return c, nil
	}
	return nil, application.ErrConfigNotFound
}

func (m *MockConfigRepository) FindActiveByTenantAndGateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (*domain.TenantGatewayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindActiveByTenantAndGatewayFn != nil {
		return m.FindActiveByTenantAndGatewayFn(ctx, tenantID, gatewayType)
	}
	for _, c := range m.configs {
		if c.TenantID == tenantID && c.GatewayType == gatewayType && c.IsActive {
			return c, nil
		}
	}
	return nil, application.ErrConfigNotFound
}

func (m *MockConfigRepository) FindPrimaryActiveByTenant(ctx context.Context, tenantID string) (*domain.TenantGatewayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindPrimaryActiveByTenantFn != nil {
		return m.FindPrimaryActiveByTenantFn(ctx, tenantID)
	}
	var oldest *domain.TenantGatewayConfig
	for _, c := range m.configs {
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

func (m *MockConfigRepository) FindAllByTenant(ctx context.Context, tenantID string) ([]*domain.TenantGatewayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindAllByTenantFn != nil {
		return m.FindAllByTenantFn(ctx, tenantID)
	}
	var out []*domain.TenantGatewayConfig
	for _, c := range m.configs {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockConfigRepository) FindActiveByGatewayType(ctx context.Context, gatewayType domain.GatewayType) ([]*domain.TenantGatewayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FindActiveByGatewayTypeFn != nil {
		return m.FindActiveByGatewayTypeFn(ctx, gatewayType)
	}
	var out []*domain.TenantGatewayConfig
	for _, c := range m.configs {
		if c.GatewayType == gatewayType && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// MockGateway
type MockGateway struct {
	GatewayType domain.GatewayType

	CreateOrderFn            func(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error)
	CreatePaymentLinkFn      func(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error)
	VerifyPaymentFn          func(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error)
	ProcessRefundFn          func(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error)
	ParseWebhookFn           func(payload []byte, signature string) (*application.ParsedWebhook, error)
	VerifyWebhookSignatureFn func(payload []byte, signature string) bool
	PublicKeyFn              func() string

	CreateOrderCalls   int
	VerifyPaymentCalls int
	ProcessRefundCalls int
}

func NewMockGateway(gatewayType domain.GatewayType) *MockGateway {
	return &MockGateway{GatewayType: gatewayType}
}

func (m *MockGateway) Type() domain.GatewayType {
	return m.GatewayType
}

func (m *MockGateway) CreateOrder(ctx context.Context, req application.OrderRequest) (*application.OrderResult, error) {
	m.CreateOrderCalls++
	if m.CreateOrderFn != nil {
		return m.CreateOrderFn(ctx, req)
	}
	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: "gw_order_" + req.OrderID,
		ClientData:     map[string]any{"order_id": "gw_order_" + req.OrderID},
	}, nil
}

func (m *MockGateway) CreatePaymentLink(ctx context.Context, req application.PaymentLinkRequest) (*application.OrderResult, error) {
	if m.CreatePaymentLinkFn != nil {
		return m.CreatePaymentLinkFn(ctx, req)
	}
	return &application.OrderResult{
		Success:        true,
		GatewayOrderID: "gw_link_" + req.OrderID,
		ClientData:     map[string]any{"short_url": "https://pay.example/" + req.OrderID},
	}, nil
}

func (m *MockGateway) VerifyPayment(ctx context.Context, req application.VerifyRequest) (*application.VerifyResult, error) {
	m.VerifyPaymentCalls++
	if m.VerifyPaymentFn != nil {
		return m.VerifyPaymentFn(ctx, req)
	}
	return &application.VerifyResult{
		Success:          true,
		Status:           domain.StatusCaptured,
		GatewayPaymentID: req.GatewayPaymentID,
		PaymentMethod:    "upi",
	}, nil
}

func (m *MockGateway) ProcessRefund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal, reason string) (*application.RefundResult, error) {
	m.ProcessRefundCalls++
	if m.ProcessRefundFn != nil {
		return m.ProcessRefundFn(ctx, gatewayPaymentID, amount, reason)
	}
	return &application.RefundResult{
		Success:         true,
		Status:          domain.RefundCompleted,
		GatewayRefundID: "gw_refund_1",
	}, nil
}

func (m *MockGateway) ParseWebhook(payload []byte, signature string) (*application.ParsedWebhook, error) {
	if m.ParseWebhookFn != nil {
		return m.ParseWebhookFn(payload, signature)
	}
	return &application.ParsedWebhook{RawData: string(payload)}, nil
}

func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	if m.VerifyWebhookSignatureFn != nil {
		return m.VerifyWebhookSignatureFn(payload, signature)
	}
	return true
}

func (m *MockGateway) PublicKey() string {
	if m.PublicKeyFn != nil {
		return m.PublicKeyFn()
	}
	return "pk_test_mock"
}

// MockGatewayRegistry resolves every lookup to a fixed gateway.
type MockGatewayRegistry struct {
	Gw application.Gateway

	GatewayFn          func(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (application.Gateway, error)
	PrimaryGatewayFn   func(ctx context.Context, tenantID string) (application.Gateway, error)
	GatewayForConfigFn func(config *domain.TenantGatewayConfig) (application.Gateway, error)

	InvalidateCalls       []string
	InvalidateTenantCalls []string
}

func NewMockGatewayRegistry(gw application.Gateway) *MockGatewayRegistry {
	return &MockGatewayRegistry{Gw: gw}
}

func (m *MockGatewayRegistry) Gateway(ctx context.Context, tenantID string, gatewayType domain.GatewayType) (application.Gateway, error) {
	if m.GatewayFn != nil {
		return m.GatewayFn(ctx, tenantID, gatewayType)
	}
	return m.Gw, nil
}

func (m *MockGatewayRegistry) PrimaryGateway(ctx context.Context, tenantID string) (application.Gateway, error) {
	if m.PrimaryGatewayFn != nil {
		return m.PrimaryGatewayFn(ctx, tenantID)
	}
	return m.Gw, nil
}

func (m *MockGatewayRegistry) GatewayForConfig(config *domain.TenantGatewayConfig) (application.Gateway, error) {
	if m.GatewayForConfigFn != nil {
		return m.GatewayForConfigFn(config)
	}
	return m.Gw, nil
}

func (m *MockGatewayRegistry) Invalidate(tenantID string, gatewayType domain.GatewayType) {
	m.InvalidateCalls = append(m.InvalidateCalls, tenantID+":"+string(gatewayType))
}

func (m *MockGatewayRegistry) InvalidateTenant(tenantID string) {
	m.InvalidateTenantCalls = append(m.InvalidateTenantCalls, tenantID)
}
