package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mealstack/payment-core/internal/application"
	"github.com/mealstack/payment-core/internal/domain"
)

// PaymentService orchestrates the payment lifecycle: initiate against the
// tenant's gateway, verify the client callback, and answer status polls.
type PaymentService struct {
	ledger       *Ledger
	transactions application.TransactionRepository
	registry     application.GatewayRegistry
	logger       *slog.Logger
}

func NewPaymentService(
	ledger *Ledger,
	transactions application.TransactionRepository,
	registry application.GatewayRegistry,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		ledger:       ledger,
		transactions: transactions,
		registry:     registry,
		logger:       logger,
	}
}

// InitiatePayment creates a ledger row and opens an order with the gateway.
// Replays with a known idempotency key return the stored transaction without
// touching the gateway again.
func (s *PaymentService) InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (*InitiatePaymentResponse, error) {
	gw, err := s.resolveGateway(ctx, cmd.TenantID, cmd.GatewayType)
	if err != nil {
		return nil, err
	}

	var paymentID *string
	if cmd.PaymentID != "" {
		paymentID = &cmd.PaymentID
	}

	t, err := domain.NewTransaction(
		uuid.New().String(),
		cmd.TenantID,
		cmd.OutletID,
		cmd.OrderID,
		paymentID,
		gw.Type(),
		cmd.Amount,
		cmd.Currency,
		cmd.IdempotencyKey,
	)
	if err != nil {
		return nil, application.NewInvalidInputError(err.Error())
	}

	t, replayed, err := s.ledger.Create(ctx, t)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if replayed {
		s.logger.Info("initiate replayed from idempotency key",
			"transaction_id", t.ID,
			"order_id", t.OrderID,
		)
		return s.initiateResponse(t, nil, gw.PublicKey()), nil
	}

	result, err := gw.CreateOrder(ctx, application.OrderRequest{
		OrderID:  cmd.OrderID,
		Amount:   cmd.Amount,
		Currency: cmd.Currency,
	})
	if err != nil {
		s.failQuietly(ctx, t.ID, "gateway unreachable", "")
		return nil, application.NewGatewayUnavailableError(err)
	}
	if !result.Success {
		s.failQuietly(ctx, t.ID, result.ErrorMessage, result.RawResponse)
		return nil, application.NewGatewayRejectedError(result.ErrorMessage)
	}

	t, err = s.ledger.MarkPending(ctx, t.ID, result.GatewayOrderID, result.RawResponse)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment initiated",
		"transaction_id", t.ID,
		"order_id", t.OrderID,
		"gateway_type", t.GatewayType,
		"gateway_order_id", result.GatewayOrderID,
	)

	return s.initiateResponse(t, result.ClientData, gw.PublicKey()), nil
}

// CreatePaymentLink opens a link-based checkout for gateways that support it.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, cmd CreatePaymentLinkCommand) (*PaymentLinkResponse, error) {
	gw, err := s.resolveGateway(ctx, cmd.TenantID, cmd.GatewayType)
	if err != nil {
		return nil, err
	}

	// An order with a live attempt reuses it instead of minting a second
	// provider order. The stored gateway response still carries the link.
	existing, err := s.transactions.FindByOrderID(ctx, cmd.OrderID)
	if err == nil {
		if existing.TenantID == cmd.TenantID &&
			(existing.Status == domain.StatusInitiated || existing.Status == domain.StatusPending) {
			resp := s.linkResponse(existing, nil)
			resp.PaymentLink = storedPaymentLink(existing)
			return resp, nil
		}
	} else if !errors.Is(err, application.ErrTransactionNotFound) {
		return nil, application.NewInternalError(err)
	}

	t, err := domain.NewTransaction(
		uuid.New().String(),
		cmd.TenantID,
		cmd.OutletID,
		cmd.OrderID,
		nil,
		gw.Type(),
		cmd.Amount,
		cmd.Currency,
		cmd.IdempotencyKey,
	)
	if err != nil {
		return nil, application.NewInvalidInputError(err.Error())
	}

	t, replayed, err := s.ledger.Create(ctx, t)
	if err != nil {
		return nil, application.NewInternalError(err)
	}
	if replayed {
		return s.linkResponse(t, nil), nil
	}

	result, err := gw.CreatePaymentLink(ctx, application.PaymentLinkRequest{
		OrderID:         cmd.OrderID,
		Amount:          cmd.Amount,
		Currency:        cmd.Currency,
		Description:     cmd.Description,
		CustomerName:    cmd.CustomerName,
		CustomerContact: cmd.CustomerContact,
		CallbackURL:     cmd.CallbackURL,
	})
	if err != nil {
		s.failQuietly(ctx, t.ID, "gateway unreachable", "")
		return nil, application.NewGatewayUnavailableError(err)
	}
	if !result.Success {
		s.failQuietly(ctx, t.ID, result.ErrorMessage, result.RawResponse)
		return nil, application.NewGatewayRejectedError(result.ErrorMessage)
	}

	t, err = s.ledger.MarkPending(ctx, t.ID, result.GatewayOrderID, result.RawResponse)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	return s.linkResponse(t, result.ClientData), nil
}

// VerifyPayment checks the client-reported callback for an authenticated
// caller and settles the transaction. A transaction that is already CAPTURED
// verifies as a no-op.
func (s *PaymentService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (*GatewayTransactionResponse, error) {
	t, err := s.transactions.FindByID(ctx, cmd.TransactionID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	// Another tenant's transaction looks like a missing one; the response
	// must not reveal that the id exists.
	if t.TenantID != cmd.TenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}
	return s.verify(ctx, t, cmd)
}

// VerifyPaymentPublic is the unauthenticated variant used by gateway redirect
// callbacks. The transaction is located by its gateway order id, so a caller
// can only settle a row the gateway itself issued.
func (s *PaymentService) VerifyPaymentPublic(ctx context.Context, cmd VerifyPaymentCommand) (*GatewayTransactionResponse, error) {
	t, err := s.transactions.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	return s.verify(ctx, t, cmd)
}

func (s *PaymentService) verify(ctx context.Context, t *domain.Transaction, cmd VerifyPaymentCommand) (*GatewayTransactionResponse, error) {
	switch t.Status {
	case domain.StatusCaptured, domain.StatusPartiallyRefunded, domain.StatusRefunded:
		// The webhook already settled it; verifying again changes nothing.
		return toTransactionResponse(t), nil
	case domain.StatusPending, domain.StatusAuthorized:
	default:
		return nil, application.NewInvalidStateError(
			domain.NewInvalidTransitionError(t.Status, domain.StatusCaptured))
	}

	gw, err := s.registry.Gateway(ctx, t.TenantID, t.GatewayType)
	if err != nil {
		return nil, err
	}

	gatewayOrderID := cmd.GatewayOrderID
	if gatewayOrderID == "" && t.GatewayOrderID != nil {
		gatewayOrderID = *t.GatewayOrderID
	}

	result, err := gw.VerifyPayment(ctx, application.VerifyRequest{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: cmd.GatewayPaymentID,
		Signature:        cmd.Signature,
		AdditionalData:   cmd.AdditionalData,
	})
	if err != nil {
		// Leave the row PENDING: the reconciler or the webhook settles it.
		s.logger.Warn("verification attempt failed, transaction stays pending",
			"transaction_id", t.ID,
			"error", err,
		)
		return nil, application.NewGatewayUnavailableError(err)
	}

	if !result.Success {
		if result.SignatureMismatch {
			// The payment itself may be fine; only the caller's proof is bad.
			// The row stays PENDING for the webhook or reconciler to settle.
			return nil, application.NewSignatureMismatchError()
		}
		t, err = s.ledger.MarkFailed(ctx, t.ID, result.ErrorMessage, result.RawResponse)
		if err != nil {
			return nil, application.NewInternalError(err)
		}
		return toTransactionResponse(t), nil
	}

	if cmd.Signature != "" {
		if err := s.ledger.RecordSignature(ctx, t.ID, cmd.Signature); err != nil {
			return nil, application.NewInternalError(err)
		}
	}

	t, err = s.ledger.MarkCaptured(ctx, t.ID, result.GatewayPaymentID, result.PaymentMethod, result.RawResponse)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	s.logger.Info("payment captured",
		"transaction_id", t.ID,
		"order_id", t.OrderID,
		"gateway_payment_id", result.GatewayPaymentID,
	)

	return toTransactionResponse(t), nil
}

// GetPaymentStatus answers client polling without touching the gateway.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, tenantID, transactionID string) (*GatewayTransactionResponse, error) {
	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return nil, application.NewNotFoundError("transaction", err)
		}
		return nil, application.NewInternalError(err)
	}
	if t.TenantID != tenantID {
		return nil, application.NewNotFoundError("transaction", application.ErrTransactionNotFound)
	}
	return toTransactionResponse(t), nil
}

// GetOrderPaymentStatus is the order-level poll clients run before and during
// checkout. An order without a payment attempt answers with the
// NO_PAYMENT_INITIATED sentinel rather than a 404.
func (s *PaymentService) GetOrderPaymentStatus(ctx context.Context, tenantID, orderID string) (*PaymentStatusResponse, error) {
	t, err := s.transactions.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, application.ErrTransactionNotFound) {
			return &PaymentStatusResponse{
				OrderID: orderID,
				Status:  StatusNoPaymentInitiated,
			}, nil
		}
		return nil, application.NewInternalError(err)
	}
	if t.TenantID != tenantID {
		return &PaymentStatusResponse{
			OrderID: orderID,
			Status:  StatusNoPaymentInitiated,
		}, nil
	}

	return &PaymentStatusResponse{
		OrderID:          t.OrderID,
		TransactionID:    t.ID,
		GatewayType:      string(t.GatewayType),
		GatewayOrderID:   t.GatewayOrderID,
		GatewayPaymentID: t.GatewayPaymentID,
		Status:           string(t.Status),
		Amount:           &t.Amount,
	}, nil
}

func (s *PaymentService) resolveGateway(ctx context.Context, tenantID, gatewayType string) (application.Gateway, error) {
	if gatewayType == "" {
		return s.registry.PrimaryGateway(ctx, tenantID)
	}
	gt, ok := domain.ParseGatewayType(gatewayType)
	if !ok {
		return nil, application.NewInvalidInputError("unknown gateway type: " + gatewayType)
	}
	return s.registry.Gateway(ctx, tenantID, gt)
}

// failQuietly marks the transaction FAILED but never masks the original
// gateway error with a persistence one.
func (s *PaymentService) failQuietly(ctx context.Context, transactionID, reason, rawResponse string) {
	if _, err := s.ledger.MarkFailed(ctx, transactionID, reason, rawResponse); err != nil {
		s.logger.Error("failed to mark transaction failed",
			"transaction_id", transactionID,
			"error", err,
		)
	}
}

func (s *PaymentService) initiateResponse(t *domain.Transaction, clientData map[string]any, publicKey string) *InitiatePaymentResponse {
	resp := &InitiatePaymentResponse{
		TransactionID:  t.ID,
		OrderID:        t.OrderID,
		GatewayType:    string(t.GatewayType),
		Amount:         t.Amount,
		Currency:       t.Currency,
		Status:         string(t.Status),
		ClientSideData: clientData,
		PublicKey:      publicKey,
	}
	if t.GatewayOrderID != nil {
		resp.GatewayOrderID = *t.GatewayOrderID
	}
	return resp
}

func (s *PaymentService) linkResponse(t *domain.Transaction, clientData map[string]any) *PaymentLinkResponse {
	resp := &PaymentLinkResponse{
		TransactionID: t.ID,
		OrderID:       t.OrderID,
		GatewayType:   string(t.GatewayType),
		Amount:        t.Amount,
		Currency:      t.Currency,
		Status:        string(t.Status),
	}
	if t.GatewayOrderID != nil {
		resp.GatewayOrderID = *t.GatewayOrderID
	}
	if link, ok := clientData["short_url"].(string); ok {
		resp.PaymentLink = link
	}
	return resp
}

// storedPaymentLink digs the checkout link out of the raw gateway response
// recorded when the link was first created.
func storedPaymentLink(t *domain.Transaction) string {
	if t.GatewayResponse == nil {
		return ""
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(*t.GatewayResponse), &raw); err != nil {
		return ""
	}
	for _, key := range []string{"short_url", "url", "payment_link"} {
		if link, ok := raw[key].(string); ok && link != "" {
			return link
		}
	}
	return ""
}
