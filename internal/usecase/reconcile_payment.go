package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/dcastano/store-api/internal/entity"
	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/observ"
)

// Outcome is the marker echoed back to the gateway. Everything except a hard
// error is acknowledged 200 so the gateway stops retrying events this system
// has already evaluated.
type Outcome string

const (
	OutcomeReceived   Outcome = "received"   // non-payment event, acknowledged and ignored
	OutcomeDuplicate  Outcome = "duplicate"  // delivery already claimed in the ledger
	OutcomeIdempotent Outcome = "idempotent" // gateway payment id already applied
	OutcomeIgnored    Outcome = "ignored"    // unknown/foreign external reference
	OutcomeProcessed  Outcome = "processed"
)

type WebhookInput struct {
	EventType string
	DataID    string // gateway payment id carried by the event
	RequestID string
}

type ProcessInput struct {
	OrderID  string
	FormData map[string]any
}

type ProcessOutput struct {
	Status       string
	StatusDetail string
	PaymentID    string
}

// ReconcilePayment applies asynchronous gateway notifications (webhooks) and
// synchronous direct charges to payment and order records. Both paths share
// the same mapping/apply step, so a webhook arriving after a direct charge is
// a safe no-op.
type ReconcilePayment struct {
	orders   OrderRepo
	payments PaymentRepo
	gateway  PaymentGateway
	ledger   Ledger
	events   EventPublisher
	cache    OrderStatusCache
	dedupTTL time.Duration
}

func NewReconcilePayment(orders OrderRepo, payments PaymentRepo, gw PaymentGateway, ledger Ledger, events EventPublisher, cache OrderStatusCache, dedupTTL time.Duration) *ReconcilePayment {
	if dedupTTL <= 0 {
		dedupTTL = 6 * time.Hour
	}
	return &ReconcilePayment{
		orders:   orders,
		payments: payments,
		gateway:  gw,
		ledger:   ledger,
		events:   events,
		cache:    cache,
		dedupTTL: dedupTTL,
	}
}

// HandleWebhook runs the async path. Signature verification happens at the
// transport layer before this is called; everything here is ordered so each
// step is a potential early exit.
func (uc *ReconcilePayment) HandleWebhook(ctx context.Context, in WebhookInput) (Outcome, error) {
	log := logging.FromCtx(ctx)

	// Gateways emit many event kinds; only payment events carry work.
	if in.EventType != "payment" || in.DataID == "" {
		observ.PaymentsReconciled.WithLabelValues(string(OutcomeReceived)).Inc()
		return OutcomeReceived, nil
	}

	// At-least-once delivery: claim (type, payment id, request id) before the
	// risky work. Ledger unavailability fails open — the by-gateway-id guard
	// below is the second line of defense.
	key := fmt.Sprintf("webhook:payment:%s:%s", in.DataID, in.RequestID)
	claimed, err := uc.ledger.Claim(ctx, key, uc.dedupTTL)
	if err != nil {
		log.Warn("dedup ledger unavailable, proceeding", "key", key, "error", err)
	} else if !claimed {
		observ.PaymentsReconciled.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	// Never trust the webhook body's status; fetch authoritative state.
	gp, err := uc.gateway.GetPayment(ctx, in.DataID)
	if err != nil {
		return "", fmt.Errorf("fetch payment %s: %w", in.DataID, err)
	}

	// Already applied (ledger TTL may have lapsed between deliveries).
	existing, err := uc.payments.FindByGatewayID(ctx, gp.ID)
	if err != nil {
		return "", fmt.Errorf("lookup by gateway id: %w", err)
	}
	if existing != nil {
		observ.PaymentsReconciled.WithLabelValues(string(OutcomeIdempotent)).Inc()
		return OutcomeIdempotent, nil
	}

	// The gateway account may receive notifications unrelated to this
	// system; an unmatched reference is acknowledged, not an error.
	if gp.ExternalReference == "" {
		observ.PaymentsReconciled.WithLabelValues(string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}
	payment, err := uc.payments.FindByExternalReference(ctx, gp.ExternalReference)
	if err != nil {
		return "", fmt.Errorf("lookup by external reference: %w", err)
	}
	if payment == nil {
		log.Info("webhook for unknown external reference", "external_reference", gp.ExternalReference)
		observ.PaymentsReconciled.WithLabelValues(string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}

	if err := uc.apply(ctx, payment, gp); err != nil {
		return "", err
	}
	observ.PaymentsReconciled.WithLabelValues(string(OutcomeProcessed)).Inc()
	return OutcomeProcessed, nil
}

// Process runs the synchronous path for embedded card payments. The caller
// is same-session and tied to a specific order, so signature and dedup steps
// do not apply; a payment is still charged at most once.
func (uc *ReconcilePayment) Process(ctx context.Context, in ProcessInput) (ProcessOutput, error) {
	payment, err := uc.payments.LatestForOrder(ctx, in.OrderID)
	if err != nil {
		return ProcessOutput{}, fmt.Errorf("lookup payment: %w", err)
	}
	if payment == nil {
		return ProcessOutput{}, ErrPaymentNotFound
	}
	if payment.Status != string(domain.PaymentPending) {
		return ProcessOutput{}, ErrAlreadyProcessed
	}

	// Fresh key per logical attempt; the gateway dedups retries of the same
	// attempt on its side too.
	idempotencyKey := uuid.NewString()
	gp, err := uc.gateway.CreatePayment(ctx, ChargeRequest{
		FormData:          in.FormData,
		Amount:            payment.Amount,
		ExternalReference: payment.ExternalReference,
		Description:       "order " + in.OrderID,
	}, idempotencyKey)
	if err != nil {
		return ProcessOutput{}, err
	}

	if err := uc.apply(ctx, payment, gp); err != nil {
		return ProcessOutput{}, err
	}
	observ.PaymentsReconciled.WithLabelValues(string(OutcomeProcessed)).Inc()
	return ProcessOutput{
		Status:       gp.Status,
		StatusDetail: gp.StatusDetail,
		PaymentID:    gp.ID,
	}, nil
}

// apply maps the gateway status onto the local enum, updates the payment row
// and, on approval, transitions the parent order PENDING→PAID. The guarded
// order update means a stale duplicate can never re-transition an order.
func (uc *ReconcilePayment) apply(ctx context.Context, payment *PaymentRecord, gp *GatewayPayment) error {
	status := domain.PaymentStatusFromGateway(gp.Status)

	gwID := gp.ID
	if err := uc.payments.UpdateResult(ctx, payment.ID, &gwID, string(status), gp.Raw); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	observ.PaymentStatusApplied.WithLabelValues(string(status)).Inc()

	if status != domain.PaymentApproved {
		return nil
	}

	moved, err := uc.orders.UpdateStatusIf(ctx, payment.OrderID, string(domain.OrderPending), string(domain.OrderPaid))
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if !moved {
		return nil
	}

	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, payment.OrderID, string(domain.OrderPaid))
	}
	if uc.events != nil {
		msg := OrderEventMsg{
			OrderID: payment.OrderID,
			Status:  string(domain.OrderPaid),
			Total:   payment.Amount.StringFixed(2),
		}
		if err := uc.events.PublishOrderEvent(ctx, msg); err != nil {
			logging.FromCtx(ctx).Warn("order paid event publish failed", "order_id", payment.OrderID, "error", err)
		}
	}
	return nil
}
