package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcileFixture struct {
	uc       *ReconcilePayment
	orders   *fakeOrders
	payments *fakePayments
	gw       *fakeGateway
	ledger   *fakeLedger
	pub      *fakePublisher
	cache    *fakeCache

	orderID   string
	paymentID string
	extRef    string
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	fp := &fakeProducts{byID: map[int64]ProductRecord{}}
	pay := newFakePayments()
	ord := newFakeOrders(fp, pay)
	gw := &fakeGateway{payments: map[string]*GatewayPayment{}}
	ledger := newFakeLedger()
	pub := &fakePublisher{}
	cache := newFakeCache()

	f := &reconcileFixture{
		uc:        NewReconcilePayment(ord, pay, gw, ledger, pub, cache, time.Hour),
		orders:    ord,
		payments:  pay,
		gw:        gw,
		ledger:    ledger,
		pub:       pub,
		cache:     cache,
		orderID:   "ord-1",
		paymentID: "pay-1",
	}
	f.extRef = "order_" + f.orderID

	ord.orders[f.orderID] = &OrderRecord{ID: f.orderID, Status: "PENDING", Total: decimal.RequireFromString("79.80")}
	require.NoError(t, pay.Insert(context.Background(), &PaymentRecord{
		ID:                f.paymentID,
		OrderID:           f.orderID,
		Amount:            decimal.RequireFromString("79.80"),
		Status:            "PENDING",
		ExternalReference: f.extRef,
	}))
	return f
}

func (f *reconcileFixture) gatewayPayment(id, status string) {
	f.gw.payments[id] = &GatewayPayment{
		ID:                id,
		Status:            status,
		StatusDetail:      "accredited",
		ExternalReference: f.extRef,
		Raw:               []byte(`{"id":` + id + `,"status":"` + status + `"}`),
	}
}

func TestWebhookApprovedPayment(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("555", "approved")

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)

	p := f.payments.byID[f.paymentID]
	assert.Equal(t, "APPROVED", p.Status)
	require.NotNil(t, p.GatewayPaymentID)
	assert.Equal(t, "555", *p.GatewayPaymentID)
	assert.NotEmpty(t, p.RawPayload)

	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)
	assert.Equal(t, "PAID", f.cache.statuses[f.orderID])
	require.Len(t, f.pub.msgs, 1)
	assert.Equal(t, "PAID", f.pub.msgs[0].Status)
}

func TestWebhookRejectedPaymentLeavesOrderPending(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("556", "rejected")

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "556", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)

	assert.Equal(t, "REJECTED", f.payments.byID[f.paymentID].Status)
	assert.Equal(t, "PENDING", f.orders.orders[f.orderID].Status)
	assert.Empty(t, f.pub.msgs)
}

func TestWebhookUnknownStatusMapsToPending(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("557", "in_process")

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "557", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)
	assert.Equal(t, "PENDING", f.payments.byID[f.paymentID].Status)
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("555", "approved")

	in := WebhookInput{EventType: "payment", DataID: "555", RequestID: "req-1"}

	out, err := f.uc.HandleWebhook(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)

	out, err = f.uc.HandleWebhook(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	// one mutation, one event
	assert.Equal(t, 1, f.gw.getCalls)
	require.Len(t, f.pub.msgs, 1)
}

// A redelivery after the ledger entry expired is caught by the
// already-applied guard on the gateway payment id.
func TestWebhookIdempotentAfterLedgerExpiry(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("555", "approved")

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)

	// different request id => fresh ledger claim succeeds
	out, err = f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-2",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdempotent, out)

	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)
	require.Len(t, f.pub.msgs, 1)
}

func TestWebhookNonPaymentEventIgnored(t *testing.T) {
	f := newReconcileFixture(t)

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "plan", DataID: "1", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReceived, out)
	assert.Zero(t, f.gw.getCalls)

	out, err = f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReceived, out)
}

func TestWebhookUnmatchedExternalReference(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.payments["777"] = &GatewayPayment{
		ID: "777", Status: "approved", ExternalReference: "order_someone-elses",
	}

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "777", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)

	assert.Equal(t, "PENDING", f.payments.byID[f.paymentID].Status)
	assert.Equal(t, "PENDING", f.orders.orders[f.orderID].Status)
}

func TestWebhookMissingExternalReference(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.payments["778"] = &GatewayPayment{ID: "778", Status: "approved"}

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "778", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
}

// Ledger outage must not block payment processing; the data-layer guard
// still dedups.
func TestWebhookLedgerDownFailsOpen(t *testing.T) {
	f := newReconcileFixture(t)
	f.gatewayPayment("555", "approved")
	f.ledger.down = true

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, out)
	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)

	// retry with the ledger still down: caught by the gateway-id guard
	out, err = f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdempotent, out)
}

func TestWebhookGatewayFetchFailure(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.getErr = &GatewayError{StatusCode: 500, Body: "boom"}

	_, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "555", RequestID: "req-1",
	})
	require.Error(t, err)
	assert.Equal(t, "PENDING", f.payments.byID[f.paymentID].Status)
}

func TestProcessPaymentApproved(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.charge = &GatewayPayment{
		ID: "901", Status: "approved", StatusDetail: "accredited",
		ExternalReference: f.extRef, Raw: []byte(`{"id":901}`),
	}

	out, err := f.uc.Process(context.Background(), ProcessInput{
		OrderID:  f.orderID,
		FormData: map[string]any{"token": "card-token", "installments": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "accredited", out.StatusDetail)
	assert.Equal(t, "901", out.PaymentID)

	require.Len(t, f.gw.idemKeys, 1)
	assert.NotEmpty(t, f.gw.idemKeys[0])
	require.Len(t, f.gw.chargeReqs, 1)
	assert.Equal(t, f.extRef, f.gw.chargeReqs[0].ExternalReference)
	assert.True(t, f.gw.chargeReqs[0].Amount.Equal(decimal.RequireFromString("79.80")))

	assert.Equal(t, "APPROVED", f.payments.byID[f.paymentID].Status)
	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)
}

func TestProcessPaymentAlreadyProcessed(t *testing.T) {
	f := newReconcileFixture(t)
	f.payments.byID[f.paymentID].Status = "APPROVED"

	_, err := f.uc.Process(context.Background(), ProcessInput{OrderID: f.orderID})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Empty(t, f.gw.chargeReqs)
}

func TestProcessPaymentNoPaymentRow(t *testing.T) {
	f := newReconcileFixture(t)

	_, err := f.uc.Process(context.Background(), ProcessInput{OrderID: "missing-order"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestProcessPaymentGatewayFailure(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.chargeErr = &GatewayError{StatusCode: 400, Body: "invalid card token"}

	_, err := f.uc.Process(context.Background(), ProcessInput{OrderID: f.orderID})
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 400, ge.StatusCode)

	// nothing applied
	assert.Equal(t, "PENDING", f.payments.byID[f.paymentID].Status)
	assert.Equal(t, "PENDING", f.orders.orders[f.orderID].Status)
}

// The direct path approves first; the async webhook for the same gateway
// payment must be a safe no-op. The order reaches PAID exactly once.
func TestAtMostOneApproval(t *testing.T) {
	f := newReconcileFixture(t)
	f.gw.charge = &GatewayPayment{
		ID: "901", Status: "approved", ExternalReference: f.extRef,
	}
	f.gatewayPayment("901", "approved")

	_, err := f.uc.Process(context.Background(), ProcessInput{OrderID: f.orderID})
	require.NoError(t, err)
	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)

	out, err := f.uc.HandleWebhook(context.Background(), WebhookInput{
		EventType: "payment", DataID: "901", RequestID: "req-9",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdempotent, out)

	assert.Equal(t, "PAID", f.orders.orders[f.orderID].Status)
	require.Len(t, f.pub.msgs, 1)
}
