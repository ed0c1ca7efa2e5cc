package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/dcastano/store-api/internal/entity"
	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/observ"
)

type CartItem struct {
	ProductID int64
	Quantity  int
}

type AddressInput struct {
	FullName   string
	Phone      string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

type CreateOrderInput struct {
	UserID       *string
	GuestEmail   string
	Address      AddressInput
	Items        []CartItem
	ShippingCost decimal.Decimal
	Commission   decimal.Decimal
}

type CreateOrderOutput struct {
	OrderID          string
	PaymentID        string
	PreferenceID     string
	InitPoint        string
	SandboxInitPoint string
}

// URLs the gateway needs: where to push webhooks and where to send the payer
// back after checkout. Both are rooted at this deployment's own origins.
type CheckoutURLs struct {
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	PendingURL      string
}

// CreateOrder validates a cart, reserves stock and persists the order
// atomically, then opens a payment preference with the gateway. The gateway
// call sits deliberately outside the transaction: if it fails, the order and
// its PENDING payment stay persisted so the stock reservation is never lost.
type CreateOrder struct {
	products ProductStore
	orders   OrderRepo
	payments PaymentRepo
	gateway  PaymentGateway
	events   EventPublisher
	urls     CheckoutURLs
}

func NewCreateOrder(products ProductStore, orders OrderRepo, payments PaymentRepo, gw PaymentGateway, events EventPublisher, urls CheckoutURLs) *CreateOrder {
	return &CreateOrder{
		products: products,
		orders:   orders,
		payments: payments,
		gateway:  gw,
		events:   events,
		urls:     urls,
	}
}

func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (CreateOrderOutput, error) {
	if err := validateInput(in); err != nil {
		return CreateOrderOutput{}, err
	}

	shipping := clampNonNegative(in.ShippingCost)
	commission := clampNonNegative(in.Commission)

	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := uc.products.ActiveByIDs(ctx, ids)
	if err != nil {
		return CreateOrderOutput{}, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[int64]ProductRecord, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// Pricing snapshot. The stock check here is advisory; the authoritative
	// check is the conditional decrement inside the transaction.
	orderID := uuid.NewString()
	total := decimal.Zero
	items := make([]OrderItemRecord, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return CreateOrderOutput{}, ErrProductUnavailable
		}
		if it.Quantity > p.Stock {
			return CreateOrderOutput{}, &InsufficientStockError{ProductName: p.Name}
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, OrderItemRecord{
			OrderID:   orderID,
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}
	total = total.Add(shipping).Add(commission).Round(2)

	order := &OrderRecord{
		ID:         orderID,
		UserID:     in.UserID,
		Status:     string(domain.OrderPending),
		Total:      total,
		CreatedAt:  time.Now().UTC(),
		GuestEmail: nil,
	}
	if email := strings.TrimSpace(in.GuestEmail); email != "" {
		order.GuestEmail = &email
	}

	if err := uc.orders.CreateWithItems(ctx, order, items, Address(in.Address)); err != nil {
		return CreateOrderOutput{}, err
	}
	observ.OrdersCreated.Inc()

	// The payment row exists before the gateway is called so the reconciler
	// can always resolve the external reference later.
	payment := &PaymentRecord{
		ID:                uuid.NewString(),
		OrderID:           orderID,
		Amount:            total,
		Status:            string(domain.PaymentPending),
		ExternalReference: "order_" + orderID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := uc.payments.Insert(ctx, payment); err != nil {
		return CreateOrderOutput{}, fmt.Errorf("insert payment: %w", err)
	}

	pref, err := uc.gateway.CreatePreference(ctx, PreferenceRequest{
		ExternalReference: payment.ExternalReference,
		Items:             preferenceItems(items, shipping, commission),
		PayerEmail:        in.GuestEmail,
		NotificationURL:   uc.urls.NotificationURL,
		BackURLs: BackURLs{
			Success: uc.urls.SuccessURL,
			Failure: uc.urls.FailureURL,
			Pending: uc.urls.PendingURL,
		},
	})
	if err != nil {
		// Order and PENDING payment stay persisted for manual follow-up.
		logging.FromCtx(ctx).Error("payment preference failed",
			"order_id", orderID, "error", err)
		return CreateOrderOutput{}, err
	}

	if err := uc.payments.SetPreference(ctx, payment.ID, pref.ID); err != nil {
		return CreateOrderOutput{}, fmt.Errorf("set preference: %w", err)
	}

	uc.publish(ctx, OrderEventMsg{
		OrderID: orderID,
		Status:  order.Status,
		Total:   total.StringFixed(2),
		Email:   in.GuestEmail,
	})

	return CreateOrderOutput{
		OrderID:          orderID,
		PaymentID:        payment.ID,
		PreferenceID:     pref.ID,
		InitPoint:        pref.InitPoint,
		SandboxInitPoint: pref.SandboxInitPoint,
	}, nil
}

func (uc *CreateOrder) publish(ctx context.Context, msg OrderEventMsg) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishOrderEvent(ctx, msg); err != nil {
		logging.FromCtx(ctx).Warn("order event publish failed", "order_id", msg.OrderID, "error", err)
	}
}

// preferenceItems mirrors the order lines and adds pseudo-items for nonzero
// surcharges so the payer sees the full price breakdown.
func preferenceItems(items []OrderItemRecord, shipping, commission decimal.Decimal) []PreferenceItem {
	out := make([]PreferenceItem, 0, len(items)+2)
	for _, it := range items {
		out = append(out, PreferenceItem{
			Title:     it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if shipping.IsPositive() {
		out = append(out, PreferenceItem{Title: "Shipping", Quantity: 1, UnitPrice: shipping})
	}
	if commission.IsPositive() {
		out = append(out, PreferenceItem{Title: "Processing fee", Quantity: 1, UnitPrice: commission})
	}
	return out
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func validateInput(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "cart is empty"}
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Field: "items", Reason: "quantity must be positive"}
		}
	}
	checks := []struct {
		field, value string
		min          int
	}{
		{"address.fullName", in.Address.FullName, 2},
		{"address.phone", in.Address.Phone, 5},
		{"address.street", in.Address.Street, 3},
		{"address.city", in.Address.City, 2},
		{"address.state", in.Address.State, 2},
		{"address.postalCode", in.Address.PostalCode, 3},
		{"address.country", in.Address.Country, 2},
	}
	for _, c := range checks {
		if len(strings.TrimSpace(c.value)) < c.min {
			return &ValidationError{Field: c.field, Reason: fmt.Sprintf("must be at least %d characters", c.min)}
		}
	}
	return nil
}
