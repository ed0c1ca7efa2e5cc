package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Persistence shapes (kept out of domain).

type ProductRecord struct {
	ID     int64
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

type Address struct {
	FullName, Phone, Street, City, State, PostalCode, Country string
}

type OrderRecord struct {
	ID         string
	UserID     *string
	GuestEmail *string
	Status     string
	Total      decimal.Decimal
	CreatedAt  time.Time
}

// OrderItemRecord captures the product name and unit price at purchase time.
// Immutable after creation; live product edits never touch it.
type OrderItemRecord struct {
	ID        int64
	OrderID   string
	ProductID int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type PaymentRecord struct {
	ID                string
	OrderID           string
	Amount            decimal.Decimal
	Status            string
	ExternalReference string
	PreferenceID      *string
	GatewayPaymentID  *string
	RawPayload        []byte // opaque provider payload, audit only
	CreatedAt         time.Time
}

type OrderDetail struct {
	Order    OrderRecord
	Items    []OrderItemRecord
	Address  Address
	Payments []PaymentRecord
}

type ProductStore interface {
	ActiveByIDs(ctx context.Context, ids []int64) ([]ProductRecord, error)
	GetByID(ctx context.Context, id int64) (*ProductRecord, error)
	ListActive(ctx context.Context) ([]ProductRecord, error)
}

// OrderRepo persists orders. CreateWithItems is atomic: it decrements each
// product's stock (failing the whole transaction on insufficient stock),
// inserts the shipping address, the order row and its items. Nothing commits
// partially.
type OrderRepo interface {
	CreateWithItems(ctx context.Context, o *OrderRecord, items []OrderItemRecord, addr Address) error
	GetByID(ctx context.Context, id string) (*OrderRecord, error)
	GetDetail(ctx context.Context, id string) (*OrderDetail, error)
	UpdateStatus(ctx context.Context, id, toStatus string) error
	UpdateStatusIf(ctx context.Context, id, fromStatus, toStatus string) (bool, error)
}

// PaymentRepo lookups return (nil, nil) when no row matches.
type PaymentRepo interface {
	Insert(ctx context.Context, p *PaymentRecord) error
	SetPreference(ctx context.Context, id, preferenceID string) error
	UpdateResult(ctx context.Context, id string, gatewayPaymentID *string, status string, raw []byte) error
	FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*PaymentRecord, error)
	FindByExternalReference(ctx context.Context, ref string) (*PaymentRecord, error)
	LatestForOrder(ctx context.Context, orderID string) (*PaymentRecord, error)
}

// Ledger is the short-TTL dedup/rate-limit store. It is best-effort: a
// non-nil error means the backend is unreachable, which is distinct from a
// denied claim — callers decide to fail open.
type Ledger interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IncrWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Gateway request/response shapes.

type PreferenceItem struct {
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

type BackURLs struct {
	Success, Failure, Pending string
}

type PreferenceRequest struct {
	ExternalReference string
	Items             []PreferenceItem
	PayerEmail        string
	NotificationURL   string
	BackURLs          BackURLs
}

type Preference struct {
	ID               string
	InitPoint        string
	SandboxInitPoint string
}

type ChargeRequest struct {
	FormData          map[string]any
	Amount            decimal.Decimal
	ExternalReference string
	Description       string
}

type GatewayPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Raw               []byte
}

// PaymentGateway is the external processor. No retries at this layer; retry
// policy belongs to callers.
type PaymentGateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	CreatePayment(ctx context.Context, req ChargeRequest, idempotencyKey string) (*GatewayPayment, error)
	GetPayment(ctx context.Context, id string) (*GatewayPayment, error)
}

// EventPublisher emits order lifecycle events. Best-effort: callers log and
// move on when publishing fails.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, msg OrderEventMsg) error
}

type OrderStatusCache interface {
	SetStatus(ctx context.Context, orderID, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
}
