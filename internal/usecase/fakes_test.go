package usecase

import (
	"context"
	"errors"
	"time"
)

type fakeProducts struct {
	byID map[int64]ProductRecord
}

func (f *fakeProducts) ActiveByIDs(_ context.Context, ids []int64) ([]ProductRecord, error) {
	var out []ProductRecord
	for _, id := range ids {
		if p, ok := f.byID[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id int64) (*ProductRecord, error) {
	if p, ok := f.byID[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeProducts) ListActive(_ context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	for _, p := range f.byID {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrders struct {
	products *fakeProducts
	payments *fakePayments
	orders   map[string]*OrderRecord
	items    map[string][]OrderItemRecord
	addrs    map[string]Address
}

func newFakeOrders(products *fakeProducts, payments *fakePayments) *fakeOrders {
	return &fakeOrders{
		products: products,
		payments: payments,
		orders:   map[string]*OrderRecord{},
		items:    map[string][]OrderItemRecord{},
		addrs:    map[string]Address{},
	}
}

// CreateWithItems mimics the transactional repo: all stock checks pass or
// nothing is written.
func (f *fakeOrders) CreateWithItems(_ context.Context, o *OrderRecord, items []OrderItemRecord, addr Address) error {
	for _, it := range items {
		p, ok := f.products.byID[it.ProductID]
		if !ok || !p.Active || p.Stock < it.Quantity {
			return &InsufficientStockError{ProductName: it.Name}
		}
	}
	for _, it := range items {
		p := f.products.byID[it.ProductID]
		p.Stock -= it.Quantity
		f.products.byID[it.ProductID] = p
	}
	cp := *o
	f.orders[o.ID] = &cp
	f.items[o.ID] = items
	f.addrs[o.ID] = addr
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*OrderRecord, error) {
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeOrders) GetDetail(_ context.Context, id string) (*OrderDetail, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	d := &OrderDetail{Order: *o, Items: f.items[id], Address: f.addrs[id]}
	if f.payments != nil {
		for _, pid := range f.payments.order {
			if p := f.payments.byID[pid]; p.OrderID == id {
				d.Payments = append(d.Payments, *p)
			}
		}
	}
	return d, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id, to string) error {
	o, ok := f.orders[id]
	if !ok {
		return errors.New("not found")
	}
	o.Status = to
	return nil
}

func (f *fakeOrders) UpdateStatusIf(_ context.Context, id, from, to string) (bool, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type fakePayments struct {
	byID  map[string]*PaymentRecord
	order []string // insertion order
}

func newFakePayments() *fakePayments {
	return &fakePayments{byID: map[string]*PaymentRecord{}}
}

func (f *fakePayments) Insert(_ context.Context, p *PaymentRecord) error {
	cp := *p
	f.byID[p.ID] = &cp
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePayments) SetPreference(_ context.Context, id, preferenceID string) error {
	p, ok := f.byID[id]
	if !ok {
		return errors.New("not found")
	}
	p.PreferenceID = &preferenceID
	return nil
}

func (f *fakePayments) UpdateResult(_ context.Context, id string, gwID *string, status string, raw []byte) error {
	p, ok := f.byID[id]
	if !ok {
		return errors.New("not found")
	}
	p.GatewayPaymentID = gwID
	p.Status = status
	p.RawPayload = raw
	return nil
}

func (f *fakePayments) FindByGatewayID(_ context.Context, gwID string) (*PaymentRecord, error) {
	for _, p := range f.byID {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == gwID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayments) FindByExternalReference(_ context.Context, ref string) (*PaymentRecord, error) {
	for _, p := range f.byID {
		if p.ExternalReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayments) LatestForOrder(_ context.Context, orderID string) (*PaymentRecord, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		if p := f.byID[f.order[i]]; p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeGateway struct {
	pref     *Preference
	prefErr  error
	prefReqs []PreferenceRequest

	charge     *GatewayPayment
	chargeErr  error
	chargeReqs []ChargeRequest
	idemKeys   []string

	payments map[string]*GatewayPayment
	getErr   error
	getCalls int
}

func (f *fakeGateway) CreatePreference(_ context.Context, req PreferenceRequest) (*Preference, error) {
	f.prefReqs = append(f.prefReqs, req)
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	return f.pref, nil
}

func (f *fakeGateway) CreatePayment(_ context.Context, req ChargeRequest, idemKey string) (*GatewayPayment, error) {
	f.chargeReqs = append(f.chargeReqs, req)
	f.idemKeys = append(f.idemKeys, idemKey)
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return f.charge, nil
}

func (f *fakeGateway) GetPayment(_ context.Context, id string) (*GatewayPayment, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, &GatewayError{StatusCode: 404, Body: "payment not found"}
}

type fakeLedger struct {
	claims map[string]bool
	incr   map[string]int64
	down   bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{claims: map[string]bool{}, incr: map[string]int64{}}
}

func (f *fakeLedger) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.down {
		return false, errors.New("ledger unreachable")
	}
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeLedger) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.down {
		return 0, errors.New("ledger unreachable")
	}
	f.incr[key]++
	return f.incr[key], nil
}

type fakePublisher struct {
	msgs []OrderEventMsg
	fail bool
}

func (f *fakePublisher) PublishOrderEvent(_ context.Context, msg OrderEventMsg) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fakeCache struct {
	statuses map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{statuses: map[string]string{}} }

func (f *fakeCache) SetStatus(_ context.Context, orderID, status string) error {
	f.statuses[orderID] = status
	return nil
}

func (f *fakeCache) GetStatus(_ context.Context, orderID string) (string, bool, error) {
	s, ok := f.statuses[orderID]
	return s, ok, nil
}
