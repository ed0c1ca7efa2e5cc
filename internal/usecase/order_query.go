package usecase

import (
	"context"
	"fmt"
	"strings"
)

// Viewer is what the auth layer knows about the caller. Zero value means an
// unauthenticated (guest) request.
type Viewer struct {
	UserID string
	Email  string
	Admin  bool
}

// OrderQuery serves the confirmation page and the lightweight status probe.
type OrderQuery struct {
	orders OrderRepo
	cache  OrderStatusCache
}

func NewOrderQuery(orders OrderRepo, cache OrderStatusCache) *OrderQuery {
	return &OrderQuery{orders: orders, cache: cache}
}

// Confirmation returns the full order detail when the caller is the owning
// user, an admin, or supplies the matching guest email.
func (uc *OrderQuery) Confirmation(ctx context.Context, orderID, guestEmail string, v Viewer) (*OrderDetail, error) {
	detail, err := uc.orders.GetDetail(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if detail == nil {
		return nil, ErrOrderNotFound
	}
	if !canView(detail.Order, guestEmail, v) {
		return nil, ErrForbidden
	}
	return detail, nil
}

// Status is cache-first; on a miss it reads the order row and backfills.
func (uc *OrderQuery) Status(ctx context.Context, orderID string) (string, error) {
	if uc.cache != nil {
		if s, ok, err := uc.cache.GetStatus(ctx, orderID); err == nil && ok {
			return s, nil
		}
	}
	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, orderID, order.Status)
	}
	return order.Status, nil
}

func canView(o OrderRecord, guestEmail string, v Viewer) bool {
	if v.Admin {
		return true
	}
	if v.UserID != "" && o.UserID != nil && *o.UserID == v.UserID {
		return true
	}
	if o.GuestEmail != nil && guestEmail != "" {
		return strings.EqualFold(*o.GuestEmail, guestEmail)
	}
	return false
}
