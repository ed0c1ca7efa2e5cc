package kafka

import (
	"context"
	"fmt"

	domain "github.com/dcastano/store-api/internal/entity"
	"github.com/dcastano/store-api/internal/usecase"
)

// OrderStatusChangedHandler applies admin-panel status changes. Transitions
// are guarded: shipping requires a paid order, cancelling a pending one.
type OrderStatusChangedHandler struct {
	Repo  usecase.OrderRepo
	Cache usecase.OrderStatusCache // optional
}

func NewOrderStatusChangedHandler(repo usecase.OrderRepo, cache usecase.OrderStatusCache) *OrderStatusChangedHandler {
	return &OrderStatusChangedHandler{Repo: repo, Cache: cache}
}

func (h *OrderStatusChangedHandler) Handle(ctx context.Context, ev usecase.OrderStatusChangedMsg) error {
	var from, to domain.OrderStatus
	switch domain.OrderStatus(ev.Status) {
	case domain.OrderShipped:
		from, to = domain.OrderPaid, domain.OrderShipped
	case domain.OrderCancelled:
		from, to = domain.OrderPending, domain.OrderCancelled
	default:
		// Unknown or disallowed target; drop rather than retry forever.
		return nil
	}

	moved, err := h.Repo.UpdateStatusIf(ctx, ev.OrderID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update order %s: %w", ev.OrderID, err)
	}
	if !moved {
		return nil
	}

	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, ev.OrderID, string(to))
	}
	return nil
}
