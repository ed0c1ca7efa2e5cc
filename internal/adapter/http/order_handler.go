package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dcastano/store-api/internal/adapter/http/middleware"
	"github.com/dcastano/store-api/internal/usecase"
)

type OrderHandler struct {
	create *usecase.CreateOrder
	query  *usecase.OrderQuery
}

func NewOrderHandler(create *usecase.CreateOrder, query *usecase.OrderQuery) *OrderHandler {
	return &OrderHandler{create: create, query: query}
}

type createOrderReq struct {
	GuestEmail string `json:"guestEmail" binding:"omitempty,email"`

	Address struct {
		FullName   string `json:"fullName" binding:"required,min=2"`
		Phone      string `json:"phone" binding:"required,min=5"`
		Street     string `json:"street" binding:"required,min=3"`
		City       string `json:"city" binding:"required,min=2"`
		State      string `json:"state" binding:"required,min=2"`
		PostalCode string `json:"postalCode" binding:"required,min=3"`
		Country    string `json:"country" binding:"required,min=2"`
	} `json:"address" binding:"required"`

	Items []struct {
		ProductID int64 `json:"productId" binding:"required"`
		Quantity  int   `json:"quantity" binding:"required,gt=0"`
	} `json:"items" binding:"required,min=1,dive"`

	ShippingCost decimal.Decimal `json:"shippingCost"`
	MPCommission decimal.Decimal `json:"mpCommission"`
}

// CreateOrder handles POST /v1/orders: validate cart, reserve stock, persist
// the order, open a payment preference.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
		return
	}

	in := usecase.CreateOrderInput{
		GuestEmail: req.GuestEmail,
		Address: usecase.AddressInput{
			FullName:   req.Address.FullName,
			Phone:      req.Address.Phone,
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
		ShippingCost: req.ShippingCost,
		Commission:   req.MPCommission,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if claims, ok := middleware.ClaimsFrom(c); ok && claims.UserID != "" {
		uid := claims.UserID
		in.UserID = &uid
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	out, err := h.create.Execute(ctx, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"orderId": out.OrderID,
		"payment": gin.H{
			"id":               out.PaymentID,
			"preferenceId":     out.PreferenceID,
			"initPoint":        out.InitPoint,
			"sandboxInitPoint": out.SandboxInitPoint,
		},
	})
}

// Confirmation handles GET /v1/orders/:id/confirmation?email=.
func (h *OrderHandler) Confirmation(c *gin.Context) {
	viewer := usecase.Viewer{}
	if claims, ok := middleware.ClaimsFrom(c); ok {
		viewer = usecase.Viewer{UserID: claims.UserID, Email: claims.Email, Admin: claims.IsAdmin()}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	detail, err := h.query.Confirmation(ctx, c.Param("id"), c.Query("email"), viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, confirmationJSON(detail))
}

// Status handles GET /v1/orders/:id/status (cache-first probe used by the
// storefront while waiting for the webhook).
func (h *OrderHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, err := h.query.Status(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": c.Param("id"), "status": status})
}

func confirmationJSON(d *usecase.OrderDetail) gin.H {
	items := make([]gin.H, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, gin.H{
			"productId": it.ProductID,
			"name":      it.Name,
			"unitPrice": it.UnitPrice.StringFixed(2),
			"quantity":  it.Quantity,
		})
	}
	payments := make([]gin.H, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, gin.H{
			"id":                p.ID,
			"status":            p.Status,
			"amount":            p.Amount.StringFixed(2),
			"externalReference": p.ExternalReference,
			"gatewayPaymentId":  p.GatewayPaymentID,
		})
	}
	return gin.H{
		"orderId":   d.Order.ID,
		"status":    d.Order.Status,
		"total":     d.Order.Total.StringFixed(2),
		"createdAt": d.Order.CreatedAt,
		"address": gin.H{
			"fullName":   d.Address.FullName,
			"phone":      d.Address.Phone,
			"street":     d.Address.Street,
			"city":       d.Address.City,
			"state":      d.Address.State,
			"postalCode": d.Address.PostalCode,
			"country":    d.Address.Country,
		},
		"items":    items,
		"payments": payments,
	}
}
