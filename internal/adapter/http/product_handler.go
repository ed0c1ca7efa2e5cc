package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/dcastano/store-api/internal/entity"
	"github.com/dcastano/store-api/internal/usecase"
)

type ProductHandler struct {
	products usecase.ProductStore
}

func NewProductHandler(products usecase.ProductStore) *ProductHandler {
	return &ProductHandler{products: products}
}

func (h *ProductHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	products, err := h.products.ListActive(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(products))
	for _, p := range products {
		out = append(out, productJSON(p))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	p, err := h.products.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if p == nil || !p.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, productJSON(*p))
}

func productJSON(p usecase.ProductRecord) gin.H {
	return gin.H{
		"id":    p.ID,
		"name":  p.Name,
		"price": p.Price.StringFixed(2),
		"stock": p.Stock,
	}
}

// AdminOrderHandler covers the one admin action the payment flow depends on:
// explicit status transitions (ship, cancel, manual mark-paid).
type AdminOrderHandler struct {
	orders usecase.OrderRepo
	cache  usecase.OrderStatusCache
}

func NewAdminOrderHandler(orders usecase.OrderRepo, cache usecase.OrderStatusCache) *AdminOrderHandler {
	return &AdminOrderHandler{orders: orders, cache: cache}
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *AdminOrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	if !domain.ValidOrderStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown order status"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	id := c.Param("id")
	order, err := h.orders.GetByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if order == nil {
		respondError(c, usecase.ErrOrderNotFound)
		return
	}
	if err := h.orders.UpdateStatus(ctx, id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.SetStatus(ctx, id, req.Status)
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "status": req.Status})
}
