package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dcastano/store-api/internal/logging"
	"github.com/dcastano/store-api/internal/security"
	"github.com/dcastano/store-api/internal/usecase"
)

const webhookBodyLimit = 64 * 1024

type PaymentHandler struct {
	reconcile *usecase.ReconcilePayment
	verifier  *security.WebhookVerifier
	logRaw    bool // operator toggle: dump raw webhook requests
}

func NewPaymentHandler(reconcile *usecase.ReconcilePayment, verifier *security.WebhookVerifier, logRaw bool) *PaymentHandler {
	return &PaymentHandler{reconcile: reconcile, verifier: verifier, logRaw: logRaw}
}

type processReq struct {
	OrderID  string         `json:"orderId" binding:"required"`
	FormData map[string]any `json:"formData" binding:"required"`
}

// Process handles POST /v1/payments/process — the synchronous card path.
func (h *PaymentHandler) Process(c *gin.Context) {
	var req processReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	out, err := h.reconcile.Process(ctx, usecase.ProcessInput{
		OrderID:  req.OrderID,
		FormData: req.FormData,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        out.Status,
		"status_detail": out.StatusDetail,
		"payment_id":    out.PaymentID,
	})
}

// webhookBody is the subset of the gateway notification we read. The status
// field is deliberately absent — authoritative state is always fetched back
// from the gateway.
type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Webhook handles POST /v1/payments/webhook. Signature failures are 401 (a
// forged request must never be retried into success); everything the system
// has evaluated is 200 with a small outcome marker so the gateway stops
// retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if h.logRaw {
		logging.From(c).Info("webhook raw",
			"query", c.Request.URL.RawQuery,
			"body", string(raw))
	}

	// data.id comes from the query string when present, else the JSON body.
	eventType := c.Query("type")
	dataID := c.Query("data.id")
	if eventType == "" || dataID == "" {
		var body webhookBody
		if err := json.Unmarshal(raw, &body); err == nil {
			if eventType == "" {
				eventType = body.Type
			}
			if dataID == "" {
				dataID = body.Data.ID
			}
		}
	}

	requestID := c.GetHeader("x-request-id")
	if h.verifier.Enabled() {
		sig := c.GetHeader("x-signature")
		if err := h.verifier.Verify(sig, requestID, dataID); err != nil {
			logging.From(c).Warn("webhook signature rejected", "request_id", requestID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	outcome, err := h.reconcile.HandleWebhook(ctx, usecase.WebhookInput{
		EventType: eventType,
		DataID:    dataID,
		RequestID: requestID,
	})
	if err != nil {
		// The gateway will retry; the dedup claim taken before the risky
		// work swallows that retry as a duplicate.
		logging.From(c).Error("webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}
