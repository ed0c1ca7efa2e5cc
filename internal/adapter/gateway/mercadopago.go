package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dcastano/store-api/internal/usecase"
)

const DefaultBaseURL = "https://api.mercadopago.com"

// MercadoPago is a thin client over the processor's REST API: preference
// creation, direct charge, and payment lookup. Bearer-token auth, bounded
// timeout, no retries — retry policy belongs to callers.
type MercadoPago struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewMercadoPago(baseURL, accessToken string, timeout time.Duration) *MercadoPago {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &MercadoPago{
		baseURL: baseURL,
		token:   accessToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type preferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferenceBody struct {
	ExternalReference string         `json:"external_reference"`
	Items             []preferenceItem `json:"items"`
	Payer             *struct {
		Email string `json:"email"`
	} `json:"payer,omitempty"`
	NotificationURL string `json:"notification_url,omitempty"`
	BackURLs        struct {
		Success string `json:"success"`
		Failure string `json:"failure"`
		Pending string `json:"pending"`
	} `json:"back_urls"`
	AutoReturn string `json:"auto_return,omitempty"`
}

type preferenceResp struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func (c *MercadoPago) CreatePreference(ctx context.Context, req usecase.PreferenceRequest) (*usecase.Preference, error) {
	body := preferenceBody{
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
		AutoReturn:        "approved",
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
		})
	}
	if req.PayerEmail != "" {
		body.Payer = &struct {
			Email string `json:"email"`
		}{Email: req.PayerEmail}
	}
	body.BackURLs.Success = req.BackURLs.Success
	body.BackURLs.Failure = req.BackURLs.Failure
	body.BackURLs.Pending = req.BackURLs.Pending

	raw, err := c.do(ctx, http.MethodPost, "/checkout/preferences", body, nil)
	if err != nil {
		return nil, err
	}
	var pr preferenceResp
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, &usecase.GatewayError{Err: fmt.Errorf("decode preference: %w", err)}
	}
	return &usecase.Preference{
		ID:               pr.ID,
		InitPoint:        pr.InitPoint,
		SandboxInitPoint: pr.SandboxInitPoint,
	}, nil
}

type paymentResp struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
}

// CreatePayment posts a direct charge. The form data from the checkout brick
// is passed through untouched; amount and external reference are stamped on
// top. The idempotency key dedups retries of the same logical attempt on the
// gateway's side.
func (c *MercadoPago) CreatePayment(ctx context.Context, req usecase.ChargeRequest, idempotencyKey string) (*usecase.GatewayPayment, error) {
	body := make(map[string]any, len(req.FormData)+3)
	for k, v := range req.FormData {
		body[k] = v
	}
	body["transaction_amount"] = req.Amount.InexactFloat64()
	body["external_reference"] = req.ExternalReference
	if req.Description != "" {
		body["description"] = req.Description
	}

	headers := map[string]string{"X-Idempotency-Key": idempotencyKey}
	raw, err := c.do(ctx, http.MethodPost, "/v1/payments", body, headers)
	if err != nil {
		return nil, err
	}
	return parsePayment(raw)
}

func (c *MercadoPago) GetPayment(ctx context.Context, id string) (*usecase.GatewayPayment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return parsePayment(raw)
}

func parsePayment(raw []byte) (*usecase.GatewayPayment, error) {
	var pr paymentResp
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, &usecase.GatewayError{Err: fmt.Errorf("decode payment: %w", err)}
	}
	return &usecase.GatewayPayment{
		ID:                pr.ID.String(),
		Status:            pr.Status,
		StatusDetail:      pr.StatusDetail,
		ExternalReference: pr.ExternalReference,
		Raw:               raw,
	}, nil
}

func (c *MercadoPago) do(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &usecase.GatewayError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &usecase.GatewayError{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &usecase.GatewayError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

var _ usecase.PaymentGateway = (*MercadoPago)(nil)
