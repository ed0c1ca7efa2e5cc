package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// WebhookVerifier checks the gateway's x-signature header. The header is a
// comma-separated list of key=value pairs carrying a timestamp (ts) and a hex
// HMAC (v1). The HMAC covers the canonical manifest
//
//	id:<paymentID>;request-id:<requestID>;ts:<ts>;
//
// keyed with the shared webhook secret. An empty secret disables
// verification — an explicit operator choice for development.
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

func (v *WebhookVerifier) Enabled() bool { return len(v.secret) > 0 }

func (v *WebhookVerifier) Verify(signatureHeader, requestID, paymentID string) error {
	if !v.Enabled() {
		return nil
	}
	if signatureHeader == "" || requestID == "" || paymentID == "" {
		return ErrInvalidSignature
	}

	ts, v1 := parseSignatureHeader(signatureHeader)
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(v1)
	if err != nil {
		return ErrInvalidSignature
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", paymentID, requestID, ts)
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(manifest))
	if !hmac.Equal(mac.Sum(nil), got) {
		return ErrInvalidSignature
	}
	return nil
}

func parseSignatureHeader(h string) (ts, v1 string) {
	for _, part := range strings.Split(h, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(val)
		case "v1":
			v1 = strings.TrimSpace(val)
		}
	}
	return ts, v1
}
