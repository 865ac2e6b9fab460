package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// Intent is a request to create a provider-side payment order.
type Intent struct {
	OrderID  string
	Amount   decimal.Decimal
	Currency string
}

// IntentResult is the gateway's answer to intent creation. CheckoutParams are
// provider-specific values the frontend needs to open the payment flow.
type IntentResult struct {
	ProviderOrderID string
	CheckoutParams  map[string]string
}

// Outcome is the terminal result a webhook reports.
type Outcome string

const (
	OutcomeCaptured Outcome = "captured"
	OutcomeFailed   Outcome = "failed"
)

// WebhookResult is a parsed, signature-verified webhook payload reduced to
// the two facts the processor needs.
type WebhookResult struct {
	Outcome           Outcome
	ProviderOrderID   string
	ProviderPaymentID string
}

// Provider abstracts one payment gateway. Implementations are selected by the
// inbound route tag, never by inspecting the payload shape.
type Provider interface {
	Name() string

	// CreateIntent asks the gateway for a provider-side order id. It must
	// respect ctx cancellation; on timeout the caller creates no payment row.
	CreateIntent(ctx context.Context, in Intent) (*IntentResult, error)

	// VerifySignature checks the webhook signature over the raw body.
	VerifySignature(rawBody []byte, signature string) bool

	// ParseWebhook maps a verified raw payload to a WebhookResult.
	ParseWebhook(rawBody []byte) (*WebhookResult, error)
}

// verifyHMAC computes HMAC-SHA256 over body with secret and compares it to
// the hex-encoded signature in constant time.
func verifyHMAC(secret, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// signHMAC returns the hex-encoded HMAC-SHA256 of body. Exposed for tests and
// the mock provider's webhook simulator.
func signHMAC(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
