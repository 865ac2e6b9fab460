package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MockProvider is an in-process gateway used in development and tests. It
// issues synthetic provider order ids and accepts webhooks signed with its
// configured secret, so the full capture flow can run without an external
// gateway.
type MockProvider struct {
	secret []byte
}

var _ Provider = (*MockProvider)(nil)

// NewMockProvider creates a MockProvider with the given webhook secret.
func NewMockProvider(secret string) *MockProvider {
	return &MockProvider{secret: []byte(secret)}
}

func (p *MockProvider) Name() string { return "mock" }

// CreateIntent issues a synthetic provider order id.
func (p *MockProvider) CreateIntent(_ context.Context, in Intent) (*IntentResult, error) {
	id := "mock_order_" + uuid.New().String()
	return &IntentResult{
		ProviderOrderID: id,
		CheckoutParams: map[string]string{
			"provider_order_id": id,
			"amount":            in.Amount.StringFixed(2),
			"currency":          in.Currency,
		},
	}, nil
}

func (p *MockProvider) VerifySignature(rawBody []byte, signature string) bool {
	return verifyHMAC(p.secret, rawBody, signature)
}

// mockWebhook is the wire shape of the mock gateway's webhook payload.
type mockWebhook struct {
	Event             string `json:"event"`
	ProviderOrderID   string `json:"provider_order_id"`
	ProviderPaymentID string `json:"provider_payment_id"`
}

func (p *MockProvider) ParseWebhook(rawBody []byte) (*WebhookResult, error) {
	var w mockWebhook
	if err := json.Unmarshal(rawBody, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if w.ProviderOrderID == "" {
		return nil, fmt.Errorf("%w: missing provider_order_id", ErrMalformedWebhook)
	}

	switch w.Event {
	case "payment.captured":
		return &WebhookResult{
			Outcome:           OutcomeCaptured,
			ProviderOrderID:   w.ProviderOrderID,
			ProviderPaymentID: w.ProviderPaymentID,
		}, nil
	case "payment.failed":
		return &WebhookResult{
			Outcome:           OutcomeFailed,
			ProviderOrderID:   w.ProviderOrderID,
			ProviderPaymentID: w.ProviderPaymentID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedWebhook, w.Event)
	}
}

// SignWebhook returns the signature the mock gateway would attach to body.
func (p *MockProvider) SignWebhook(body []byte) string {
	return signHMAC(p.secret, body)
}
