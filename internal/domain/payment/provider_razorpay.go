package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// paiseFactor converts a decimal amount in rupees to integer paise.
var paiseFactor = decimal.NewFromInt(100)

// RazorpayProvider integrates the Razorpay gateway: order creation over its
// REST API and HMAC-SHA256 webhook signature verification against the
// configured webhook secret.
type RazorpayProvider struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret []byte
	client        *http.Client
}

var _ Provider = (*RazorpayProvider)(nil)

// RazorpayConfig holds the credentials for a Razorpay account.
type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

// NewRazorpayProvider creates a RazorpayProvider. The HTTP client carries no
// timeout of its own; intent creation is bounded by the caller's context.
func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.razorpay.com"
	}
	return &RazorpayProvider{
		baseURL:       base,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: []byte(cfg.WebhookSecret),
		client:        &http.Client{},
	}
}

func (p *RazorpayProvider) Name() string { return "razorpay" }

// razorpayOrderReq is the order-creation request body. Razorpay amounts are
// integers in the smallest currency unit.
type razorpayOrderReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResp struct {
	ID string `json:"id"`
}

// CreateIntent creates a Razorpay order and returns its id plus the checkout
// parameters the frontend SDK needs.
func (p *RazorpayProvider) CreateIntent(ctx context.Context, in Intent) (*IntentResult, error) {
	body, err := json.Marshal(razorpayOrderReq{
		Amount:   in.Amount.Mul(paiseFactor).IntPart(),
		Currency: in.Currency,
		Receipt:  in.OrderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal order request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build order request")
	}
	req.SetBasicAuth(p.keyID, p.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "create razorpay order")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("razorpay order creation failed: status %d: %s", resp.StatusCode, b)
	}

	var out razorpayOrderResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}
	if out.ID == "" {
		return nil, errors.New("razorpay order response missing id")
	}

	return &IntentResult{
		ProviderOrderID: out.ID,
		CheckoutParams: map[string]string{
			"key_id":            p.keyID,
			"razorpay_order_id": out.ID,
			"amount":            in.Amount.Mul(paiseFactor).String(),
			"currency":          in.Currency,
		},
	}, nil
}

// VerifySignature checks the X-Razorpay-Signature value: hex HMAC-SHA256 of
// the raw body under the webhook secret.
func (p *RazorpayProvider) VerifySignature(rawBody []byte, signature string) bool {
	return verifyHMAC(p.webhookSecret, rawBody, signature)
}

// razorpayWebhook mirrors the relevant slice of Razorpay's webhook envelope.
type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func (p *RazorpayProvider) ParseWebhook(rawBody []byte) (*WebhookResult, error) {
	var w razorpayWebhook
	if err := json.Unmarshal(rawBody, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	entity := w.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil, fmt.Errorf("%w: missing payment order_id", ErrMalformedWebhook)
	}

	switch w.Event {
	case "payment.captured":
		return &WebhookResult{
			Outcome:           OutcomeCaptured,
			ProviderOrderID:   entity.OrderID,
			ProviderPaymentID: entity.ID,
		}, nil
	case "payment.failed":
		return &WebhookResult{
			Outcome:           OutcomeFailed,
			ProviderOrderID:   entity.OrderID,
			ProviderPaymentID: entity.ID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unhandled event %q", ErrMalformedWebhook, w.Event)
	}
}
