package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ritesh5001/tatvivah-marketplace/internal/cache"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/settlement"
	"github.com/ritesh5001/tatvivah-marketplace/internal/notify"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// Processor owns the payment lifecycle: intent initiation and exactly-once
// application of at-least-once webhook deliveries.
type Processor struct {
	tx          TxRunner
	payments    Repository
	orders      order.Repository
	settlements settlement.Repository
	providers   map[string]Provider
	notifier    notify.Notifier
	store       cache.Store

	// intentTimeout bounds the gateway call during initiation. On timeout no
	// payment row exists.
	intentTimeout time.Duration

	currency string
}

// ProcessorConfig holds non-dependency settings for the Processor.
type ProcessorConfig struct {
	IntentTimeout time.Duration
	Currency      string
}

// NewProcessor creates a Processor. Providers are registered by name and
// selected by the inbound webhook route.
func NewProcessor(
	cfg ProcessorConfig,
	tx TxRunner,
	payments Repository,
	orders order.Repository,
	settlements settlement.Repository,
	providers []Provider,
	notifier notify.Notifier,
	store cache.Store,
) *Processor {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	timeout := cfg.IntentTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}

	return &Processor{
		tx:            tx,
		payments:      payments,
		orders:        orders,
		settlements:   settlements,
		providers:     byName,
		notifier:      notifier,
		store:         store,
		intentTimeout: timeout,
		currency:      currency,
	}
}

// InitiateResult is returned to the caller so the frontend can open the
// gateway checkout flow.
type InitiateResult struct {
	PaymentID       string
	ProviderOrderID string
	CheckoutParams  map[string]string
}

// Initiate creates a provider-side payment intent for the order and records
// the INITIATED payment. Only the order's buyer may initiate; non-owners get
// the same not-found as a missing order. The gateway call is bounded by the
// configured timeout; if it fails or times out, no payment row is left behind.
func (p *Processor) Initiate(ctx context.Context, orderID, buyerID, providerName string) (*InitiateResult, error) {
	provider, ok := p.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	o, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != buyerID {
		return nil, order.ErrNotFound
	}
	if o.Status != order.StatusPlaced {
		return nil, ErrOrderNotPayable
	}

	// A FAILED payment may be retried; anything else blocks re-initiation.
	existing, err := p.payments.FindActiveByOrder(ctx, orderID)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("lookup existing payment: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	intentCtx, cancel := context.WithTimeout(ctx, p.intentTimeout)
	defer cancel()

	intent, err := provider.CreateIntent(intentCtx, Intent{
		OrderID:  orderID,
		Amount:   o.TotalAmount,
		Currency: p.currency,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	pay := &Payment{
		ID:              uuid.New().String(),
		OrderID:         orderID,
		Provider:        providerName,
		ProviderOrderID: intent.ProviderOrderID,
		Status:          StatusInitiated,
	}
	if err := p.payments.Create(ctx, pay); err != nil {
		// The lookup above is check-then-act; the storage-level uniqueness of
		// active payments per order catches the race it cannot.
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	return &InitiateResult{
		PaymentID:       pay.ID,
		ProviderOrderID: intent.ProviderOrderID,
		CheckoutParams:  intent.CheckoutParams,
	}, nil
}

// ApplyWebhook verifies and applies one webhook delivery. Deliveries are
// at-least-once; the terminal state transition is exactly-once. A duplicate
// delivery for an already-terminal payment is the documented no-op.
func (p *Processor) ApplyWebhook(ctx context.Context, providerName string, rawBody []byte, signature string) error {
	provider, ok := p.providers[providerName]
	if !ok {
		return ErrUnknownProvider
	}

	if !provider.VerifySignature(rawBody, signature) {
		return ErrInvalidSignature
	}

	result, err := provider.ParseWebhook(rawBody)
	if err != nil {
		return err
	}

	switch result.Outcome {
	case OutcomeCaptured:
		return p.applyCaptured(ctx, result, rawBody, signature)
	case OutcomeFailed:
		return p.applyFailed(ctx, result, rawBody)
	default:
		return fmt.Errorf("%w: outcome %q", ErrMalformedWebhook, result.Outcome)
	}
}

// applyCaptured performs the success transition: payment SUCCESS, payment
// event, order CONFIRMED, and one PENDING settlement per order item — all in
// one transaction. Notifications go out after commit, best effort.
func (p *Processor) applyCaptured(ctx context.Context, result *WebhookResult, rawBody []byte, signature string) error {
	lg := zctx.From(ctx)

	pay, err := p.payments.FindByProviderOrderID(ctx, result.ProviderOrderID)
	if err != nil {
		if isNotFound(err) {
			// The webhook may precede the initiation flow's commit or refer
			// to a foreign order. Acknowledge so the gateway stops retrying.
			lg.Warn("webhook for unknown provider order",
				zap.String("provider_order_id", result.ProviderOrderID))
			return nil
		}
		return fmt.Errorf("resolve payment: %w", err)
	}

	if pay.Status == StatusSuccess {
		lg.Info("duplicate capture webhook ignored", zap.String("payment_id", pay.ID))
		return nil
	}

	var confirmed *order.Order
	err = p.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := p.payments.MarkSucceeded(ctx, pay.ID, result.ProviderPaymentID, signature)
		if err != nil {
			return fmt.Errorf("mark payment succeeded: %w", err)
		}
		if !ok {
			// A concurrent delivery already applied the transition.
			lg.Info("concurrent capture webhook lost the race", zap.String("payment_id", pay.ID))
			return nil
		}

		if err := p.payments.AppendEvent(ctx, &Event{
			ID:        uuid.New().String(),
			PaymentID: pay.ID,
			Type:      EventWebhook,
			Payload:   rawBody,
		}); err != nil {
			return fmt.Errorf("append payment event: %w", err)
		}

		o, err := p.orders.GetForUpdate(ctx, pay.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		if err := p.orders.SetStatus(ctx, o.ID, order.StatusConfirmed); err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}

		settlements := make([]settlement.SellerSettlement, 0, len(o.Items))
		for _, it := range o.Items {
			settlements = append(settlements, settlement.SellerSettlement{
				ID:          uuid.New().String(),
				OrderID:     o.ID,
				OrderItemID: it.ID,
				SellerID:    it.SellerID,
				Amount:      it.PriceSnapshot.Mul(decimalFromInt(it.Quantity)).Round(2),
				Status:      settlement.StatusPending,
			})
		}
		if err := p.settlements.CreateBatch(ctx, settlements); err != nil {
			return fmt.Errorf("create settlements: %w", err)
		}

		confirmed = o
		return nil
	})
	if err != nil {
		return err
	}
	if confirmed == nil {
		return nil
	}

	cache.InvalidateLogged(ctx, p.store, cache.OrderTrackingKey(confirmed.ID))
	p.notifyCaptured(ctx, confirmed)
	return nil
}

// notifyCaptured fans out buyer and seller notifications. Failures are
// logged, never returned, and never retried here.
func (p *Processor) notifyCaptured(ctx context.Context, o *order.Order) {
	lg := zctx.From(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.notifier.Notify(gctx, notify.KindPaymentCaptured, o.BuyerID, map[string]string{
			"order_id": o.ID,
		}); err != nil {
			lg.Warn("buyer notification failed", zap.String("order_id", o.ID), zap.Error(err))
		}
		return nil
	})
	for _, sellerID := range o.SellerIDs() {
		g.Go(func() error {
			if err := p.notifier.Notify(gctx, notify.KindSellerOrderPlaced, sellerID, map[string]string{
				"order_id": o.ID,
			}); err != nil {
				lg.Warn("seller notification failed",
					zap.String("order_id", o.ID),
					zap.String("seller_id", sellerID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// applyFailed records a failed payment. The order is not touched: the buyer
// can re-initiate payment after a failure.
func (p *Processor) applyFailed(ctx context.Context, result *WebhookResult, rawBody []byte) error {
	lg := zctx.From(ctx)

	pay, err := p.payments.FindByProviderOrderID(ctx, result.ProviderOrderID)
	if err != nil {
		if isNotFound(err) {
			lg.Warn("failure webhook for unknown provider order",
				zap.String("provider_order_id", result.ProviderOrderID))
			return nil
		}
		return fmt.Errorf("resolve payment: %w", err)
	}

	if pay.Status.Terminal() {
		lg.Info("duplicate failure webhook ignored", zap.String("payment_id", pay.ID))
		return nil
	}

	return p.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := p.payments.MarkFailed(ctx, pay.ID)
		if err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		if !ok {
			lg.Info("concurrent failure webhook lost the race", zap.String("payment_id", pay.ID))
			return nil
		}
		if err := p.payments.AppendEvent(ctx, &Event{
			ID:        uuid.New().String(),
			PaymentID: pay.ID,
			Type:      EventFailed,
			Payload:   rawBody,
		}); err != nil {
			return fmt.Errorf("append payment event: %w", err)
		}
		return nil
	})
}
