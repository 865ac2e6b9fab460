// Package checkout turns a buyer's cart into a placed order: stock is
// validated and decremented, prices are frozen, and the cart is cleared, all
// within one transaction so a failure on any line leaves no partial effects.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/cart"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/inventory"
	"github.com/ritesh5001/tatvivah-marketplace/internal/domain/order"
)

// ErrEmptyCart is returned when checkout is attempted with no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// TxRunner executes fn inside a single storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the checkout orchestrator.
type Service struct {
	tx        TxRunner
	carts     cart.Repository
	inventory inventory.Repository
	orders    order.Repository
}

// NewService creates a checkout Service.
func NewService(
	tx TxRunner,
	carts cart.Repository,
	inv inventory.Repository,
	orders order.Repository,
) *Service {
	return &Service{tx: tx, carts: carts, inventory: inv, orders: orders}
}

// Checkout places an order from the buyer's cart, carrying the optional
// shipping metadata onto the order. For every cart line the current price and
// stock are re-read from the ledger — never the cart's stale snapshot — and
// stock is decremented with a conditional write, so a concurrent checkout can
// never oversell. Any failing line aborts the whole transaction: no order, no
// decrements, cart intact.
func (s *Service) Checkout(ctx context.Context, buyerID string, shipping map[string]string) (*order.Order, error) {
	lines, err := s.carts.LinesByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	o := &order.Order{
		ID:       uuid.New().String(),
		BuyerID:  buyerID,
		Status:   order.StatusPlaced,
		Shipping: shipping,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		total := decimal.Zero
		items := make([]order.Item, 0, len(lines))

		for _, line := range lines {
			v, err := s.inventory.GetVariant(ctx, line.VariantID)
			if err != nil {
				return fmt.Errorf("read variant %s: %w", line.VariantID, err)
			}

			// Conditional decrement; fails the whole checkout when stock is
			// short, identifying the offending line.
			if err := s.inventory.DecrementStock(ctx, line.VariantID, line.Quantity); err != nil {
				return err
			}

			items = append(items, order.Item{
				ID:            uuid.New().String(),
				OrderID:       o.ID,
				SellerID:      v.SellerID,
				ProductID:     v.ProductID,
				VariantID:     v.VariantID,
				Quantity:      line.Quantity,
				PriceSnapshot: v.Price,
			})
			total = total.Add(v.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		o.Items = items
		o.TotalAmount = total.Round(2)

		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return s.carts.Clear(ctx, buyerID)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}
