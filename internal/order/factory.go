package order

import (
	"context"
	"fmt"
	"time"

	"blendshop/internal/errs"
	"blendshop/internal/models"
	"blendshop/internal/order/db"

	"github.com/google/uuid"
)

// PricingRules computes the non-line-item parts of an order total from shop
// policy. Promotions are resolved by the caller and arrive as a discount.
type PricingRules struct {
	ShippingFlatCents    int64
	FreeShippingMinCents int64
	TaxRateBasis         int64
}

func (p PricingRules) Totals(subtotalCents, discountCents int64) (shipping, tax, total int64) {
	shipping = p.ShippingFlatCents
	if p.FreeShippingMinCents > 0 && subtotalCents >= p.FreeShippingMinCents {
		shipping = 0
	}
	tax = subtotalCents * p.TaxRateBasis / 10000
	total = subtotalCents + shipping + tax - discountCents
	return shipping, tax, total
}

// PlaceOrder is the order factory: within one transaction it reserves stock
// line by line with the guarded decrement, snapshots names and unit prices,
// computes totals and inserts the order as pending. Any line failing the
// stock guard rolls the whole reservation back.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	now := time.Now()
	var order *models.Order

	err := s.DB.RunInTx(ctx, func(ctx context.Context, st *db.Store) error {
		items := make([]models.OrderItem, 0, len(req.Lines))
		var subtotal int64

		for _, line := range req.Lines {
			product, err := st.GetProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if err := st.DecrementStock(ctx, orderID, line.ProductID, line.Quantity); err != nil {
				return err
			}
			items = append(items, models.OrderItem{
				ItemID:         uuid.NewString(),
				OrderID:        orderID,
				ProductID:      product.ProductID,
				Name:           product.Name,
				Quantity:       line.Quantity,
				UnitPriceCents: product.PriceCents,
			})
			subtotal += product.PriceCents * int64(line.Quantity)
		}

		shipping, tax, total := s.Pricing.Totals(subtotal, req.DiscountCents)
		if total < 0 {
			return errs.Validation("discount %d exceeds order value", req.DiscountCents)
		}

		order = &models.Order{
			OrderID:         orderID,
			Owner:           req.Owner,
			ShippingAddress: req.ShippingAddress,
			SubtotalCents:   subtotal,
			ShippingCents:   shipping,
			TaxCents:        tax,
			DiscountCents:   req.DiscountCents,
			TotalCents:      total,
			Currency:        s.Currency,
			Status:          models.StatusPending,
			CreatedAt:       now,
			Items:           items,
		}
		return st.CreateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrder("CREATE", orderID, fmt.Sprintf("order placed, total %d %s, %d lines", order.TotalCents, order.Currency, len(order.Items)))
	return order, nil
}

func validateOrderRequest(req models.OrderRequest) error {
	switch req.Owner.Kind {
	case models.OwnerUser:
		if req.Owner.UserID == "" {
			return errs.Validation("user owner requires a user id")
		}
	case models.OwnerGuest:
		if req.Owner.SessionID == "" || req.Owner.Email == "" {
			return errs.Validation("guest owner requires a session id and email")
		}
	default:
		return errs.Validation("unknown owner kind %q", req.Owner.Kind)
	}

	if req.ShippingAddress == "" {
		return errs.Validation("shipping address is required")
	}
	if len(req.Lines) == 0 {
		return errs.Validation("order must contain at least one line")
	}
	for _, line := range req.Lines {
		if line.ProductID == "" {
			return errs.Validation("order line is missing a product id")
		}
		if line.Quantity <= 0 {
			return errs.Validation("quantity for product %s must be positive", line.ProductID)
		}
	}
	if req.DiscountCents < 0 {
		return errs.Validation("discount cannot be negative")
	}
	return nil
}
