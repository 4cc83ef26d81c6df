package services

import (
	"context"
	"strings"

	apperrors "github.com/yashrajoria/giftshop-backend/common/errors"
	"github.com/yashrajoria/giftshop-backend/models"
)

// CheckoutService prices the current cart before an order is placed. It
// never writes.
type CheckoutService struct {
	carts     *CartService
	discounts *DiscountService
	estimator FeeEstimator
}

func NewCheckoutService(carts *CartService, discounts *DiscountService, estimator FeeEstimator) *CheckoutService {
	return &CheckoutService{carts: carts, discounts: discounts, estimator: estimator}
}

// Preview estimates shipping for the cart and applies either the given codes
// or the best public vouchers the user is eligible for.
func (s *CheckoutService) Preview(ctx context.Context, userID string, req models.PreviewRequest) (*models.CheckoutPreview, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.Newf(apperrors.KindEmptyCart, "Your cart is empty")
	}

	items := make([]models.ShippingItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		it := models.ShippingItem{ProductID: line.ProductID, Qty: line.Qty}
		if line.Product != nil {
			it.WeightKg = line.Product.WeightKg
		}
		items = append(items, it)
	}

	out := &models.CheckoutPreview{
		Items:    cart.Items,
		Subtotal: cart.Subtotal,
		Shipping: s.estimator.EstimateFee(req.Address, items),
	}
	fee := out.Shipping.Fee

	var suggestions []models.VoucherSuggestion
	if strings.TrimSpace(req.DiscountCode) == "" || strings.TrimSpace(req.FreeShipCode) == "" {
		suggestions, err = s.discounts.AvailableForUser(ctx, userID, out.Subtotal, fee)
		if err != nil {
			return nil, err
		}
	}
	best := func(target models.DiscountTarget) *models.VoucherSuggestion {
		for i := range suggestions {
			if suggestions[i].Target == target && suggestions[i].Preview > 0 {
				return &suggestions[i]
			}
		}
		return nil
	}

	if code := strings.TrimSpace(req.DiscountCode); code != "" {
		res, err := s.discounts.ValidateAndCalc(ctx, ValidateInput{
			Code: code, Kind: models.TargetOrder, OrderAmount: out.Subtotal, UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		if res.Valid {
			out.OrderDiscount = res.Discount
		} else {
			out.OrderError = res.Message
		}
	} else if v := best(models.TargetOrder); v != nil {
		out.OrderVoucher, out.OrderDiscount = v, v.Preview
	}

	if code := strings.TrimSpace(req.FreeShipCode); code != "" {
		res, err := s.discounts.ValidateAndCalc(ctx, ValidateInput{
			Code: code, Kind: models.TargetShipping, OrderAmount: out.Subtotal, ShippingAmount: fee, UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		if res.Valid {
			out.ShipDiscount = res.Discount
		} else {
			out.ShipError = res.Message
		}
	} else if v := best(models.TargetShipping); v != nil {
		out.ShipVoucher, out.ShipDiscount = v, v.Preview
	}

	out.NetShippingFee = max(0, fee-out.ShipDiscount)
	out.Total = max(0, out.Subtotal-out.OrderDiscount+out.NetShippingFee)
	return out, nil
}
