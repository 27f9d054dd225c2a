package coupons

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// CheckValidity reports whether the coupon is currently applicable for a user
// with the given historical redemption count. Evaluation is read-only; usage
// accounting happens only when the owning order's payment is confirmed.
func CheckValidity(coupon *models.Coupon, userRedemptions int, now time.Time) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if !coupon.Active {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon is inactive")
	}
	if now.Before(coupon.ValidFrom) {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon is not active yet")
	}
	if now.After(coupon.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
	}
	if coupon.PerUserLimit != nil && userRedemptions >= *coupon.PerUserLimit {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached for this user")
	}
	return nil
}

// ComputeDiscount returns the coupon discount for the given amount, rounded to
// two decimal places. The result never exceeds the amount itself.
func ComputeDiscount(coupon *models.Coupon, amount decimal.Decimal) (decimal.Decimal, error) {
	if coupon == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	if amount.LessThan(coupon.MinPurchaseAmount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
			"order amount is below the coupon minimum purchase amount")
	}

	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = amount.Mul(coupon.DiscountValue).Div(hundred)
		if coupon.MaxDiscountAmount != nil && discount.GreaterThan(*coupon.MaxDiscountAmount) {
			discount = *coupon.MaxDiscountAmount
		}
	case enums.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon discount type")
	}

	if discount.GreaterThan(amount) {
		discount = amount
	}
	return discount.Round(2), nil
}
