package coupons

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	pkgerrors "github.com/adityamehra/shopkart-backend/pkg/errors"
)

func activeCoupon() *models.Coupon {
	return &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		Active:        true,
	}
}

func TestCheckValidity(t *testing.T) {
	now := time.Now()

	t.Run("active coupon is valid", func(t *testing.T) {
		if err := CheckValidity(activeCoupon(), 0, now); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("inactive", func(t *testing.T) {
		coupon := activeCoupon()
		coupon.Active = false
		assertCode(t, CheckValidity(coupon, 0, now), pkgerrors.CodeConflict)
	})

	t.Run("expired", func(t *testing.T) {
		coupon := activeCoupon()
		coupon.ValidUntil = now.Add(-time.Minute)
		assertCode(t, CheckValidity(coupon, 0, now), pkgerrors.CodeConflict)
	})

	t.Run("not yet valid", func(t *testing.T) {
		coupon := activeCoupon()
		coupon.ValidFrom = now.Add(time.Minute)
		assertCode(t, CheckValidity(coupon, 0, now), pkgerrors.CodeConflict)
	})

	t.Run("global limit reached", func(t *testing.T) {
		coupon := activeCoupon()
		limit := 5
		coupon.UsageLimit = &limit
		coupon.UsageCount = 5
		assertCode(t, CheckValidity(coupon, 0, now), pkgerrors.CodeConflict)
	})

	t.Run("per-user limit reached for user, valid for another", func(t *testing.T) {
		coupon := activeCoupon()
		limit := 1
		coupon.PerUserLimit = &limit
		assertCode(t, CheckValidity(coupon, 1, now), pkgerrors.CodeConflict)
		if err := CheckValidity(coupon, 0, now); err != nil {
			t.Fatalf("different user should pass: %v", err)
		}
	})
}

func TestComputeDiscountPercentage(t *testing.T) {
	coupon := activeCoupon()

	discount, err := ComputeDiscount(coupon, decimal.NewFromInt(14400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.Equal(decimal.NewFromInt(1440)) {
		t.Fatalf("expected 1440, got %s", discount)
	}
}

func TestComputeDiscountPercentageCap(t *testing.T) {
	coupon := activeCoupon()
	cap := decimal.NewFromInt(500)
	coupon.MaxDiscountAmount = &cap

	discount, err := ComputeDiscount(coupon, decimal.NewFromInt(10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.Equal(cap) {
		t.Fatalf("expected cap 500, got %s", discount)
	}
}

func TestComputeDiscountFixedNeverExceedsAmount(t *testing.T) {
	coupon := activeCoupon()
	coupon.DiscountType = enums.DiscountTypeFixed
	coupon.DiscountValue = decimal.NewFromInt(2000)

	discount, err := ComputeDiscount(coupon, decimal.NewFromInt(1500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("fixed discount must be clamped to the amount, got %s", discount)
	}
}

func TestComputeDiscountMinPurchase(t *testing.T) {
	coupon := activeCoupon()
	coupon.MinPurchaseAmount = decimal.NewFromInt(5000)

	_, err := ComputeDiscount(coupon, decimal.NewFromInt(4999))
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestComputeDiscountRounding(t *testing.T) {
	coupon := activeCoupon()
	coupon.DiscountValue = decimal.NewFromFloat(7.5)

	discount, err := ComputeDiscount(coupon, decimal.NewFromFloat(1333.33))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discount.Exponent() < -2 {
		t.Fatalf("discount must be rounded to 2 decimal places, got %s", discount)
	}
	if !discount.Equal(decimal.NewFromFloat(100.00)) {
		t.Fatalf("expected 100.00, got %s", discount)
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, typed.Code(), err)
	}
}
