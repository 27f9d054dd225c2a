package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/pkg/config"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
)

func testCalculator() *Calculator {
	return NewCalculator(config.CheckoutConfig{
		CODShippingFee:    199,
		CODAdvancePayment: 300,
		GatewayMinAmount:  1,
	})
}

func percentCoupon(value int64) *models.Coupon {
	return &models.Coupon{
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: decimal.NewFromInt(value),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		Active:        true,
	}
}

func TestAutoDiscountTiers(t *testing.T) {
	calc := testCalculator()

	tests := []struct {
		subtotal int64
		want     int64
	}{
		{5000, 0},
		{10000, 0},
		{10001, 400},
		{15000, 600},
		{20000, 800},
		{20001, 2000},
		{25000, 2500},
	}
	for _, tc := range tests {
		got := calc.AutoDiscount(decimal.NewFromInt(tc.subtotal))
		if !got.Equal(decimal.NewFromInt(tc.want)) {
			t.Errorf("subtotal %d: expected %d, got %s", tc.subtotal, tc.want, got)
		}
	}
}

func TestQuoteCouponStacksSequentially(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.Quote(decimal.NewFromInt(15000), percentCoupon(10), enums.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !quote.AutoDiscount.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected auto discount 600, got %s", quote.AutoDiscount)
	}
	if !quote.CouponDiscount.Equal(decimal.NewFromInt(1440)) {
		t.Fatalf("coupon must apply to 14400, expected 1440, got %s", quote.CouponDiscount)
	}
	if !quote.Discount.Equal(decimal.NewFromInt(2040)) {
		t.Fatalf("expected total discount 2040, got %s", quote.Discount)
	}
	if !quote.ShippingFee.IsZero() {
		t.Fatalf("online payment has zero shipping, got %s", quote.ShippingFee)
	}
	if !quote.TotalAmount.Equal(decimal.NewFromInt(12960)) {
		t.Fatalf("expected total 12960, got %s", quote.TotalAmount)
	}
}

func TestQuoteTopTierNoCoupon(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.Quote(decimal.NewFromInt(25000), nil, enums.PaymentMethodOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.AutoDiscount.Equal(decimal.NewFromInt(2500)) {
		t.Fatalf("expected auto discount 2500, got %s", quote.AutoDiscount)
	}
	if !quote.TotalAmount.Equal(decimal.NewFromInt(22500)) {
		t.Fatalf("expected total 22500, got %s", quote.TotalAmount)
	}
}

func TestQuoteCODFees(t *testing.T) {
	calc := testCalculator()

	quote, err := calc.Quote(decimal.NewFromInt(5000), nil, enums.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quote.AutoDiscount.IsZero() {
		t.Fatalf("no tier applies at 5000, got %s", quote.AutoDiscount)
	}
	if !quote.ShippingFee.Equal(decimal.NewFromInt(199)) {
		t.Fatalf("expected shipping 199, got %s", quote.ShippingFee)
	}
	if !quote.AdvancePayment.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected advance 300, got %s", quote.AdvancePayment)
	}
	if !quote.TotalAmount.Equal(decimal.NewFromInt(5199)) {
		t.Fatalf("advance must be excluded from total, expected 5199, got %s", quote.TotalAmount)
	}
}

func TestQuoteInvariant(t *testing.T) {
	calc := testCalculator()

	for _, subtotal := range []int64{500, 10500, 15000, 25000, 99999} {
		for _, method := range []enums.PaymentMethod{enums.PaymentMethodOnline, enums.PaymentMethodCOD} {
			quote, err := calc.Quote(decimal.NewFromInt(subtotal), percentCoupon(10), method)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := quote.Subtotal.Sub(quote.Discount).Add(quote.ShippingFee)
			if !quote.TotalAmount.Equal(want) {
				t.Fatalf("subtotal %d method %s: total %s != subtotal-discount+shipping %s",
					subtotal, method, quote.TotalAmount, want)
			}
		}
	}
}

func TestGatewayAmountFloor(t *testing.T) {
	calc := testCalculator()

	if got := calc.GatewayAmount(decimal.Zero); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("zero total must floor to gateway minimum, got %s", got)
	}
	if got := calc.GatewayAmount(decimal.NewFromInt(500)); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("totals above the minimum pass through, got %s", got)
	}
}
