package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/adityamehra/shopkart-backend/internal/coupons"
	"github.com/adityamehra/shopkart-backend/pkg/config"
	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
)

var (
	tierOneThreshold = decimal.NewFromInt(10000)
	tierTwoThreshold = decimal.NewFromInt(20000)
	tierOneRate      = decimal.NewFromFloat(0.04)
	tierTwoRate      = decimal.NewFromFloat(0.10)
)

// Quote holds the amounts persisted on an order. AdvancePayment is collected
// out-of-band for COD and is deliberately excluded from TotalAmount.
type Quote struct {
	Subtotal       decimal.Decimal
	AutoDiscount   decimal.Decimal
	CouponDiscount decimal.Decimal
	Discount       decimal.Decimal
	ShippingFee    decimal.Decimal
	AdvancePayment decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Calculator turns a cart subtotal plus optional coupon into order amounts.
type Calculator struct {
	codShippingFee    decimal.Decimal
	codAdvancePayment decimal.Decimal
	gatewayMinAmount  decimal.Decimal
}

// NewCalculator builds a calculator from checkout configuration.
func NewCalculator(cfg config.CheckoutConfig) *Calculator {
	return &Calculator{
		codShippingFee:    decimal.NewFromInt(int64(cfg.CODShippingFee)),
		codAdvancePayment: decimal.NewFromInt(int64(cfg.CODAdvancePayment)),
		gatewayMinAmount:  decimal.NewFromInt(int64(cfg.GatewayMinAmount)),
	}
}

// AutoDiscount returns the tiered automatic discount on a raw subtotal,
// rounded to the nearest whole currency unit. Tiers do not stack.
func (c *Calculator) AutoDiscount(subtotal decimal.Decimal) decimal.Decimal {
	switch {
	case subtotal.GreaterThan(tierTwoThreshold):
		return subtotal.Mul(tierTwoRate).Round(0)
	case subtotal.GreaterThan(tierOneThreshold):
		return subtotal.Mul(tierOneRate).Round(0)
	default:
		return decimal.Zero
	}
}

// Quote computes the order amounts. The coupon discount stacks sequentially:
// it applies to the subtotal after the automatic discount, not in parallel.
func (c *Calculator) Quote(subtotal decimal.Decimal, coupon *models.Coupon, method enums.PaymentMethod) (*Quote, error) {
	auto := c.AutoDiscount(subtotal)

	couponDiscount := decimal.Zero
	if coupon != nil {
		var err error
		couponDiscount, err = coupons.ComputeDiscount(coupon, subtotal.Sub(auto))
		if err != nil {
			return nil, err
		}
	}

	quote := &Quote{
		Subtotal:       subtotal,
		AutoDiscount:   auto,
		CouponDiscount: couponDiscount,
		Discount:       auto.Add(couponDiscount),
	}

	if method == enums.PaymentMethodCOD {
		quote.ShippingFee = c.codShippingFee
		quote.AdvancePayment = c.codAdvancePayment
	}

	quote.TotalAmount = subtotal.Sub(quote.Discount).Add(quote.ShippingFee)
	return quote, nil
}

// GatewayAmount floors the chargeable total to the gateway's minimum. The
// persisted order total stays the computed true value; only the amount sent to
// the gateway is floored.
func (c *Calculator) GatewayAmount(total decimal.Decimal) decimal.Decimal {
	if total.LessThan(c.gatewayMinAmount) {
		return c.gatewayMinAmount
	}
	return total
}
