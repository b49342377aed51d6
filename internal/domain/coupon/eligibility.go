package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rejection reasons returned by CanRedeem, in evaluation order
const (
	ReasonNoLongerValid = "coupon is no longer valid"
	ReasonLimitReached  = "usage limit reached"
	ReasonAlreadyUsed   = "already used"
)

// Eligibility is the outcome of a redemption check
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Engine holds the discount rules
type Engine struct {
	// ClampFixedDiscount limits a fixed discount to the order amount.
	// Off by default: a fixed coupon larger than the order is applied verbatim.
	ClampFixedDiscount bool
}

// CanRedeem checks whether userID may redeem c at now.
// Only the usage records loaded on c are consulted for "already used".
func (e Engine) CanRedeem(c *Coupon, userID uuid.UUID, now time.Time) Eligibility {
	if !c.IsValidAt(now) {
		return Eligibility{Reason: ReasonNoLongerValid}
	}
	// implied by IsValidAt; kept so the reason survives a change to the validity rule
	if c.UsedCount >= c.MaxUsesTotal {
		return Eligibility{Reason: ReasonLimitReached}
	}
	if c.HasUsed(userID) {
		return Eligibility{Reason: ReasonAlreadyUsed}
	}
	return Eligibility{Allowed: true}
}

// ComputeDiscount returns the discount c gives on orderAmount, rounded to 2 places
func (e Engine) ComputeDiscount(c *Coupon, orderAmount decimal.Decimal) (decimal.Decimal, error) {
	if orderAmount.IsNegative() {
		return decimal.Zero, ErrInvalidOrderAmount
	}
	if orderAmount.LessThan(c.MinOrderAmount) {
		return decimal.Zero, ErrMinOrderNotMet
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = orderAmount.Mul(c.DiscountAmount).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.Valid && discount.GreaterThan(c.MaxDiscount.Decimal) {
			discount = c.MaxDiscount.Decimal
		}
	default:
		discount = c.DiscountAmount
		if e.ClampFixedDiscount && discount.GreaterThan(orderAmount) {
			discount = orderAmount
		}
	}

	return discount.Round(2), nil
}
