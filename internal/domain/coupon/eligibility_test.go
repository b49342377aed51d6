package coupon

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeCoupon(now time.Time) *Coupon {
	return &Coupon{
		ID:             uuid.New(),
		Code:           "SPRING15",
		DiscountType:   DiscountPercentage,
		DiscountAmount: d("15"),
		MaxUsesTotal:   3,
		ValidFrom:      now.Add(-time.Hour),
		ValidUntil:     now.Add(24 * time.Hour),
		IsActive:       true,
	}
}

func TestCanRedeemReasonsInOrder(t *testing.T) {
	now := time.Now().UTC()
	user := uuid.New()
	engine := Engine{}

	c := activeCoupon(now)
	assert.Equal(t, Eligibility{Allowed: true}, engine.CanRedeem(c, user, now))

	c.Usages = []UsageRecord{{UserID: user}}
	assert.Equal(t, ReasonAlreadyUsed, engine.CanRedeem(c, user, now).Reason)
	assert.True(t, engine.CanRedeem(c, uuid.New(), now).Allowed)

	c.UsedCount = c.MaxUsesTotal
	assert.False(t, c.IsValidAt(now))
	assert.Equal(t, ReasonNoLongerValid, engine.CanRedeem(c, user, now).Reason, "an exhausted coupon fails the validity check first")

	c.IsActive = false
	assert.Equal(t, ReasonNoLongerValid, engine.CanRedeem(c, user, now).Reason)

	expired := activeCoupon(now)
	assert.Equal(t, ReasonNoLongerValid, engine.CanRedeem(expired, user, now.Add(48*time.Hour)).Reason)
	assert.Equal(t, ReasonNoLongerValid, engine.CanRedeem(expired, user, now.Add(-2*time.Hour)).Reason)
}

func TestComputeDiscountPercentageRespectsCap(t *testing.T) {
	c := activeCoupon(time.Now())
	c.MaxDiscount = decimal.NewNullDecimal(d("50"))
	engine := Engine{}

	got, err := engine.ComputeDiscount(c, d("200"))
	require.NoError(t, err)
	assert.True(t, d("30").Equal(got))

	for _, order := range []string{"334", "1000", "999999.99"} {
		got, err := engine.ComputeDiscount(c, d(order))
		require.NoError(t, err)
		assert.False(t, got.GreaterThan(d("50")), "order %s gave %s", order, got)
	}
}

func TestComputeDiscountRoundsToCents(t *testing.T) {
	c := activeCoupon(time.Now())
	got, err := Engine{}.ComputeDiscount(c, d("33.33"))
	require.NoError(t, err)
	assert.Equal(t, "5", got.String())

	got, err = Engine{}.ComputeDiscount(c, d("10.01"))
	require.NoError(t, err)
	assert.True(t, d("1.5").Equal(got), "got %s", got)
}

func TestComputeDiscountMinOrder(t *testing.T) {
	c := activeCoupon(time.Now())
	c.MinOrderAmount = d("100")

	_, err := Engine{}.ComputeDiscount(c, d("99.99"))
	assert.ErrorIs(t, err, ErrMinOrderNotMet)

	_, err = Engine{}.ComputeDiscount(c, d("100"))
	assert.NoError(t, err)

	_, err = Engine{}.ComputeDiscount(c, d("-1"))
	assert.ErrorIs(t, err, ErrInvalidOrderAmount)
}

func TestComputeDiscountFixedClamp(t *testing.T) {
	c := activeCoupon(time.Now())
	c.DiscountType = DiscountFixed
	c.DiscountAmount = d("25")

	got, err := Engine{}.ComputeDiscount(c, d("10"))
	require.NoError(t, err)
	assert.True(t, d("25").Equal(got), "unclamped fixed discount is applied verbatim")

	got, err = Engine{ClampFixedDiscount: true}.ComputeDiscount(c, d("10"))
	require.NoError(t, err)
	assert.True(t, d("10").Equal(got))
}

func TestCouponValidate(t *testing.T) {
	now := time.Now()
	valid := activeCoupon(now)
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Coupon){
		"short code":        func(c *Coupon) { c.Code = "AB" },
		"bad characters":    func(c *Coupon) { c.Code = "SAVE 10" },
		"zero amount":       func(c *Coupon) { c.DiscountAmount = decimal.Zero },
		"over 100 percent":  func(c *Coupon) { c.DiscountAmount = d("100.5") },
		"no uses":           func(c *Coupon) { c.MaxUsesTotal = 0 },
		"inverted window":   func(c *Coupon) { c.ValidUntil = c.ValidFrom.Add(-time.Minute) },
		"unknown type":      func(c *Coupon) { c.DiscountType = "bogo" },
		"negative minimum":  func(c *Coupon) { c.MinOrderAmount = d("-1") },
		"zero max discount": func(c *Coupon) { c.MaxDiscount = decimal.NewNullDecimal(decimal.Zero) },
		"sub-cent fixed amount": func(c *Coupon) {
			c.DiscountType = DiscountFixed
			c.DiscountAmount = d("0.004")
		},
		"sub-cent minimum":      func(c *Coupon) { c.MinOrderAmount = d("10.005") },
		"sub-cent max discount": func(c *Coupon) { c.MaxDiscount = decimal.NewNullDecimal(d("49.999")) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *valid
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidCoupon)
		})
	}
}

func TestDiscountText(t *testing.T) {
	c := activeCoupon(time.Now())
	assert.Equal(t, "15% off", c.DiscountText())

	c.MaxDiscount = decimal.NewNullDecimal(d("40"))
	assert.Equal(t, "15% off (up to 40.00)", c.DiscountText())

	c.DiscountType = DiscountFixed
	c.DiscountAmount = d("25")
	assert.Equal(t, "25.00 off", c.DiscountText())
}
