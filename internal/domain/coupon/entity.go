package coupon

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType represents how the discount amount is interpreted
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

const (
	codeMinLen = 3
	codeMaxLen = 32
)

// Coupon is a discount code with a usage cap and a validity window.
// Usages and Sends are populated only by reads that ask for them.
type Coupon struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	Code           string              `db:"code" json:"code"`
	Description    string              `db:"description" json:"description"`
	DiscountType   DiscountType        `db:"discount_type" json:"discount_type"`
	DiscountAmount decimal.Decimal     `db:"discount_amount" json:"discount_amount"`
	MinOrderAmount decimal.Decimal     `db:"min_order_amount" json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `db:"max_discount" json:"max_discount"`
	MaxUsesTotal   int                 `db:"max_uses_total" json:"max_uses_total"`
	UsedCount      int                 `db:"used_count" json:"used_count"`
	ValidFrom      time.Time           `db:"valid_from" json:"valid_from"`
	ValidUntil     time.Time           `db:"valid_until" json:"valid_until"`
	IsActive       bool                `db:"is_active" json:"is_active"`
	CreatedBy      *uuid.UUID          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`

	Usages []UsageRecord `db:"-" json:"usages,omitempty"`
	Sends  []SentRecord  `db:"-" json:"sends,omitempty"`
}

// UsageRecord is one redemption. A user appears at most once per coupon.
type UsageRecord struct {
	CouponID      uuid.UUID       `db:"coupon_id" json:"-"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	UsedAt        time.Time       `db:"used_at" json:"used_at"`
	OrderAmount   decimal.Decimal `db:"order_amount" json:"order_amount"`
	DiscountGiven decimal.Decimal `db:"discount_given" json:"discount_given"`
}

// SentRecord is one promotional email delivered for a coupon
type SentRecord struct {
	CouponID uuid.UUID `db:"coupon_id" json:"-"`
	UserID   uuid.UUID `db:"user_id" json:"user_id"`
	Email    string    `db:"email" json:"email"`
	SentAt   time.Time `db:"sent_at" json:"sent_at"`
}

// NormalizeCode upper-cases and trims a code; codes are stored and looked up in this form
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidAt reports whether the coupon can be redeemed by someone at t
func (c *Coupon) IsValidAt(t time.Time) bool {
	return c.IsActive &&
		c.UsedCount < c.MaxUsesTotal &&
		!t.Before(c.ValidFrom) &&
		!t.After(c.ValidUntil)
}

// HasUsed reports whether userID is among the loaded usage records
func (c *Coupon) HasUsed(userID uuid.UUID) bool {
	for _, u := range c.Usages {
		if u.UserID == userID {
			return true
		}
	}
	return false
}

// RemainingUses is never negative
func (c *Coupon) RemainingUses() int {
	if n := c.MaxUsesTotal - c.UsedCount; n > 0 {
		return n
	}
	return 0
}

// DiscountText renders the discount for customers, e.g. "15% off" or "25.00 off"
func (c *Coupon) DiscountText() string {
	if c.DiscountType == DiscountPercentage {
		text := c.DiscountAmount.String() + "% off"
		if c.MaxDiscount.Valid {
			text += " (up to " + c.MaxDiscount.Decimal.StringFixed(2) + ")"
		}
		return text
	}
	return c.DiscountAmount.StringFixed(2) + " off"
}

// Validate checks the rules every stored coupon satisfies
func (c *Coupon) Validate() error {
	n := len(c.Code)
	if n < codeMinLen || n > codeMaxLen {
		return fmt.Errorf("%w: code must be %d-%d characters", ErrInvalidCoupon, codeMinLen, codeMaxLen)
	}
	for _, r := range c.Code {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return fmt.Errorf("%w: code may contain only letters, digits, '-' and '_'", ErrInvalidCoupon)
		}
	}

	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountAmount.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: percentage discount cannot exceed 100", ErrInvalidCoupon)
		}
	case DiscountFixed:
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidCoupon, c.DiscountType)
	}

	if !c.DiscountAmount.IsPositive() {
		return fmt.Errorf("%w: discount amount must be greater than 0", ErrInvalidCoupon)
	}
	if c.MinOrderAmount.IsNegative() {
		return fmt.Errorf("%w: minimum order amount cannot be negative", ErrInvalidCoupon)
	}
	if c.MaxDiscount.Valid && !c.MaxDiscount.Decimal.IsPositive() {
		return fmt.Errorf("%w: max discount must be greater than 0", ErrInvalidCoupon)
	}
	if !isCents(c.DiscountAmount) || !isCents(c.MinOrderAmount) || (c.MaxDiscount.Valid && !isCents(c.MaxDiscount.Decimal)) {
		return fmt.Errorf("%w: amounts may have at most 2 decimal places", ErrInvalidCoupon)
	}
	if c.MaxUsesTotal < 1 {
		return fmt.Errorf("%w: max uses must be at least 1", ErrInvalidCoupon)
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return fmt.Errorf("%w: valid_until must be after valid_from", ErrInvalidCoupon)
	}
	return nil
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
