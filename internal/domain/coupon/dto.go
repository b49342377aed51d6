package coupon

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRequest creates a coupon. It is also the document shape of the YAML import.
type CreateRequest struct {
	Code           string           `json:"code" yaml:"code" validate:"required,min=3,max=32"`
	Description    string           `json:"description" yaml:"description" validate:"max=500"`
	DiscountType   string           `json:"discount_type" yaml:"discount_type" validate:"required,discount_type"`
	DiscountAmount decimal.Decimal  `json:"discount_amount" yaml:"discount_amount" validate:"gt=0,money"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount" yaml:"min_order_amount" validate:"gte=0,money"`
	MaxDiscount    *decimal.Decimal `json:"max_discount" yaml:"max_discount" validate:"omitempty,gt=0,money"`
	MaxUsesTotal   int              `json:"max_uses_total" yaml:"max_uses_total" validate:"required,gte=1"`
	ValidFrom      *time.Time       `json:"valid_from" yaml:"valid_from"`
	ValidUntil     time.Time        `json:"valid_until" yaml:"valid_until" validate:"required"`
	IsActive       *bool            `json:"is_active" yaml:"is_active"`
}

// ToCoupon builds the entity. valid_from defaults to now and is_active to true.
func (r *CreateRequest) ToCoupon(now time.Time) *Coupon {
	c := &Coupon{
		ID:             uuid.New(),
		Code:           NormalizeCode(r.Code),
		Description:    r.Description,
		DiscountType:   DiscountType(r.DiscountType),
		DiscountAmount: r.DiscountAmount,
		MinOrderAmount: r.MinOrderAmount,
		MaxUsesTotal:   r.MaxUsesTotal,
		ValidFrom:      now,
		ValidUntil:     r.ValidUntil.UTC(),
		IsActive:       true,
		CreatedAt:      now,
	}
	if r.MaxDiscount != nil {
		c.MaxDiscount = decimal.NewNullDecimal(*r.MaxDiscount)
	}
	if r.ValidFrom != nil {
		c.ValidFrom = r.ValidFrom.UTC()
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}
	return c
}

// CheckRequest is the body of validate and apply
type CheckRequest struct {
	Code        string          `json:"code" validate:"required,max=64"`
	OrderAmount decimal.Decimal `json:"order_amount" validate:"gte=0,money"`
}

// SetActiveRequest toggles a coupon
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Summary is the list representation of a coupon
type Summary struct {
	ID             uuid.UUID           `json:"id"`
	Code           string              `json:"code"`
	Description    string              `json:"description,omitempty"`
	DiscountType   DiscountType        `json:"discount_type"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	MaxUsesTotal   int                 `json:"max_uses_total"`
	UsedCount      int                 `json:"used_count"`
	RemainingUses  int                 `json:"remaining_uses"`
	ValidFrom      string              `json:"valid_from"`
	ValidUntil     string              `json:"valid_until"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      string              `json:"created_at"`
}

// ToSummary converts entity to list item
func (c *Coupon) ToSummary() Summary {
	return Summary{
		ID:             c.ID,
		Code:           c.Code,
		Description:    c.Description,
		DiscountType:   c.DiscountType,
		DiscountAmount: c.DiscountAmount,
		MinOrderAmount: c.MinOrderAmount,
		MaxDiscount:    c.MaxDiscount,
		MaxUsesTotal:   c.MaxUsesTotal,
		UsedCount:      c.UsedCount,
		RemainingUses:  c.RemainingUses(),
		ValidFrom:      c.ValidFrom.Format(time.RFC3339),
		ValidUntil:     c.ValidUntil.Format(time.RFC3339),
		IsActive:       c.IsActive,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
	}
}
