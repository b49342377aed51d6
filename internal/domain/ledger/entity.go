package ledger

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the business event an entry records
type Kind string

const (
	KindSale           Kind = "sale"
	KindInventoryAdd   Kind = "inventory_add"
	KindRefund         Kind = "refund"
	KindExpense        Kind = "expense"
	KindCouponDiscount Kind = "coupon_discount"

	// KindTaxCollected is written by older releases only. It is read by the
	// summary as a fallback source of collected tax and is never emitted.
	KindTaxCollected Kind = "tax_collected"
)

// Flow says whether an entry increases (inflow) or decreases (outflow) cash
type Flow string

const (
	FlowInflow  Flow = "inflow"
	FlowOutflow Flow = "outflow"
)

// Status of an entry
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Metadata keys
const (
	MetaOrderNumber = "order_number"
	MetaSubtotal    = "subtotal"
	MetaTax         = "tax"
	MetaUnitPrice   = "unit_price"
	MetaProductName = "product_name"
	MetaCostPerUnit = "cost_per_unit"
	MetaCouponCode  = "coupon_code"
	MetaReason      = "reason"
	MetaCategory    = "category"
)

// Entry is one immutable financial event
type Entry struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	Kind           Kind            `db:"kind" json:"type"`
	Flow           Flow            `db:"flow" json:"flow"`
	Description    string          `db:"description" json:"description"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	CostAmount     decimal.Decimal `db:"cost_amount" json:"cost_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Profit         decimal.Decimal `db:"profit" json:"profit"`
	MarginPercent  decimal.Decimal `db:"margin_percent" json:"margin_percent"`
	Quantity       int             `db:"quantity" json:"quantity"`
	OrderID        *uuid.UUID      `db:"related_order_id" json:"related_order_id,omitempty"`
	ProductID      *uuid.UUID      `db:"related_product_id" json:"related_product_id,omitempty"`
	UserID         *uuid.UUID      `db:"related_user_id" json:"related_user_id,omitempty"`
	Metadata       Metadata        `db:"metadata" json:"metadata"`
	Status         Status          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`

	// Filled by reads only (join on users)
	CustomerEmail *string `db:"customer_email" json:"customer_email,omitempty"`
}

// ApplyProfit sets Profit and MarginPercent from Amount, CostAmount and DiscountAmount.
// Margin is 0 when the amount is 0.
func (e *Entry) ApplyProfit() {
	e.Profit = e.Amount.Sub(e.CostAmount).Sub(e.DiscountAmount)
	e.MarginPercent = Margin(e.Profit, e.Amount)
}

// Margin returns profit / base * 100 rounded to 2 places, 0 for a zero base
func Margin(profit, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return profit.Div(base).Mul(decimal.NewFromInt(100)).Round(2)
}

// Metadata is the JSONB bag of auxiliary facts attached to an entry
type Metadata map[string]interface{}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("ledger: cannot scan %T into Metadata", src)
	}

	out := Metadata{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*m = out
	return nil
}

// String returns a string value, or "" when absent
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Decimal reads a money value stored either as a JSON string, a JSON number or an in-memory decimal
func (m Metadata) Decimal(key string) decimal.Decimal {
	switch v := m[key].(type) {
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

// Order is a finalized order as handed over by the order service
type Order struct {
	ID             uuid.UUID       `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Items          []OrderItem     `json:"items"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
}

// OrderItem is one line of an order
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

// ProductSnapshot is the product data read at recording time
type ProductSnapshot struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	CostPrice decimal.Decimal
}

// InventoryInput describes a restock
type InventoryInput struct {
	ProductID   uuid.UUID       `json:"product_id" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,gte=1"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit" validate:"gte=0,money"`
	Note        string          `json:"note" validate:"max=500"`
}

// RefundInput describes money returned to a customer
type RefundInput struct {
	OrderID     uuid.UUID       `json:"order_id" validate:"required"`
	OrderNumber string          `json:"order_number" validate:"max=64"`
	UserID      *uuid.UUID      `json:"user_id,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,money"`
	Reason      string          `json:"reason" validate:"required,max=500"`
}

// ExpenseInput describes an operating expense
type ExpenseInput struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,money"`
	Description string          `json:"description" validate:"required,max=500"`
	Category    string          `json:"category" validate:"max=64"`
}

// Filter narrows ledger reads. Zero values mean "any".
type Filter struct {
	Kind      Kind
	Flow      Flow
	Status    Status
	OrderID   *uuid.UUID
	ProductID *uuid.UUID
	UserID    *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
