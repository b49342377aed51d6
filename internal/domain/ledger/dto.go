package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordSaleRequest is posted by the order service when an order is finalized
type RecordSaleRequest struct {
	OrderID        uuid.UUID         `json:"order_id" validate:"required"`
	OrderNumber    string            `json:"order_number" validate:"required,max=64"`
	UserID         *uuid.UUID        `json:"user_id"`
	Items          []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	TaxTotal       decimal.Decimal   `json:"tax_total" validate:"gte=0,money"`
	CouponCode     string            `json:"coupon_code" validate:"max=32"`
	CouponDiscount decimal.Decimal   `json:"coupon_discount" validate:"gte=0,money"`
}

type SaleItemRequest struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0,money"`
	Quantity  int             `json:"quantity" validate:"required,gte=1"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0,money"`
}

// ToOrder converts the request into the recorder input
func (r *RecordSaleRequest) ToOrder() Order {
	items := make([]OrderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = OrderItem{
			ProductID: it.ProductID,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Discount:  it.Discount,
		}
	}
	return Order{
		ID:             r.OrderID,
		OrderNumber:    r.OrderNumber,
		UserID:         r.UserID,
		Items:          items,
		TaxTotal:       r.TaxTotal,
		CouponCode:     r.CouponCode,
		CouponDiscount: r.CouponDiscount,
	}
}

// ListQuery is the parsed query string of the list and export endpoints
type ListQuery struct {
	Kind   string `json:"type" validate:"ledger_kind"`
	Flow   string `json:"flow" validate:"ledger_flow"`
	Status string `json:"status" validate:"ledger_status"`
	Page   int    `json:"page" validate:"gte=1,lte=1000000"`
	Limit  int    `json:"limit" validate:"gte=1,lte=100"`
}

// ArchiveResponse describes an uploaded export
type ArchiveResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
