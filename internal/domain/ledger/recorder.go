package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var cent = decimal.New(1, -2)

// validMoney reports whether d is a non-negative whole number of cents
func validMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2))
}

// BuildSaleEntries derives the entries for a finalized order: one sale entry
// per line plus a coupon_discount entry when a coupon reduced the order.
// products must contain every product referenced by the order.
//
// The order tax is apportioned across lines by subtotal. Shares are rounded
// to cents and leftover cents go to the lines with the largest rounding loss,
// so the per-line taxes always add up to the order tax.
func BuildSaleEntries(order Order, products map[uuid.UUID]ProductSnapshot, now time.Time) ([]Entry, error) {
	if len(order.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !validMoney(order.TaxTotal) || !validMoney(order.CouponDiscount) {
		return nil, ErrInvalidAmount
	}

	subtotals := make([]decimal.Decimal, len(order.Items))
	for i, item := range order.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if !validMoney(item.UnitPrice) || !validMoney(item.Discount) {
			return nil, ErrInvalidAmount
		}
		if _, ok := products[item.ProductID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		subtotals[i] = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
	}

	taxes := ApportionTax(order.TaxTotal.Round(2), subtotals)

	orderID := order.ID
	entries := make([]Entry, 0, len(order.Items)+1)
	for i, item := range order.Items {
		product := products[item.ProductID]
		productID := item.ProductID
		qty := decimal.NewFromInt(int64(item.Quantity))

		e := Entry{
			ID:             uuid.New(),
			Kind:           KindSale,
			Flow:           FlowInflow,
			Description:    fmt.Sprintf("Sale: %s x%d (order %s)", product.Name, item.Quantity, order.OrderNumber),
			Amount:         subtotals[i].Add(taxes[i]),
			CostAmount:     product.CostPrice.Mul(qty).Round(2),
			DiscountAmount: item.Discount.Round(2),
			Quantity:       item.Quantity,
			OrderID:        &orderID,
			ProductID:      &productID,
			UserID:         order.UserID,
			Metadata: Metadata{
				MetaOrderNumber: order.OrderNumber,
				MetaSubtotal:    subtotals[i],
				MetaTax:         taxes[i],
				MetaUnitPrice:   item.UnitPrice,
				MetaProductName: product.Name,
			},
			Status:    StatusCompleted,
			CreatedAt: now,
		}
		e.ApplyProfit()
		entries = append(entries, e)
	}

	if order.CouponDiscount.IsPositive() {
		code := strings.ToUpper(strings.TrimSpace(order.CouponCode))
		entries = append(entries, Entry{
			ID:          uuid.New(),
			Kind:        KindCouponDiscount,
			Flow:        FlowOutflow,
			Description: fmt.Sprintf("Coupon %s applied to order %s", code, order.OrderNumber),
			Amount:      order.CouponDiscount.Round(2),
			OrderID:     &orderID,
			UserID:      order.UserID,
			Metadata: Metadata{
				MetaOrderNumber: order.OrderNumber,
				MetaCouponCode:  code,
			},
			Status:    StatusCompleted,
			CreatedAt: now,
		})
	}

	return entries, nil
}

// ApportionTax splits tax across lines in proportion to their subtotals.
// The result has one share per subtotal, each a whole number of cents, and
// the shares sum to tax. When all subtotals are zero every share is zero.
func ApportionTax(tax decimal.Decimal, subtotals []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(subtotals))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	total := decimal.Zero
	for _, s := range subtotals {
		total = total.Add(s)
	}
	if total.IsZero() || tax.IsZero() {
		return shares
	}

	type loss struct {
		idx  int
		frac decimal.Decimal
	}
	losses := make([]loss, len(subtotals))
	assigned := decimal.Zero
	for i, s := range subtotals {
		exact := tax.Mul(s).Div(total)
		shares[i] = exact.Truncate(2)
		assigned = assigned.Add(shares[i])
		losses[i] = loss{idx: i, frac: exact.Sub(shares[i])}
	}

	sort.SliceStable(losses, func(a, b int) bool {
		return losses[a].frac.GreaterThan(losses[b].frac)
	})

	leftover := tax.Sub(assigned).Div(cent).IntPart()
	for k := int64(0); k < leftover; k++ {
		i := losses[int(k)%len(losses)].idx
		shares[i] = shares[i].Add(cent)
	}
	return shares
}

// BuildInventoryEntry derives the outflow for a restock
func BuildInventoryEntry(in InventoryInput, product ProductSnapshot, now time.Time) (Entry, error) {
	if in.Quantity < 1 {
		return Entry{}, ErrInvalidQuantity
	}
	if !validMoney(in.CostPerUnit) {
		return Entry{}, ErrInvalidAmount
	}

	amount := in.CostPerUnit.Mul(decimal.NewFromInt(int64(in.Quantity))).Round(2)
	productID := in.ProductID
	desc := fmt.Sprintf("Restock: %s x%d", product.Name, in.Quantity)
	if note := strings.TrimSpace(in.Note); note != "" {
		desc += " - " + note
	}

	return Entry{
		ID:          uuid.New(),
		Kind:        KindInventoryAdd,
		Flow:        FlowOutflow,
		Description: desc,
		Amount:      amount,
		CostAmount:  amount,
		Quantity:    in.Quantity,
		ProductID:   &productID,
		Metadata: Metadata{
			MetaProductName: product.Name,
			MetaCostPerUnit: in.CostPerUnit,
		},
		Status:    StatusCompleted,
		CreatedAt: now,
	}, nil
}

// BuildRefundEntry derives the outflow for money returned to a customer
func BuildRefundEntry(in RefundInput, now time.Time) (Entry, error) {
	if !in.Amount.IsPositive() || !validMoney(in.Amount) {
		return Entry{}, ErrInvalidAmount
	}

	orderID := in.OrderID
	ref := in.OrderNumber
	if ref == "" {
		ref = in.OrderID.String()
	}

	return Entry{
		ID:          uuid.New(),
		Kind:        KindRefund,
		Flow:        FlowOutflow,
		Description: fmt.Sprintf("Refund for order %s: %s", ref, strings.TrimSpace(in.Reason)),
		Amount:      in.Amount.Round(2),
		OrderID:     &orderID,
		UserID:      in.UserID,
		Metadata: Metadata{
			MetaOrderNumber: in.OrderNumber,
			MetaReason:      in.Reason,
		},
		Status:    StatusCompleted,
		CreatedAt: now,
	}, nil
}

// BuildExpenseEntry derives the outflow for an operating expense
func BuildExpenseEntry(in ExpenseInput, now time.Time) (Entry, error) {
	if !in.Amount.IsPositive() || !validMoney(in.Amount) {
		return Entry{}, ErrInvalidAmount
	}

	meta := Metadata{}
	if in.Category != "" {
		meta[MetaCategory] = in.Category
	}

	return Entry{
		ID:          uuid.New(),
		Kind:        KindExpense,
		Flow:        FlowOutflow,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount.Round(2),
		Metadata:    meta,
		Status:      StatusCompleted,
		CreatedAt:   now,
	}, nil
}
