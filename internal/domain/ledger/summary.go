package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const topProductsLimit = 10

// Summary is the financial roll-up of a ledger window
type Summary struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`

	TotalInflow  decimal.Decimal `json:"total_inflow"`
	TotalOutflow decimal.Decimal `json:"total_outflow"`
	NetBalance   decimal.Decimal `json:"net_balance"`

	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	ProfitMargin decimal.Decimal `json:"profit_margin"`
	TotalTax     decimal.Decimal `json:"total_tax"`

	EntryCount int                `json:"entry_count"`
	ByKind     map[Kind]KindTotal `json:"by_kind"`
	Daily      []DailyPoint       `json:"daily"`
	Top        []ProductRank      `json:"top_products"`
}

// KindTotal counts entries of one kind
type KindTotal struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyPoint is one UTC calendar day
type DailyPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
	Cost    decimal.Decimal `json:"cost"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Sales   int             `json:"sales"`
}

// ProductRank is a product's sales performance
type ProductRank struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
	Units     int             `json:"units"`
}

// Summarizer folds entries one at a time into a Summary.
// Memory grows with distinct days and products, not with entries.
type Summarizer struct {
	sum       Summary
	legacyTax decimal.Decimal
	days      map[string]*DailyPoint
	products  map[uuid.UUID]*ProductRank
}

// NewSummarizer creates an empty reducer for the given window
func NewSummarizer(from, to *time.Time) *Summarizer {
	return &Summarizer{
		sum: Summary{
			From:   from,
			To:     to,
			ByKind: make(map[Kind]KindTotal),
		},
		days:     make(map[string]*DailyPoint),
		products: make(map[uuid.UUID]*ProductRank),
	}
}

// Add folds one entry. Cancelled entries are ignored.
func (s *Summarizer) Add(e *Entry) {
	if e.Status == StatusCancelled {
		return
	}

	s.sum.EntryCount++
	kt := s.sum.ByKind[e.Kind]
	kt.Count++
	kt.Amount = kt.Amount.Add(e.Amount)
	s.sum.ByKind[e.Kind] = kt

	day := s.day(e.CreatedAt)
	switch e.Flow {
	case FlowInflow:
		s.sum.TotalInflow = s.sum.TotalInflow.Add(e.Amount)
		day.Inflow = day.Inflow.Add(e.Amount)
	case FlowOutflow:
		s.sum.TotalOutflow = s.sum.TotalOutflow.Add(e.Amount)
		day.Outflow = day.Outflow.Add(e.Amount)
	}

	switch e.Kind {
	case KindSale:
		s.sum.TotalRevenue = s.sum.TotalRevenue.Add(e.Amount)
		s.sum.TotalCost = s.sum.TotalCost.Add(e.CostAmount)
		s.sum.NetProfit = s.sum.NetProfit.Add(e.Profit)
		s.sum.TotalTax = s.sum.TotalTax.Add(e.Metadata.Decimal(MetaTax))

		day.Revenue = day.Revenue.Add(e.Amount)
		day.Cost = day.Cost.Add(e.CostAmount)
		day.Profit = day.Profit.Add(e.Profit)
		day.Sales++

		if e.ProductID != nil {
			p, ok := s.products[*e.ProductID]
			if !ok {
				p = &ProductRank{ProductID: *e.ProductID}
				s.products[*e.ProductID] = p
			}
			if name := e.Metadata.String(MetaProductName); name != "" {
				p.Name = name
			}
			p.Revenue = p.Revenue.Add(e.Amount)
			p.Profit = p.Profit.Add(e.Profit)
			p.Units += e.Quantity
		}
	case KindTaxCollected:
		s.legacyTax = s.legacyTax.Add(e.Amount)
	}
}

func (s *Summarizer) day(t time.Time) *DailyPoint {
	key := t.UTC().Format("2006-01-02")
	d, ok := s.days[key]
	if !ok {
		d = &DailyPoint{Date: key}
		s.days[key] = d
	}
	return d
}

// Result returns the finished summary. The Summarizer may keep receiving entries afterwards.
func (s *Summarizer) Result() Summary {
	out := s.sum
	out.NetBalance = out.TotalInflow.Sub(out.TotalOutflow)
	out.ProfitMargin = Margin(out.NetProfit, out.TotalRevenue)
	if out.TotalTax.IsZero() {
		out.TotalTax = s.legacyTax
	}

	out.ByKind = make(map[Kind]KindTotal, len(s.sum.ByKind))
	for k, v := range s.sum.ByKind {
		out.ByKind[k] = v
	}

	out.Daily = make([]DailyPoint, 0, len(s.days))
	for _, d := range s.days {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })

	out.Top = make([]ProductRank, 0, len(s.products))
	for _, p := range s.products {
		out.Top = append(out.Top, *p)
	}
	sort.Slice(out.Top, func(i, j int) bool {
		if !out.Top[i].Revenue.Equal(out.Top[j].Revenue) {
			return out.Top[i].Revenue.GreaterThan(out.Top[j].Revenue)
		}
		return out.Top[i].Name < out.Top[j].Name
	})
	if len(out.Top) > topProductsLimit {
		out.Top = out.Top[:topProductsLimit]
	}

	return out
}

// Summarize is a convenience wrapper for already-loaded entries
func Summarize(entries []Entry, from, to *time.Time) Summary {
	s := NewSummarizer(from, to)
	for i := range entries {
		s.Add(&entries[i])
	}
	return s.Result()
}
