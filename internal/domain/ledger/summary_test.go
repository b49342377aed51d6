package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saleEntry(product uuid.UUID, name string, amount, cost, profit, tax string, at time.Time) Entry {
	return Entry{
		ID:         uuid.New(),
		Kind:       KindSale,
		Flow:       FlowInflow,
		Amount:     d(amount),
		CostAmount: d(cost),
		Profit:     d(profit),
		Quantity:   1,
		ProductID:  &product,
		Metadata:   Metadata{MetaProductName: name, MetaTax: tax},
		Status:     StatusCompleted,
		CreatedAt:  at,
	}
}

func TestSummarizeSaleAndRefund(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	entries := []Entry{
		{Kind: KindRefund, Flow: FlowOutflow, Amount: d("200"), Status: StatusCompleted, CreatedAt: day2},
		saleEntry(uuid.New(), "Watch", "1180", "800", "380", "180", day1),
	}

	s := Summarize(entries, nil, nil)

	assert.True(t, d("1180").Equal(s.TotalInflow))
	assert.True(t, d("200").Equal(s.TotalOutflow))
	assert.True(t, d("980").Equal(s.NetBalance))
	assert.True(t, d("380").Equal(s.NetProfit))
	assert.True(t, d("32.2").Equal(s.ProfitMargin.Round(1)), "margin %s", s.ProfitMargin)
	assert.True(t, d("180").Equal(s.TotalTax))
	assert.Equal(t, 2, s.EntryCount)
	assert.Equal(t, 1, s.ByKind[KindSale].Count)
	assert.Equal(t, 1, s.ByKind[KindRefund].Count)

	require.Len(t, s.Daily, 2)
	assert.Equal(t, "2026-03-02", s.Daily[0].Date)
	assert.Equal(t, "2026-03-03", s.Daily[1].Date)
	assert.Equal(t, 1, s.Daily[0].Sales)
	assert.True(t, d("200").Equal(s.Daily[1].Outflow))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil, nil)

	assert.True(t, s.TotalInflow.IsZero())
	assert.True(t, s.TotalOutflow.IsZero())
	assert.True(t, s.NetBalance.IsZero())
	assert.True(t, s.ProfitMargin.IsZero())
	assert.Equal(t, 0, s.EntryCount)
	assert.Empty(t, s.Daily)
	assert.Empty(t, s.Top)
}

func TestSummarizeSkipsCancelled(t *testing.T) {
	now := time.Now().UTC()
	cancelled := saleEntry(uuid.New(), "Ring", "500", "100", "400", "0", now)
	cancelled.Status = StatusCancelled

	s := Summarize([]Entry{cancelled, saleEntry(uuid.New(), "Ring", "50", "10", "40", "0", now)}, nil, nil)
	assert.True(t, d("50").Equal(s.TotalRevenue))
	assert.Equal(t, 1, s.EntryCount)
}

func TestSummarizeFallsBackToLegacyTax(t *testing.T) {
	now := time.Now().UTC()
	entries := []Entry{
		saleEntry(uuid.New(), "Ring", "100", "10", "90", "", now),
		{Kind: KindTaxCollected, Flow: FlowInflow, Amount: d("12.50"), Status: StatusCompleted, CreatedAt: now},
	}

	s := Summarize(entries, nil, nil)
	assert.True(t, d("12.50").Equal(s.TotalTax))
}

func TestSummarizeTopProductsCappedAndOrdered(t *testing.T) {
	now := time.Now().UTC()
	var entries []Entry
	for i := 1; i <= 12; i++ {
		amount := fmt.Sprintf("%d", i*10)
		entries = append(entries, saleEntry(uuid.New(), fmt.Sprintf("P%02d", i), amount, "0", amount, "0", now))
	}
	repeat := *entries[0].ProductID
	entries = append(entries, saleEntry(repeat, "P01", "5", "0", "5", "0", now))

	s := Summarize(entries, nil, nil)
	require.Len(t, s.Top, topProductsLimit)
	assert.Equal(t, "P12", s.Top[0].Name)
	assert.True(t, decimal.NewFromInt(120).Equal(s.Top[0].Revenue))
	for i := 1; i < len(s.Top); i++ {
		assert.False(t, s.Top[i].Revenue.GreaterThan(s.Top[i-1].Revenue))
	}
}
