package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opulence/opulence-api/internal/pkg/errorhandler"
	"github.com/opulence/opulence-api/internal/pkg/storage"
)

const exportPrefix = "ledger-exports/"

// ProductLookup reads the products referenced by ledger events
type ProductLookup interface {
	Snapshots(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductSnapshot, error)
}

// Service records and reports ledger entries
type Service struct {
	repo     Repository
	products ProductLookup
	archive  storage.Storage
	now      func() time.Time
}

// NewService creates the ledger service. archive may be nil, which disables ArchiveExport.
func NewService(repo Repository, products ProductLookup, archive storage.Storage) *Service {
	return &Service{
		repo:     repo,
		products: products,
		archive:  archive,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordSale writes the entries for a finalized order atomically
func (s *Service) RecordSale(ctx context.Context, order Order) ([]Entry, error) {
	if len(order.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]uuid.UUID, 0, len(order.Items))
	seen := make(map[uuid.UUID]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.products.Snapshots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	entries, err := BuildSaleEntries(order, products, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertBatch(ctx, entries); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Int("entries", len(entries)).
		Msg("sale recorded")
	return entries, nil
}

// RecordInventory writes a restock outflow
func (s *Service) RecordInventory(ctx context.Context, in InventoryInput) (*Entry, error) {
	products, err := s.products.Snapshots(ctx, []uuid.UUID{in.ProductID})
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	product, ok := products[in.ProductID]
	if !ok {
		return nil, ErrProductNotFound
	}

	e, err := BuildInventoryEntry(in, product, s.now())
	if err != nil {
		return nil, err
	}
	return s.insertOne(ctx, e)
}

// RecordRefund writes a refund outflow
func (s *Service) RecordRefund(ctx context.Context, in RefundInput) (*Entry, error) {
	e, err := BuildRefundEntry(in, s.now())
	if err != nil {
		return nil, err
	}
	return s.insertOne(ctx, e)
}

// RecordExpense writes an expense outflow
func (s *Service) RecordExpense(ctx context.Context, in ExpenseInput) (*Entry, error) {
	e, err := BuildExpenseEntry(in, s.now())
	if err != nil {
		return nil, err
	}
	return s.insertOne(ctx, e)
}

func (s *Service) insertOne(ctx context.Context, e Entry) (*Entry, error) {
	if err := s.repo.InsertBatch(ctx, []Entry{e}); err != nil {
		return nil, err
	}
	log.Info().
		Str("entry_id", e.ID.String()).
		Str("kind", string(e.Kind)).
		Str("amount", e.Amount.StringFixed(2)).
		Msg("ledger entry recorded")
	return &e, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	return s.repo.List(ctx, filter)
}

// Summary aggregates the [from, to] window straight from the cursor
func (s *Service) Summary(ctx context.Context, from, to *time.Time) (Summary, error) {
	agg := NewSummarizer(from, to)
	err := s.repo.Stream(ctx, Filter{From: from, To: to}, func(e *Entry) error {
		agg.Add(e)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return agg.Result(), nil
}

// ExportCSV streams matching entries as CSV into w
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter Filter) (int, error) {
	cw, err := NewCSVWriter(w)
	if err != nil {
		return 0, err
	}

	rows := 0
	err = s.repo.Stream(ctx, filter, func(e *Entry) error {
		rows++
		return cw.Write(e)
	})
	if err != nil {
		return rows, err
	}
	return rows, cw.Close()
}

// ArchiveExport uploads the CSV export to object storage and returns its key and URL
func (s *Service) ArchiveExport(ctx context.Context, filter Filter) (string, string, error) {
	if s.archive == nil {
		return "", "", ErrArchiveDisabled
	}

	var buf bytes.Buffer
	rows, err := s.ExportCSV(ctx, &buf, filter)
	if err != nil {
		return "", "", err
	}

	key := exportPrefix + s.now().Format("20060102T150405Z") + ".csv"
	if err := s.archive.Put(ctx, key, &buf, "text/csv"); err != nil {
		errorhandler.LogExternalServiceError(ctx, "object_storage", "put "+key, err)
		return "", "", fmt.Errorf("upload export: %w", err)
	}

	log.Info().Str("key", key).Int("rows", rows).Msg("ledger export archived")
	return key, s.archive.GetURL(key), nil
}
