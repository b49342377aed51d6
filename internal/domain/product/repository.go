package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository is read-only access to the catalog
type Repository interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, price, cost_price, updated_at`

// GetByIDs returns the products that exist; unknown ids are silently skipped
func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error) {
	products := make([]Product, 0, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	err := r.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}
