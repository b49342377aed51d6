package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog row read when ledger entries are recorded
type Product struct {
	ID        uuid.UUID       `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	CostPrice decimal.Decimal `db:"cost_price"`
	UpdatedAt time.Time       `db:"updated_at"`
}
