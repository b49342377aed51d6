package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opulence/opulence-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

// Repository persists ledger entries. There is no update or delete.
type Repository interface {
	InsertBatch(ctx context.Context, entries []Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
	Stream(ctx context.Context, filter Filter, fn func(*Entry) error) error
}

// PostgresRepository is the ledger_entries store
type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const entryColumns = `
	e.id, e.kind, e.flow, e.description, e.amount, e.cost_amount, e.discount_amount,
	e.profit, e.margin_percent, e.quantity, e.related_order_id, e.related_product_id,
	e.related_user_id, e.metadata, e.status, e.created_at, u.email AS customer_email`

const entryFrom = `
	FROM ledger_entries e
	LEFT JOIN users u ON u.id = e.related_user_id`

// InsertBatch writes all entries in one transaction
func (r *PostgresRepository) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	const q = `
		INSERT INTO ledger_entries (
			id, kind, flow, description, amount, cost_amount, discount_amount,
			profit, margin_percent, quantity, related_order_id, related_product_id,
			related_user_id, metadata, status, created_at
		) VALUES (
			:id, :kind, :flow, :description, :amount, :cost_amount, :discount_amount,
			:profit, :margin_percent, :quantity, :related_order_id, :related_product_id,
			:related_user_id, :metadata, :status, :created_at
		)`

	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		for i := range entries {
			if _, err := tx.NamedExecContext(ctx2, q, &entries[i]); err != nil {
				return fmt.Errorf("insert %s entry: %w", entries[i].Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Entry
	err := r.db.GetContext(ctx2, &e, `SELECT `+entryColumns+entryFrom+` WHERE e.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("%w: get entry: %v", ErrInternal, err)
	}
	return &e, nil
}

// List returns one page, newest first, and the total matching count
func (r *PostgresRepository) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where, args := filter.where()

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM ledger_entries e`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count entries: %v", ErrInternal, err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + entryColumns + entryFrom + where +
		fmt.Sprintf(` ORDER BY e.created_at DESC, e.id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	entries := make([]Entry, 0)
	if err := r.db.SelectContext(ctx2, &entries, q, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: list entries: %v", ErrInternal, err)
	}
	return entries, total, nil
}

// Stream walks every matching entry oldest first without loading them all.
// Limit and Offset are ignored. fn returning an error stops the walk.
func (r *PostgresRepository) Stream(ctx context.Context, filter Filter, fn func(*Entry) error) error {
	where, args := filter.where()

	rows, err := r.db.QueryxContext(ctx, `SELECT `+entryColumns+entryFrom+where+` ORDER BY e.created_at, e.id`, args...)
	if err != nil {
		return fmt.Errorf("%w: stream entries: %v", ErrInternal, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		if err := rows.StructScan(&e); err != nil {
			return fmt.Errorf("%w: scan entry: %v", ErrInternal, err)
		}
		if err := fn(&e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: stream entries: %v", ErrInternal, err)
	}
	return nil
}

func (f Filter) where() (string, []interface{}) {
	conds := make([]string, 0, 8)
	args := make([]interface{}, 0, 8)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Kind != "" {
		add("e.kind = $%d", f.Kind)
	}
	if f.Flow != "" {
		add("e.flow = $%d", f.Flow)
	}
	if f.Status != "" {
		add("e.status = $%d", f.Status)
	}
	if f.OrderID != nil {
		add("e.related_order_id = $%d", *f.OrderID)
	}
	if f.ProductID != nil {
		add("e.related_product_id = $%d", *f.ProductID)
	}
	if f.UserID != nil {
		add("e.related_user_id = $%d", *f.UserID)
	}
	if f.From != nil {
		add("e.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("e.created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
