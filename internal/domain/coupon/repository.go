package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/opulence/opulence-api/internal/pkg/database"
)

const queryTimeout = 5 * time.Second

const (
	constraintCode  = "coupons_code_key"
	constraintUsage = "coupon_usages_coupon_user_key"
)

// ListFilter narrows admin listings
type ListFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// Repository defines coupon data access
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context, filter ListFilter) ([]Coupon, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*Coupon, error)

	// Usages and Sends of one coupon, oldest first
	ListUsages(ctx context.Context, couponID uuid.UUID) ([]UsageRecord, error)
	ListSends(ctx context.Context, couponID uuid.UUID) ([]SentRecord, error)

	// GetUsage returns nil, nil when userID has not redeemed the coupon
	GetUsage(ctx context.Context, couponID, userID uuid.UUID) (*UsageRecord, error)

	// Redeem increments used_count (deactivating at the cap) and stores usage in one
	// transaction. It fails with ErrNotRedeemable or ErrAlreadyUsed.
	Redeem(ctx context.Context, usage UsageRecord) error

	SentUserIDs(ctx context.Context, couponID uuid.UUID) ([]uuid.UUID, error)
	AppendSent(ctx context.Context, records []SentRecord) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates coupon repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const couponColumns = `
	id, code, description, discount_type, discount_amount, min_order_amount, max_discount,
	max_uses_total, used_count, valid_from, valid_until, is_active, created_by, created_at`

func (r *repository) Create(ctx context.Context, c *Coupon) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO coupons (
			id, code, description, discount_type, discount_amount, min_order_amount, max_discount,
			max_uses_total, used_count, valid_from, valid_until, is_active, created_by, created_at
		) VALUES (
			:id, :code, :description, :discount_type, :discount_amount, :min_order_amount, :max_discount,
			:max_uses_total, :used_count, :valid_from, :valid_until, :is_active, :created_by, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx2, query, c); err != nil {
		if database.IsUniqueViolation(err, constraintCode) {
			return ErrCodeExists
		}
		return fmt.Errorf("%w: create coupon: %v", ErrInternal, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	return r.getOne(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, NormalizeCode(code))
}

func (r *repository) getOne(ctx context.Context, query string, arg interface{}) (*Coupon, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Coupon
	if err := r.db.GetContext(ctx2, &c, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("%w: get coupon: %v", ErrInternal, err)
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Coupon, int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := ""
	args := make([]interface{}, 0, 3)
	if filter.Active != nil {
		where = ` WHERE is_active = $1`
		args = append(args, *filter.Active)
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM coupons`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: count coupons: %v", ErrInternal, err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + couponColumns + ` FROM coupons` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	coupons := make([]Coupon, 0)
	if err := r.db.SelectContext(ctx2, &coupons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("%w: list coupons: %v", ErrInternal, err)
	}
	return coupons, total, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete coupon: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Coupon, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Coupon
	err := r.db.GetContext(ctx2, &c,
		`UPDATE coupons SET is_active = $2 WHERE id = $1 RETURNING `+couponColumns, id, active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("%w: set active: %v", ErrInternal, err)
	}
	return &c, nil
}

func (r *repository) ListUsages(ctx context.Context, couponID uuid.UUID) ([]UsageRecord, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	usages := make([]UsageRecord, 0)
	err := r.db.SelectContext(ctx2, &usages, `
		SELECT coupon_id, user_id, used_at, order_amount, discount_given
		FROM coupon_usages WHERE coupon_id = $1 ORDER BY used_at`, couponID)
	if err != nil {
		return nil, fmt.Errorf("%w: list usages: %v", ErrInternal, err)
	}
	return usages, nil
}

func (r *repository) ListSends(ctx context.Context, couponID uuid.UUID) ([]SentRecord, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sends := make([]SentRecord, 0)
	err := r.db.SelectContext(ctx2, &sends, `
		SELECT coupon_id, user_id, email, sent_at
		FROM coupon_sends WHERE coupon_id = $1 ORDER BY sent_at`, couponID)
	if err != nil {
		return nil, fmt.Errorf("%w: list sends: %v", ErrInternal, err)
	}
	return sends, nil
}

func (r *repository) GetUsage(ctx context.Context, couponID, userID uuid.UUID) (*UsageRecord, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u UsageRecord
	err := r.db.GetContext(ctx2, &u, `
		SELECT coupon_id, user_id, used_at, order_amount, discount_given
		FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`, couponID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get usage: %v", ErrInternal, err)
	}
	return &u, nil
}

func (r *repository) Redeem(ctx context.Context, usage UsageRecord) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx2, `
			UPDATE coupons
			SET used_count = used_count + 1,
			    is_active = (used_count + 1 < max_uses_total)
			WHERE id = $1
			  AND is_active
			  AND used_count < max_uses_total
			  AND $2 BETWEEN valid_from AND valid_until
		`, usage.CouponID, usage.UsedAt)
		if err != nil {
			return fmt.Errorf("%w: increment usage: %v", ErrInternal, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: rows affected: %v", ErrInternal, err)
		}
		if n == 0 {
			return ErrNotRedeemable
		}

		_, err = tx.ExecContext(ctx2, `
			INSERT INTO coupon_usages (coupon_id, user_id, used_at, order_amount, discount_given)
			VALUES ($1, $2, $3, $4, $5)
		`, usage.CouponID, usage.UserID, usage.UsedAt, usage.OrderAmount, usage.DiscountGiven)
		if err != nil {
			if database.IsUniqueViolation(err, constraintUsage) {
				return ErrAlreadyUsed
			}
			return fmt.Errorf("%w: insert usage: %v", ErrInternal, err)
		}
		return nil
	})
}

func (r *repository) SentUserIDs(ctx context.Context, couponID uuid.UUID) ([]uuid.UUID, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0)
	if err := r.db.SelectContext(ctx2, &ids, `SELECT user_id FROM coupon_sends WHERE coupon_id = $1`, couponID); err != nil {
		return nil, fmt.Errorf("%w: list sent users: %v", ErrInternal, err)
	}
	return ids, nil
}

// AppendSent stores all records in one transaction. Users already recorded are skipped.
func (r *repository) AppendSent(ctx context.Context, records []SentRecord) error {
	if len(records) == 0 {
		return nil
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx2, `
			INSERT INTO coupon_sends (coupon_id, user_id, email, sent_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT ON CONSTRAINT coupon_sends_coupon_user_key DO NOTHING`)
		if err != nil {
			return fmt.Errorf("%w: prepare send insert: %v", ErrInternal, err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx2, rec.CouponID, rec.UserID, rec.Email, rec.SentAt); err != nil {
				return fmt.Errorf("%w: insert send: %v", ErrInternal, err)
			}
		}
		return nil
	})
}
