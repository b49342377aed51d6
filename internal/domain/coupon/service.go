package coupon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/opulence/opulence-api/internal/pkg/logger"
)

// RejectionError carries the customer-facing reason a coupon was refused
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string { return e.Reason }
func (e *RejectionError) Unwrap() error { return e.Err }

func reject(reason string) *RejectionError {
	switch reason {
	case ReasonAlreadyUsed:
		return &RejectionError{Reason: reason, Err: ErrAlreadyUsed}
	default:
		return &RejectionError{Reason: reason, Err: ErrNotRedeemable}
	}
}

// ValidationResult answers "what would this coupon do for this order"
type ValidationResult struct {
	Valid       bool            `json:"valid"`
	Reason      string          `json:"reason,omitempty"`
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`

	cause error
}

// Redemption is a successful Apply
type Redemption struct {
	CouponID    uuid.UUID       `json:"coupon_id"`
	Code        string          `json:"code"`
	OrderAmount decimal.Decimal `json:"order_amount"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	UsedAt      time.Time       `json:"used_at"`
}

// Service contains coupon business logic
type Service struct {
	repo    Repository
	cache   *Cache
	engine  Engine
	promo   *PromoSender
	tracker Tracker
	now     func() time.Time

	broadcasts sync.WaitGroup
}

// NewService creates coupon service. cache may be nil.
func NewService(repo Repository, cache *Cache, engine Engine, promo *PromoSender, tracker Tracker) *Service {
	if tracker == nil {
		tracker = NewMemoryTracker()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		engine:  engine,
		promo:   promo,
		tracker: tracker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new coupon after normalizing its code
func (s *Service) Create(ctx context.Context, adminID uuid.UUID, req *CreateRequest) (*Coupon, error) {
	now := s.now()
	c := req.ToCoupon(now)
	if adminID != uuid.Nil {
		c.CreatedBy = &adminID
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, c.Code)

	log.Info().Str("coupon_id", c.ID.String()).Str("code", c.Code).Msg("coupon created")
	return c, nil
}

// Get returns the coupon with its usage and sent records
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Usages, err = s.repo.ListUsages(ctx, id); err != nil {
		return nil, err
	}
	if c.Sends, err = s.repo.ListSends(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Coupon, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, c.Code)
	log.Info().Str("coupon_id", id.String()).Str("code", c.Code).Msg("coupon deleted")
	return nil
}

// SetActive switches a coupon on or off
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Coupon, error) {
	c, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, c.Code)
	return c, nil
}

// lookup reads a coupon by code through the cache
func (s *Service) lookup(ctx context.Context, code string) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCouponNotFound
	}
	if c, ok := s.cache.Get(ctx, code); ok {
		return c, nil
	}

	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, c)
	return c, nil
}

// Validate evaluates the coupon for userID and orderAmount without writing anything.
// Business rejections come back as Valid=false with a reason; errors are reserved
// for unknown codes, bad input and failures.
func (s *Service) Validate(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal) (*ValidationResult, *Coupon, error) {
	if orderAmount.IsNegative() || !isCents(orderAmount) {
		return nil, nil, ErrInvalidOrderAmount
	}

	c, err := s.lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	usage, err := s.repo.GetUsage(ctx, c.ID, userID)
	if err != nil {
		return nil, nil, err
	}
	c.Usages = nil
	if usage != nil {
		c.Usages = []UsageRecord{*usage}
	}

	res := &ValidationResult{Code: c.Code, OrderAmount: orderAmount, FinalAmount: orderAmount}

	elig := s.engine.CanRedeem(c, userID, s.now())
	if !elig.Allowed {
		res.Reason = elig.Reason
		res.cause = reject(elig.Reason).Err
		return res, c, nil
	}

	discount, err := s.engine.ComputeDiscount(c, orderAmount)
	if err != nil {
		if errors.Is(err, ErrMinOrderNotMet) {
			res.Reason = fmt.Sprintf("minimum order amount is %s", c.MinOrderAmount.StringFixed(2))
			res.cause = ErrMinOrderNotMet
			return res, c, nil
		}
		return nil, nil, err
	}

	res.Valid = true
	res.Discount = discount
	res.FinalAmount = decimal.Max(orderAmount.Sub(discount), decimal.Zero)
	return res, c, nil
}

// Apply validates and atomically redeems the coupon for userID
func (s *Service) Apply(ctx context.Context, code string, userID uuid.UUID, orderAmount decimal.Decimal) (*Redemption, error) {
	res, c, err := s.Validate(ctx, code, userID, orderAmount)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, &RejectionError{Reason: res.Reason, Err: res.cause}
	}

	usedAt := s.now()
	err = s.repo.Redeem(ctx, UsageRecord{
		CouponID:      c.ID,
		UserID:        userID,
		UsedAt:        usedAt,
		OrderAmount:   orderAmount,
		DiscountGiven: res.Discount,
	})
	s.cache.Invalidate(ctx, c.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyUsed):
			return nil, reject(ReasonAlreadyUsed)
		case errors.Is(err, ErrNotRedeemable):
			return nil, reject(ReasonNoLongerValid)
		}
		return nil, err
	}

	log.Info().
		Str("coupon", c.Code).
		Str("user_id", userID.String()).
		Str("discount", res.Discount.StringFixed(2)).
		Msg("coupon redeemed")

	return &Redemption{
		CouponID:    c.ID,
		Code:        c.Code,
		OrderAmount: orderAmount,
		Discount:    res.Discount,
		FinalAmount: res.FinalAmount,
		UsedAt:      usedAt,
	}, nil
}

// SendPromotion runs a promotional send and waits for it to finish
func (s *Service) SendPromotion(ctx context.Context, id uuid.UUID) (*SendReport, error) {
	c, err := s.promotable(ctx, id)
	if err != nil {
		return nil, err
	}
	token, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	// a batch is never cut short, not even by the caller going away
	ctx = context.WithoutCancel(ctx)
	defer s.tracker.Release(ctx, id, token)

	return s.runPromotion(ctx, c)
}

// StartPromotion launches a promotional send in the background and returns its
// initial report. The send outlives ctx; poll PromotionStatus for the outcome.
func (s *Service) StartPromotion(ctx context.Context, id uuid.UUID) (*SendReport, error) {
	c, err := s.promotable(ctx, id)
	if err != nil {
		return nil, err
	}
	token, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}

	initial := &SendReport{CouponID: c.ID, Code: c.Code, Status: BroadcastRunning, StartedAt: s.now()}
	if err := s.tracker.SaveReport(ctx, initial); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("coupon", c.Code).Msg("failed to store broadcast report")
	}

	bg := context.WithoutCancel(ctx)
	s.broadcasts.Add(1)
	go func() {
		defer s.broadcasts.Done()
		defer s.tracker.Release(bg, id, token)
		s.runPromotion(bg, c)
	}()

	return initial, nil
}

// PromotionStatus returns the last report for the coupon, or nil when none exists
func (s *Service) PromotionStatus(ctx context.Context, id uuid.UUID) (*SendReport, error) {
	return s.tracker.LastReport(ctx, id)
}

// Wait blocks until background promotional sends finish
func (s *Service) Wait() {
	s.broadcasts.Wait()
}

func (s *Service) promotable(ctx context.Context, id uuid.UUID) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsValidAt(s.now()) {
		return nil, reject(ReasonNoLongerValid)
	}
	return c, nil
}

func (s *Service) acquire(ctx context.Context, id uuid.UUID) (string, error) {
	token, ok, err := s.tracker.Acquire(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: acquire broadcast lock: %v", ErrInternal, err)
	}
	if !ok {
		return "", ErrSendInProgress
	}
	return token, nil
}

func (s *Service) runPromotion(ctx context.Context, c *Coupon) (*SendReport, error) {
	report, err := s.promo.Send(ctx, c)
	if err != nil {
		if report == nil {
			finished := s.now()
			report = &SendReport{
				CouponID:   c.ID,
				Code:       c.Code,
				Status:     BroadcastFailed,
				Error:      err.Error(),
				FinishedAt: &finished,
			}
		}
		logger.FromContext(ctx).Error().Err(err).Str("coupon", c.Code).Msg("promotional send failed")
	}

	if saveErr := s.tracker.SaveReport(ctx, report); saveErr != nil {
		logger.FromContext(ctx).Warn().Err(saveErr).Str("coupon", c.Code).Msg("failed to store broadcast report")
	}
	return report, err
}
