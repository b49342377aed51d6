package coupon

import "errors"

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrCodeExists     = errors.New("coupon code already exists")
	ErrInvalidCoupon  = errors.New("invalid coupon")

	// ErrNotRedeemable is returned when the atomic redemption finds the coupon
	// inactive, exhausted or outside its window
	ErrNotRedeemable = errors.New("coupon cannot be redeemed")

	ErrAlreadyUsed        = errors.New("coupon already used by this user")
	ErrMinOrderNotMet     = errors.New("order amount is below the coupon minimum")
	ErrInvalidOrderAmount = errors.New("order amount must be non-negative with at most 2 decimal places")

	ErrNoEligibleRecipients = errors.New("no eligible recipients")
	ErrSendInProgress       = errors.New("a promotional send for this coupon is already running")

	ErrInternal = errors.New("internal error")
)
