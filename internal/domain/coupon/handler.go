package coupon

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opulence/opulence-api/internal/middleware"
	"github.com/opulence/opulence-api/internal/pkg/errorhandler"
	"github.com/opulence/opulence-api/internal/pkg/response"
	"github.com/opulence/opulence-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /admin/coupons
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	c, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeExists):
			response.Conflict(w, "Coupon code already exists")
		case errors.Is(err, ErrInvalidCoupon):
			response.BadRequest(w, err.Error())
		default:
			errorhandler.Internal(r.Context(), w, "coupon.create", err)
		}
		return
	}

	response.Created(w, c.ToSummary())
}

// List handles GET /admin/coupons
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := 1, 20
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = v
	}
	if err := validator.ValidateVar(page, "gte=1,lte=1000000"); err != nil {
		response.ValidationError(w, map[string]string{"page": "Value must be between 1 and 1000000"})
		return
	}
	if err := validator.ValidateVar(limit, "gte=1,lte=100"); err != nil {
		response.ValidationError(w, map[string]string{"limit": "Value must be between 1 and 100"})
		return
	}

	filter := ListFilter{Limit: limit, Offset: (page - 1) * limit}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, "Invalid active filter")
			return
		}
		filter.Active = &active
	}

	coupons, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "coupon.list", err)
		return
	}

	items := make([]Summary, len(coupons))
	for i := range coupons {
		items[i] = coupons[i].ToSummary()
	}
	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// Get handles GET /admin/coupons/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, "coupon.get", err)
		return
	}
	response.OK(w, c)
}

// Delete handles DELETE /admin/coupons/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeLookupError(w, r, "coupon.delete", err)
		return
	}
	response.NoContent(w)
}

// SetActive handles PATCH /admin/coupons/{id}/active
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var req SetActiveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	c, err := h.service.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeLookupError(w, r, "coupon.set_active", err)
		return
	}
	response.OK(w, c.ToSummary())
}

// Validate handles POST /coupons/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheck(w, r)
	if !ok {
		return
	}

	res, _, err := h.service.Validate(r.Context(), req.Code, middleware.GetUserID(r.Context()), req.OrderAmount)
	if err != nil {
		h.writeLookupError(w, r, "coupon.validate", err)
		return
	}
	response.OK(w, res)
}

// Apply handles POST /coupons/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCheck(w, r)
	if !ok {
		return
	}

	red, err := h.service.Apply(r.Context(), req.Code, middleware.GetUserID(r.Context()), req.OrderAmount)
	if err != nil {
		var rej *RejectionError
		switch {
		case errors.As(err, &rej) && errors.Is(err, ErrAlreadyUsed):
			response.BusinessRule(w, "COUPON_ALREADY_USED", rej.Reason)
		case errors.As(err, &rej) && errors.Is(err, ErrMinOrderNotMet):
			response.BusinessRule(w, "MIN_ORDER_NOT_MET", rej.Reason)
		case errors.As(err, &rej):
			response.BusinessRule(w, "COUPON_NOT_REDEEMABLE", rej.Reason)
		default:
			h.writeLookupError(w, r, "coupon.apply", err)
		}
		return
	}
	response.OK(w, red)
}

// StartSend handles POST /admin/coupons/{id}/send.
// The send runs in the background unless ?wait=true, which answers with the final report.
func (h *Handler) StartSend(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	var report *SendReport
	var err error
	if wait {
		report, err = h.service.SendPromotion(r.Context(), id)
	} else {
		report, err = h.service.StartPromotion(r.Context(), id)
	}
	if err != nil {
		var rej *RejectionError
		switch {
		case errors.Is(err, ErrSendInProgress):
			response.Conflict(w, "A promotional send for this coupon is already running")
		case errors.Is(err, ErrNoEligibleRecipients):
			response.BusinessRule(w, "NO_ELIGIBLE_RECIPIENTS", "Every verified customer has already received this coupon")
		case errors.As(err, &rej):
			response.BusinessRule(w, "COUPON_NOT_REDEEMABLE", rej.Reason)
		default:
			h.writeLookupError(w, r, "coupon.send", err)
		}
		return
	}

	if wait {
		response.OK(w, report)
		return
	}
	response.Accepted(w, report)
}

// SendStatus handles GET /admin/coupons/{id}/send
func (h *Handler) SendStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	report, err := h.service.PromotionStatus(r.Context(), id)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "coupon.send_status", err)
		return
	}
	if report == nil {
		response.NotFound(w, "No promotional send recorded for this coupon")
		return
	}
	response.OK(w, report)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrCouponNotFound):
		response.NotFound(w, "Coupon not found")
	case errors.Is(err, ErrInvalidOrderAmount):
		response.BadRequest(w, "Order amount must be non-negative with at most 2 decimal places")
	default:
		errorhandler.Internal(r.Context(), w, op, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid coupon ID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeCheck(w http.ResponseWriter, r *http.Request) (*CheckRequest, bool) {
	if middleware.GetUserID(r.Context()) == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return nil, false
	}

	var req CheckRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return nil, false
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return nil, false
	}
	return &req, true
}
