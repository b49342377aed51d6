package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opulence/opulence-api/internal/pkg/errorhandler"
	"github.com/opulence/opulence-api/internal/pkg/logger"
	"github.com/opulence/opulence-api/internal/pkg/response"
	"github.com/opulence/opulence-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /admin/ledger
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, limit, ok := h.parseFilter(w, r, true)
	if !ok {
		return
	}

	entries, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "ledger.list", err)
		return
	}

	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

// Get handles GET /admin/ledger/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid entry ID")
		return
	}

	entry, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			response.NotFound(w, "Ledger entry not found")
			return
		}
		errorhandler.Internal(r.Context(), w, "ledger.get", err)
		return
	}

	response.OK(w, entry)
}

// Summary handles GET /admin/ledger/summary?from=&to=
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	summary, err := h.svc.Summary(r.Context(), from, to)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "ledger.summary", err)
		return
	}

	response.OK(w, summary)
}

// ExportCSV handles GET /admin/ledger/export.csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, _, _, ok := h.parseFilter(w, r, false)
	if !ok {
		return
	}

	filename := fmt.Sprintf("ledger-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	rows, err := h.svc.ExportCSV(r.Context(), w, filter)
	if err != nil {
		// headers are already sent; the truncated body is all the client gets
		logger.FromContext(r.Context()).Error().
			Int("rows", rows).
			Err(err).
			Msg("ledger export aborted")
	}
}

// Archive handles POST /admin/ledger/export
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	filter, _, _, ok := h.parseFilter(w, r, false)
	if !ok {
		return
	}

	key, url, err := h.svc.ArchiveExport(r.Context(), filter)
	if err != nil {
		if errors.Is(err, ErrArchiveDisabled) {
			errorhandler.HandleError(r.Context(), w, http.StatusServiceUnavailable, "STORAGE_DISABLED", "Export storage is not configured", err)
			return
		}
		errorhandler.Internal(r.Context(), w, "ledger.archive", err)
		return
	}

	response.Created(w, ArchiveResponse{Key: key, URL: url})
}

// RecordSale handles POST /admin/ledger/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	entries, err := h.svc.RecordSale(r.Context(), req.ToOrder())
	if err != nil {
		h.writeRecordError(w, r, "ledger.record_sale", err)
		return
	}

	response.Created(w, map[string]interface{}{
		"items": entries,
		"total": len(entries),
	})
}

// RecordInventory handles POST /admin/ledger/inventory
func (h *Handler) RecordInventory(w http.ResponseWriter, r *http.Request) {
	var req InventoryInput
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entry, err := h.svc.RecordInventory(r.Context(), req)
	if err != nil {
		h.writeRecordError(w, r, "ledger.record_inventory", err)
		return
	}
	response.Created(w, entry)
}

// RecordRefund handles POST /admin/ledger/refunds
func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundInput
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entry, err := h.svc.RecordRefund(r.Context(), req)
	if err != nil {
		h.writeRecordError(w, r, "ledger.record_refund", err)
		return
	}
	response.Created(w, entry)
}

// RecordExpense handles POST /admin/ledger/expenses
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseInput
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entry, err := h.svc.RecordExpense(r.Context(), req)
	if err != nil {
		h.writeRecordError(w, r, "ledger.record_expense", err)
		return
	}
	response.Created(w, entry)
}

func (h *Handler) writeRecordError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		response.NotFound(w, "Product not found")
	case errors.Is(err, ErrEmptyOrder):
		response.BadRequest(w, "Order has no items")
	case errors.Is(err, ErrInvalidQuantity):
		response.BadRequest(w, "Quantity must be at least 1")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "Amounts must be non-negative with at most 2 decimal places")
	default:
		errorhandler.Internal(r.Context(), w, op, err)
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := response.DecodeJSON(r.Body, dst); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return false
	}
	if errs := validator.Validate(dst); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request, paged bool) (Filter, int, int, bool) {
	q := r.URL.Query()

	lq := ListQuery{
		Kind:   q.Get("type"),
		Flow:   q.Get("flow"),
		Status: q.Get("status"),
		Page:   1,
		Limit:  20,
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		lq.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		lq.Limit = v
	}
	if errs := validator.Validate(&lq); errs != nil {
		response.ValidationError(w, errs)
		return Filter{}, 0, 0, false
	}

	filter := Filter{
		Kind:   Kind(lq.Kind),
		Flow:   Flow(lq.Flow),
		Status: Status(lq.Status),
	}

	for param, dst := range map[string]**uuid.UUID{
		"order_id":   &filter.OrderID,
		"product_id": &filter.ProductID,
		"user_id":    &filter.UserID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid "+param)
			return Filter{}, 0, 0, false
		}
		*dst = &id
	}

	from, to, err := parseWindow(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return Filter{}, 0, 0, false
	}
	filter.From, filter.To = from, to

	if paged {
		filter.Limit = lq.Limit
		filter.Offset = (lq.Page - 1) * lq.Limit
	}
	return filter, lq.Page, lq.Limit, true
}

// parseWindow reads from/to as RFC 3339 or YYYY-MM-DD. A bare "to" date covers the whole day.
func parseWindow(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseTime(r.URL.Query().Get("from"), false)
	if err != nil {
		return nil, nil, errors.New("Invalid from date")
	}
	to, err := parseTime(r.URL.Query().Get("to"), true)
	if err != nil {
		return nil, nil, errors.New("Invalid to date")
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("to must not be before from")
	}
	return from, to, nil
}

func parseTime(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
