package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the back-office ledger API. Callers must pass auth and admin middleware.
func (h *Handler) Routes(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)

	r.Get("/", h.List)
	r.Get("/summary", h.Summary)
	r.Get("/export.csv", h.ExportCSV)
	r.Post("/export", h.Archive)
	r.Get("/{id}", h.Get)

	r.Post("/sales", h.RecordSale)
	r.Post("/inventory", h.RecordInventory)
	r.Post("/refunds", h.RecordRefund)
	r.Post("/expenses", h.RecordExpense)

	return r
}
