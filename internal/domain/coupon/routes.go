package coupon

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the customer-facing coupon router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/validate", h.Validate)
	r.Post("/apply", h.Apply)

	return r
}

// AdminRoutes returns the back-office coupon router
func (h *Handler) AdminRoutes(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/active", h.SetActive)
	r.Post("/{id}/send", h.StartSend)
	r.Get("/{id}/send", h.SendStatus)

	return r
}
