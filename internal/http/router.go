package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Service        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig, cart *CartHandler, products *ProductHandler, checkout *CheckoutHandler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(SessionMiddleware)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// long-lived stream, no timeout or compression
		r.Get("/cart/events", cart.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
			r.Use(middleware.Compress(5))

			r.Get("/products", products.ListProducts)
			r.Get("/products/{id}", products.GetProduct)
			r.Get("/categories", products.ListCategories)

			r.Get("/cart", cart.GetCart)
			r.Delete("/cart", cart.ClearCart)
			r.Post("/cart/items", cart.AddItem)
			r.Patch("/cart/items/{id}", cart.UpdateQuantity)
			r.Delete("/cart/items/{id}", cart.RemoveItem)

			r.Post("/checkout", checkout.Checkout)
		})
	})

	return otelhttp.NewHandler(r, cfg.Service)
}
