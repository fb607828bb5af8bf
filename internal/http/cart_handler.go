package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Sessions resolves the cart store of a storefront session.
type Sessions interface {
	Get(ctx context.Context, sessionID string) *store.Store
	Watch(ctx context.Context, sessionID string, fn func(domain.Snapshot)) (*store.Store, func())
}

type Catalog interface {
	ListProducts(ctx context.Context, category string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id domain.ProductID) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type CartHandler struct {
	sessions Sessions
	catalog  Catalog
}

func NewCartHandler(sessions Sessions, catalog Catalog) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
	}
}

type AddItemRequestDTO struct {
	ProductID domain.ProductID `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Delta int `json:"delta"`
}

type CartResponse struct {
	Items             []domain.LineItem `json:"items"`
	TotalItems        int               `json:"total_items"`
	TotalPrice        float64           `json:"total_price"`
	TotalPriceDisplay string            `json:"total_price_display"`
}

func toCartResponse(s domain.Snapshot) CartResponse {
	items := s.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponse{
		Items:             items,
		TotalItems:        s.TotalItems,
		TotalPrice:        s.TotalPrice,
		TotalPriceDisplay: s.DisplayPrice(),
	}
}

func (h *CartHandler) cart(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, r, http.StatusUnauthorized, "no_session", "missing storefront session")
		return nil, false
	}
	return h.sessions.Get(r.Context(), sessionID), true
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.cart(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(cart.Snapshot()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.cart(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, r, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		handleCatalogError(w, r, err)
		return
	}

	cart.AddItem(r.Context(), *product)
	respondJSON(w, r, http.StatusCreated, toCartResponse(cart.Snapshot()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.cart(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart.UpdateQuantity(r.Context(), domain.ProductID(chi.URLParam(r, "id")), req.Delta)
	respondJSON(w, r, http.StatusOK, toCartResponse(cart.Snapshot()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.cart(w, r)
	if !ok {
		return
	}

	cart.RemoveItem(r.Context(), domain.ProductID(chi.URLParam(r, "id")))
	respondJSON(w, r, http.StatusOK, toCartResponse(cart.Snapshot()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.cart(w, r)
	if !ok {
		return
	}

	cart.Clear(r.Context())
	respondJSON(w, r, http.StatusOK, toCartResponse(cart.Snapshot()))
}

// Events streams the cart as server-sent events: the current state first, then
// one frame per mutation until the client goes away.
func (h *CartHandler) Events(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, r, http.StatusUnauthorized, "no_session", "missing storefront session")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported")
		return
	}

	// each frame carries the full cart, so a slow client only needs the latest
	updates := make(chan domain.Snapshot, 1)
	cart, stop := h.sessions.Watch(r.Context(), sessionID, func(s domain.Snapshot) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	log := logger.FromContext(r.Context())
	if err := writeEvent(w, cart.Snapshot()); err != nil {
		log.Debug("cart stream closed", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-updates:
			if err := writeEvent(w, s); err != nil {
				log.Debug("cart stream closed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, s domain.Snapshot) error {
	payload, err := json.Marshal(toCartResponse(s))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", payload)
	return err
}

func handleCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, r, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "catalog_unavailable", "catalog is temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "catalog_timeout", "catalog did not respond in time")
	default:
		logger.FromContext(r.Context()).Error("catalog request failed", zap.Error(err))
		respondError(w, r, http.StatusBadGateway, "catalog_error", "catalog request failed")
	}
}
