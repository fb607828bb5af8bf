package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"go.uber.org/zap"
)

type CheckoutStarter interface {
	Start(ctx context.Context, sessionID string, cart checkout.Cart) (*checkout.Result, error)
}

type CheckoutHandler struct {
	sessions Sessions
	handOff  CheckoutStarter
}

func NewCheckoutHandler(sessions Sessions, handOff CheckoutStarter) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		handOff:  handOff,
	}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, r, http.StatusUnauthorized, "no_session", "missing storefront session")
		return
	}

	cart := h.sessions.Get(r.Context(), sessionID)
	result, err := h.handOff.Start(r.Context(), sessionID, cart)
	if errors.Is(err, checkout.ErrEmptyCart) {
		respondError(w, r, http.StatusConflict, "empty_cart", "cart is empty")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("checkout hand-off failed", zap.Error(err))
		respondError(w, r, http.StatusServiceUnavailable, "checkout_failed", "checkout could not be started")
		return
	}

	respondJSON(w, r, http.StatusOK, result)
}
