package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

var ErrEmptyCart = errors.New("cart is empty")

// Cart is the part of a session cart the hand-off needs.
type Cart interface {
	Snapshot() domain.Snapshot
	Clear(ctx context.Context)
}

type Result struct {
	CheckoutID string `json:"checkout_id"`
	URL        string `json:"url"`
	Message    string `json:"message"`
}

type Config struct {
	Phone          string
	Currency       string
	ClearOnHandOff bool
}

// HandOff turns a cart into a chat order: it renders the message, announces the
// checkout on the event bus and empties the cart.
type HandOff struct {
	phone      string
	opts       MessageOptions
	clearAfter bool
	publisher  Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewHandOff(cfg Config, publisher Publisher, log *zap.Logger) (*HandOff, error) {
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", cfg.Currency, err)
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HandOff{
		phone:      cfg.Phone,
		opts:       MessageOptions{Currency: unit, Language: language.English},
		clearAfter: cfg.ClearOnHandOff,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}, nil
}

func (h *HandOff) Start(ctx context.Context, sessionID string, cart Cart) (*Result, error) {
	snap := cart.Snapshot()
	if len(snap.Items) == 0 {
		return nil, ErrEmptyCart
	}

	msg := BuildMessage(snap, h.opts)
	result := &Result{
		CheckoutID: uuid.New().String(),
		URL:        ChatLink(h.phone, msg),
		Message:    msg,
	}

	event := CheckoutRequested{
		CheckoutID:  result.CheckoutID,
		SessionID:   sessionID,
		Items:       snap.Items,
		TotalItems:  snap.TotalItems,
		TotalAmount: snap.TotalPrice,
		Currency:    h.opts.Currency.String(),
		Channel:     "whatsapp",
		RequestedAt: h.now().UTC(),
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("publish checkout %s: %w", result.CheckoutID, err)
	}

	if h.clearAfter {
		cart.Clear(ctx)
	}

	h.log.Info("checkout handed off",
		zap.String("checkout_id", result.CheckoutID),
		zap.String("session_id", sessionID),
		zap.Int("total_items", snap.TotalItems),
	)
	return result, nil
}
