package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/poovendhan-mathi/yekzen-cart/internal/checkout"
	"github.com/poovendhan-mathi/yekzen-cart/internal/currency"
)

// Checkouter turns a cart into a paid order.
type Checkouter interface {
	Checkout(ctx context.Context, c checkout.Cart, req checkout.Request) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	timeout  time.Duration
}

func NewCheckoutHandler(svc Checkouter, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Method         string         `json:"method"`
	Card           *checkout.Card `json:"card,omitempty"`
	VPA            string         `json:"vpa,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	if req.IdempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key",
			"idempotency_key is required")
		return
	}

	display := currency.Base
	if s, ok := getSession(r.Context()); ok {
		display = s.Currency.UserCurrency()
	}

	res, err := h.checkout.Checkout(ctx, store, checkout.Request{
		ShopperID:       userID,
		IdempotencyKey:  req.IdempotencyKey,
		Method:          checkout.Method(strings.ToLower(req.Method)),
		Card:            req.Card,
		VPA:             req.VPA,
		DisplayCurrency: display,
	})
	if err != nil {
		handleCheckoutError(w, res, err)
		return
	}

	respondJSON(w, http.StatusCreated, res)
}

func handleCheckoutError(w http.ResponseWriter, res *checkout.Result, err error) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, checkout.ErrPaymentDeclined):
		details := ""
		if res != nil {
			details = res.DeclineReason
		}
		respondErrorDetails(w, http.StatusPaymentRequired, "payment_declined", "payment was declined", details)
	case errors.Is(err, checkout.ErrInvalidPaymentDetails):
		respondError(w, http.StatusBadRequest, "invalid_payment_details", err.Error())
	case errors.Is(err, checkout.ErrUnsupportedMethod):
		respondError(w, http.StatusBadRequest, "unsupported_payment_method", err.Error())
	case errors.Is(err, currency.ErrUnsupportedCurrency):
		respondError(w, http.StatusBadRequest, "unsupported_currency", err.Error())
	case errors.Is(err, checkout.ErrGatewayUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "payment provider unavailable")
	default:
		handleContextError(w, err, "checkout failed")
	}
}
