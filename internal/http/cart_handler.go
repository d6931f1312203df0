package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poovendhan-mathi/yekzen-cart/internal/cart"
	"github.com/poovendhan-mathi/yekzen-cart/internal/catalog"
	"github.com/poovendhan-mathi/yekzen-cart/internal/currency"
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/shopspring/decimal"
)

const maxQuantity = 99

// ProductStore is the read side of the catalog.
type ProductStore interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (domain.Product, error)
}

type CartHandler struct {
	products ProductStore
	timeout  time.Duration
}

func NewCartHandler(products ProductStore, timeout time.Duration) *CartHandler {
	return &CartHandler{
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	UserID string            `json:"user_id"`
	Items  []domain.CartItem `json:"items"`
	Totals cart.Totals       `json:"totals"`
}

type MoneyDTO struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Formatted string          `json:"formatted"`
}

type TotalsResponse struct {
	ItemCount int      `json:"item_count"`
	Subtotal  MoneyDTO `json:"subtotal"`
	Tax       MoneyDTO `json:"tax"`
	Shipping  MoneyDTO `json:"shipping"`
	Total     MoneyDTO `json:"total"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(r, store))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	product, err := h.products.Get(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product does not exist")
			return
		}
		handleContextError(w, err, "catalog lookup failed")
		return
	}

	// quantities below 1 count as 1
	store.AddItem(product.Descriptor(), req.Quantity)
	respondJSON(w, http.StatusCreated, newCartResponse(r, store))
}

// UpdateQuantity sets a line's quantity; zero or less removes it and an id
// that is not in the cart is left alone.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	store.SetQuantity(id, req.Quantity)
	respondJSON(w, http.StatusOK, newCartResponse(r, store))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := itemIDFromPath(w, r)
	if !ok {
		return
	}

	store.RemoveItem(id)
	respondJSON(w, http.StatusOK, newCartResponse(r, store))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}

	store.Clear()
	respondJSON(w, http.StatusOK, newCartResponse(r, store))
}

// GetTotals renders the breakdown in ?currency= or, without it, in the
// shopper's preferred currency.
func (h *CartHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	store, ok := cartFromRequest(w, r)
	if !ok {
		return
	}

	code := r.URL.Query().Get("currency")
	if code == "" {
		code = currency.Base
		if s, ok := getSession(r.Context()); ok {
			code = s.Currency.UserCurrency()
		}
	}

	totals := store.Totals()
	resp := TotalsResponse{ItemCount: totals.ItemCount}
	for _, f := range []struct {
		dst    *MoneyDTO
		amount decimal.Decimal
	}{
		{&resp.Subtotal, totals.Subtotal},
		{&resp.Tax, totals.Tax},
		{&resp.Shipping, totals.Shipping},
		{&resp.Total, totals.Total},
	} {
		m, err := money(f.amount, code)
		if err != nil {
			respondErrorDetails(w, http.StatusBadRequest, "unsupported_currency", "currency is not supported", code)
			return
		}
		*f.dst = m
	}

	respondJSON(w, http.StatusOK, resp)
}

func money(amount decimal.Decimal, code string) (MoneyDTO, error) {
	converted, err := currency.ConvertAmount(amount, code)
	if err != nil {
		return MoneyDTO{}, err
	}
	formatted, err := currency.Format(converted.Value, converted.Code)
	if err != nil {
		return MoneyDTO{}, err
	}
	return MoneyDTO{
		Amount:    converted.Value.Round(currency.Scale(converted.Code)),
		Currency:  converted.Code,
		Formatted: formatted,
	}, nil
}

func newCartResponse(r *http.Request, store *cart.Store) CartResponse {
	items := store.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartResponse{
		UserID: getUserIDFromContext(r.Context()),
		Items:  items,
		Totals: cart.ComputeTotals(items),
	}
}

func cartFromRequest(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store, ok := cart.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusInternalServerError, "cart_unavailable", "no cart bound to request")
	}
	return store, ok
}

func itemIDFromPath(w http.ResponseWriter, r *http.Request) (domain.ItemID, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return "", false
	}
	return domain.ItemID(id), true
}

func handleContextError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", message)
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "cancelled", message)
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
