package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type ProductHandler struct {
	products ProductStore
	timeout  time.Duration
}

func NewProductHandler(products ProductStore, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		products: products,
		timeout:  timeout,
	}
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       int             `json:"stock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.products.List(ctx)
	if err != nil {
		handleContextError(w, err, "could not list products")
		return
	}
	products := make([]ProductResponse, len(res))
	for i, p := range res {
		products[i] = ProductResponse{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Category:    p.Category,
			Price:       p.Price,
			ImageURL:    p.ImageURL,
			Stock:       p.Stock,
		}
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}
