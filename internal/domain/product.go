package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	ImageURL    string          `db:"image_url" json:"image_url"`
	Stock       int             `db:"stock" json:"stock"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Descriptor is the plain item the cart consumes; the price becomes a
// snapshot from here on.
func (p Product) Descriptor() CartItem {
	return CartItem{
		ID:    ItemID(strconv.FormatInt(p.ID, 10)),
		Name:  p.Name,
		Price: p.Price,
		Image: p.ImageURL,
		Metadata: map[string]any{
			"category": p.Category,
		},
	}
}
