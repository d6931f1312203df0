package cart

import (
	"github.com/poovendhan-mathi/yekzen-cart/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	TaxRate               = decimal.RequireFromString("0.08")
	FreeShippingThreshold = decimal.NewFromInt(50)
	ShippingFee           = decimal.RequireFromString("9.99")
)

// Totals is a breakdown derived from one read of the collection.
type Totals struct {
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

func subtotal(items []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

func tax(sub decimal.Decimal) decimal.Decimal {
	return sub.Mul(TaxRate)
}

// shipping is free only strictly above the threshold.
func shipping(sub decimal.Decimal) decimal.Decimal {
	if sub.GreaterThan(FreeShippingThreshold) {
		return decimal.Zero
	}
	return ShippingFee
}

// ComputeTotals derives the full breakdown for items.
func ComputeTotals(items []domain.CartItem) Totals {
	sub := subtotal(items)
	t := tax(sub)
	ship := shipping(sub)
	return Totals{
		ItemCount: len(items),
		Subtotal:  sub,
		Tax:       t,
		Shipping:  ship,
		Total:     sub.Add(t).Add(ship),
	}
}
