package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemID identifies a distinct product in a cart. Storefront clients send
// either numeric or string ids, both decode to the same ItemID.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode item id: %w", err)
		}
		*id = ItemID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

func (id ItemID) String() string {
	return string(id)
}

// CartItem is one line of a cart. Name, Image and Price are captured when
// the item is added and are never re-read from the catalog.
type CartItem struct {
	ID       ItemID
	Name     string
	Price    decimal.Decimal
	Quantity int
	Image    string
	Metadata map[string]any
}

var itemFields = map[string]bool{
	"id":       true,
	"name":     true,
	"price":    true,
	"quantity": true,
	"image":    true,
}

type itemJSON struct {
	ID       ItemID          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
}

// MarshalJSON flattens Metadata next to the known fields, producing the
// {id, name, price, quantity, image, ...} shape storefront clients persist.
func (i CartItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Metadata)+len(itemFields))
	for k, v := range i.Metadata {
		if !itemFields[k] {
			out[k] = v
		}
	}
	out["id"] = i.ID
	out["name"] = i.Name
	out["price"] = i.Price
	out["quantity"] = i.Quantity
	if i.Image != "" {
		out["image"] = i.Image
	}
	return json.Marshal(out)
}

// UnmarshalJSON collects unknown fields into Metadata.
func (i *CartItem) UnmarshalJSON(b []byte) error {
	var known itemJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}

	*i = CartItem{
		ID:       known.ID,
		Name:     known.Name,
		Price:    known.Price,
		Quantity: known.Quantity,
		Image:    known.Image,
	}
	for k, raw := range all {
		if itemFields[k] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decode item field %q: %w", k, err)
		}
		if i.Metadata == nil {
			i.Metadata = make(map[string]any)
		}
		i.Metadata[k] = v
	}
	return nil
}

// LineTotal is price × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
