package cart

import "github.com/poovendhan-mathi/yekzen-cart/internal/domain"

// Op is a cart mutation. The set of variants is closed; every change to a
// cart goes through Store.Dispatch.
type Op interface {
	opName() string
}

// AddItem merges Item into the cart, incrementing the quantity of an
// existing line with the same id. Quantity below 1 counts as 1.
type AddItem struct {
	Item     domain.CartItem
	Quantity int
}

// RemoveItem drops the line with ID. Removing an absent id is a no-op.
type RemoveItem struct {
	ID domain.ItemID
}

// SetQuantity replaces the quantity of an existing line. Quantity <= 0
// removes the line; an absent id is left alone.
type SetQuantity struct {
	ID       domain.ItemID
	Quantity int
}

// Clear empties the cart.
type Clear struct{}

func (AddItem) opName() string     { return "add_item" }
func (RemoveItem) opName() string  { return "remove_item" }
func (SetQuantity) opName() string { return "set_quantity" }
func (Clear) opName() string       { return "clear" }
