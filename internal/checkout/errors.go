package checkout

import "errors"

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition     = errors.New("illegal transition of checkout status")
	ErrInvalidPaymentDetails = errors.New("invalid payment details")
	ErrPaymentDeclined       = errors.New("payment declined")
	ErrUnsupportedMethod     = errors.New("unsupported payment method")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
)
