package checkout

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCard Method = "card"
	MethodUPI  Method = "upi"
)

type Card struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type ChargeRequest struct {
	CheckoutID string
	Amount     decimal.Decimal
	Currency   string
	Method     Method
	Card       *Card
	VPA        string
}

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeDeclined  ChargeStatus = "declined"
)

type ChargeResult struct {
	PaymentID     string
	Status        ChargeStatus
	DeclineReason string
}

// PaymentGateway charges a checkout. Declines are reported in the result,
// errors are reserved for requests that could not be processed.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// Router picks a gateway by payment method.
type Router map[Method]PaymentGateway

func (r Router) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	gw, ok := r[req.Method]
	if !ok {
		return ChargeResult{}, fmt.Errorf("%q: %w", req.Method, ErrUnsupportedMethod)
	}
	return gw.Charge(ctx, req)
}
