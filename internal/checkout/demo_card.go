package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Test card numbers understood by the demo card gateway.
const (
	TestCardSuccess           = "4242424242424242"
	TestCardDeclined          = "4000000000000002"
	TestCardInsufficientFunds = "4000000000009995"
)

// CardGateway is the demo card provider. It validates the card like a real
// processor would and declines the well-known test numbers.
type CardGateway struct {
	Clock clock.Clock
}

func (g CardGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if req.Card == nil {
		return ChargeResult{}, fmt.Errorf("card details missing: %w", ErrInvalidPaymentDetails)
	}
	if !req.Amount.IsPositive() {
		return ChargeResult{}, fmt.Errorf("amount must be positive: %w", ErrInvalidPaymentDetails)
	}

	number := strings.ReplaceAll(req.Card.Number, " ", "")
	if len(number) < 12 || len(number) > 19 || !luhnValid(number) {
		return ChargeResult{}, fmt.Errorf("card number: %w", ErrInvalidPaymentDetails)
	}
	if len(req.Card.CVC) < 3 || len(req.Card.CVC) > 4 {
		return ChargeResult{}, fmt.Errorf("cvc: %w", ErrInvalidPaymentDetails)
	}
	if g.expired(req.Card) {
		return ChargeResult{Status: ChargeDeclined, DeclineReason: "expired_card"}, nil
	}

	switch number {
	case TestCardDeclined:
		return ChargeResult{Status: ChargeDeclined, DeclineReason: "card_declined"}, nil
	case TestCardInsufficientFunds:
		return ChargeResult{Status: ChargeDeclined, DeclineReason: "insufficient_funds"}, nil
	}

	return ChargeResult{
		PaymentID: "pi_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:    ChargeSucceeded,
	}, nil
}

func (g CardGateway) expired(c *Card) bool {
	if c.ExpMonth < 1 || c.ExpMonth > 12 {
		return true
	}
	now := time.Now()
	if g.Clock != nil {
		now = g.Clock.Now()
	}
	// valid through the last day of the expiry month
	end := time.Date(c.ExpYear, time.Month(c.ExpMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(end)
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}
