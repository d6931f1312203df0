package checkout

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)

// UPIGateway is the demo UPI provider. Any well-formed VPA succeeds except
// those whose handle is "failure".
type UPIGateway struct{}

func (UPIGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	if !req.Amount.IsPositive() {
		return ChargeResult{}, fmt.Errorf("amount must be positive: %w", ErrInvalidPaymentDetails)
	}
	if !vpaPattern.MatchString(req.VPA) {
		return ChargeResult{}, fmt.Errorf("vpa %q: %w", req.VPA, ErrInvalidPaymentDetails)
	}

	if strings.EqualFold(strings.SplitN(req.VPA, "@", 2)[0], "failure") {
		return ChargeResult{Status: ChargeDeclined, DeclineReason: "upi_transaction_failed"}, nil
	}

	return ChargeResult{
		PaymentID: "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Status:    ChargeSucceeded,
	}, nil
}
