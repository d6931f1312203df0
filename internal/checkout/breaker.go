package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// Breaker stops calling a gateway that keeps failing. Declines and invalid
// payment details are answers, not failures, and never trip it.
type Breaker struct {
	next PaymentGateway
	cb   *gobreaker.CircuitBreaker[ChargeResult]
}

func NewBreaker(next PaymentGateway, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrInvalidPaymentDetails) ||
				errors.Is(err, ErrUnsupportedMethod)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[ChargeResult](st)}
}

func (b *Breaker) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	res, err := b.cb.Execute(func() (ChargeResult, error) {
		return b.next.Charge(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ChargeResult{}, fmt.Errorf("%s: %w", err, ErrGatewayUnavailable)
	}
	return res, err
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
