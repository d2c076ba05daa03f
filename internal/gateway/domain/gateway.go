package domain

import (
	"context"
	"errors"
	"fmt"
)

// Refund speeds, mirroring the gateway's wire values.
const (
	SpeedNormal  = "normal"
	SpeedInstant = "instant"
)

// Refund statuses as reported by the gateway. The refund transaction row
// records whatever the gateway says, never an assumed value.
const (
	StatusProcessed = "processed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

type RefundRequest struct {
	PaymentReference string
	Amount           int64
	Speed            string
	Notes            map[string]string
}

type RefundResult struct {
	ProviderRefundID string
	Status           string
}

// Gateway is the payment gateway boundary. Implementations must be safe to
// retry: the same refund request may be replayed after a transport failure.
type Gateway interface {
	Provider() string
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// ErrGateway matches any Error via errors.Is so callers can tell gateway
// failures apart from data problems.
var ErrGateway = errors.New("gateway_error")

var ErrProviderNotFound = errors.New("gateway_provider_not_found")

// Error wraps a provider failure for operator-facing classification.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrGateway }
