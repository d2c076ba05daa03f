package sandbox

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/medsera/returns/internal/config"
	"github.com/medsera/returns/internal/gateway/adapters"
	"github.com/medsera/returns/internal/gateway/domain"
	"github.com/oklog/ulid/v2"
)

const providerName = "sandbox"

type factory struct{}

func NewFactory() adapters.Factory { return factory{} }

func (factory) Provider() string { return providerName }

func (factory) NewGateway(cfg config.GatewayConfig) (domain.Gateway, error) {
	_ = cfg
	return &gateway{}, nil
}

// gateway settles every refund immediately. Development only; a real
// deployment configures the razorpay adapter instead.
type gateway struct{}

func (g *gateway) Provider() string { return providerName }

func (g *gateway) Refund(ctx context.Context, req domain.RefundRequest) (*domain.RefundResult, error) {
	_ = ctx
	if req.PaymentReference == "" {
		return nil, &domain.Error{Provider: providerName, Err: fmt.Errorf("missing payment reference")}
	}
	return &domain.RefundResult{
		ProviderRefundID: fmt.Sprintf("rfnd_%s", ulid.MustNew(ulid.Now(), rand.Reader).String()),
		Status:           domain.StatusProcessed,
	}, nil
}
