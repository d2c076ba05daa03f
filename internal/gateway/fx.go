package gateway

import (
	"github.com/medsera/returns/internal/config"
	"github.com/medsera/returns/internal/gateway/adapters"
	"github.com/medsera/returns/internal/gateway/adapters/razorpay"
	"github.com/medsera/returns/internal/gateway/adapters/sandbox"
	"github.com/medsera/returns/internal/gateway/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			razorpay.NewFactory(),
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(func(registry *adapters.Registry, cfg config.Config) (domain.Gateway, error) {
		return registry.NewGateway(cfg.Gateway)
	}),
)
