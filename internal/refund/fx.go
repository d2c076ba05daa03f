package refund

import (
	"github.com/medsera/returns/internal/refund/repository"
	"github.com/medsera/returns/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
