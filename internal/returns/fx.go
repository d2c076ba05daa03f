package returns

import (
	"github.com/medsera/returns/internal/returns/repository"
	"github.com/medsera/returns/internal/returns/service"
	"go.uber.org/fx"
)

var Module = fx.Module("returns.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
