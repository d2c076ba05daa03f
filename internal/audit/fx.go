package audit

import (
	"github.com/medsera/returns/internal/audit/repository"
	"github.com/medsera/returns/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
