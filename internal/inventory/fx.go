package inventory

import (
	"github.com/medsera/returns/internal/inventory/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.store",
	fx.Provide(repository.Provide),
)
