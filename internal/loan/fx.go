package loan

import (
	"github.com/creditera/cobranza/internal/loan/repository"
	"github.com/creditera/cobranza/internal/loan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("loan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
