package payment

import (
	"github.com/creditera/cobranza/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(service.New),
)
