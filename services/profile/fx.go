package profile

import (
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)
