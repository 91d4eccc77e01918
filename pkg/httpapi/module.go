package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/health"
	"affiliatehub/pkg/middleware"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerHealthEndpoints),
)

// ProvideEngine builds the shared gin engine every service registers
// its routes on.
func ProvideEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestLog(),
		middleware.Channel(),
		middleware.Error(),
	)

	return engine
}

func registerHealthEndpoints(engine *gin.Engine, svc health.HealthService) {
	engine.GET("/healthz", svc.Liveness)
	engine.GET("/readyz", svc.Readiness)
}
