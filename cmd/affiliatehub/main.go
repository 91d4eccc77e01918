package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db"
	"affiliatehub/pkg/featureflags"
	"affiliatehub/pkg/hashistack/secretmanager"
	"affiliatehub/pkg/health"
	"affiliatehub/pkg/httpapi"
	"affiliatehub/pkg/logger"
	"affiliatehub/pkg/minio"
	"affiliatehub/pkg/redis"
	"affiliatehub/pkg/sequence"
	"affiliatehub/pkg/server"
	"affiliatehub/pkg/task"
	"affiliatehub/services/bootstrap"
	"affiliatehub/services/offer"
	"affiliatehub/services/profile"
	"affiliatehub/services/resource"
	"affiliatehub/services/reward"
	"affiliatehub/services/wallet"
	"affiliatehub/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		minio.Client,
		featureflags.Module,
		health.Module,
		fx.Provide(
			provideTracerProvider,
			provideSnowflakeNode,
		),
		httpapi.Module,
		bootstrap.Module,
		offer.Module,
		profile.Module,
		reward.Module,
		wallet.Module,
		withdrawal.Module,
		resource.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideTracerProvider() trace.TracerProvider {
	return otel.GetTracerProvider()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
