package main

import (
	"context"
	"log"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db"
	"affiliatehub/pkg/hashistack/secretmanager"
	"affiliatehub/pkg/logger"
	"affiliatehub/pkg/redis"
	"affiliatehub/pkg/sequence"
	"affiliatehub/pkg/task"
	"affiliatehub/services/jobs"
	"affiliatehub/services/offer"
	"affiliatehub/services/withdrawal"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			offer.NewService,
			withdrawal.NewService,
		),
		jobs.Module,
		fx.Invoke(registerScheduler),
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

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}

// registerScheduler runs the nightly offer expiry sweep.
func registerScheduler(lc fx.Lifecycle, client *goredis.Client) {
	scheduler := asynq.NewSchedulerFromRedisClient(client, &asynq.SchedulerOpts{
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				zap.L().Error("failed to schedule task", zap.Error(err))
			}
		},
	})

	if _, err := scheduler.Register("0 3 * * *", asynq.NewTask(task.OfferExpiryTask, nil)); err != nil {
		zap.L().Error("failed to register expiry schedule", zap.Error(err))
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Shutdown()
			return nil
		},
	})
}
