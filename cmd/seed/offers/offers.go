package main

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db"
	"affiliatehub/pkg/logger"
	"affiliatehub/services/bootstrap"
	"affiliatehub/services/offer"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		bootstrap.Module,
		fx.Provide(
			provideSnowflakeNode,
			offer.NewService,
		),
		fx.Invoke(seedOffers),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(9)
}

func seedOffers(lc fx.Lifecycle, shutdowner fx.Shutdowner, svc *offer.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			in30Days := time.Now().AddDate(0, 0, 30)
			seeds := []offer.CreateOfferParams{
				{
					Title:        "Rate the morning-show jingle",
					Prompt:       "Listen to the clip and tell us what stood out.",
					MediaURL:     "https://cdn.example.com/audio/jingle.mp3",
					Kind:         offer.KindAudio,
					RewardAmount: decimal.RequireFromString("2.50"),
				},
				{
					Title:        "Spot the product placement",
					Prompt:       "Watch the spot and report when the product first appears.",
					MediaURL:     "https://cdn.example.com/video/spot.mp4",
					Kind:         offer.KindVideo,
					RewardAmount: decimal.RequireFromString("4.00"),
					ExpiresAt:    &in30Days,
				},
				{
					Title:        "Describe the podcast ad read",
					Prompt:       "Summarize the host's ad read in your own words.",
					MediaURL:     "https://cdn.example.com/audio/adread.mp3",
					Kind:         offer.KindAudio,
					RewardAmount: decimal.RequireFromString("1.75"),
				},
			}

			for _, seed := range seeds {
				created, err := svc.CreateOffer(ctx, seed)
				if err != nil {
					zap.L().Error("failed to seed offer", zap.String("title", seed.Title), zap.Error(err))
					continue
				}
				zap.L().Info("seeded offer",
					zap.String("offer_id", created.ID.String()),
					zap.String("title", created.Title),
				)
			}

			return shutdowner.Shutdown()
		},
	})
}
