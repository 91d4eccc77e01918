package bootstrap

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/services/offer"
	"affiliatehub/services/profile"
	"affiliatehub/services/resource"
	"affiliatehub/services/reward"
	"affiliatehub/services/wallet"
	"affiliatehub/services/withdrawal"
)

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// Migrate creates or updates the schema for every model the services
// own. Safe to run on every start.
func (s *Service) Migrate() error {
	if err := s.db.AutoMigrate(
		&offer.Offer{},
		&profile.Profile{},
		&reward.Completion{},
		&wallet.TransactionEntry{},
		&withdrawal.Request{},
		&resource.PromoResource{},
		&resource.HelpArticle{},
	); err != nil {
		zap.L().Error("[bootstrap] migration failed", zap.Error(err))
		return err
	}

	zap.L().Info("[bootstrap] schema up to date")
	return nil
}
