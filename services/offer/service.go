package offer

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/db/option"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	offers repository.Repository[Offer]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		offers: repository.ProvideStore[Offer](p.DB),
	}
}

// ListOffers returns active offers, newest first. kind narrows the
// result to one offer kind when non-empty.
func (s *Service) ListOffers(ctx context.Context, kind Kind) ([]*Offer, error) {
	query := &Offer{Active: true}
	if kind != "" {
		if !kind.Valid() {
			return nil, errutil.BadRequest("unsupported offer kind", nil)
		}
		query.Kind = kind
	}

	offers, err := s.offers.Find(ctx, query, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
	if err != nil {
		zap.L().Error("failed to list offers", zap.Error(err))
		return nil, err
	}

	return offers, nil
}

func (s *Service) GetOffer(ctx context.Context, id snowflake.ID) (*Offer, error) {
	found, err := s.offers.FindOne(ctx, &Offer{ID: id})
	if err != nil {
		zap.L().Error("failed to query offer", zap.String("offer_id", id.String()), zap.Error(err))
		return nil, err
	}
	if found == nil {
		return nil, errutil.NotFound("offer not found", nil)
	}

	return found, nil
}

type CreateOfferParams struct {
	Title        string
	Prompt       string
	MediaURL     string
	Kind         Kind
	RewardAmount decimal.Decimal
	CurrencyCode string
	ExpiresAt    *time.Time
}

// CreateOffer registers a new offer. Used by admin tooling and seeding.
func (s *Service) CreateOffer(ctx context.Context, p CreateOfferParams) (*Offer, error) {
	if !p.Kind.Valid() {
		return nil, errutil.BadRequest("unsupported offer kind", nil)
	}
	if p.Title == "" {
		return nil, errutil.ValidationFailed("title is required", nil)
	}
	if p.RewardAmount.IsNegative() {
		return nil, errutil.ValidationFailed("reward amount must not be negative", nil)
	}

	currency := p.CurrencyCode
	if currency == "" {
		currency = "USD"
	}

	o := &Offer{
		ID:           s.node.Generate(),
		Title:        p.Title,
		Prompt:       p.Prompt,
		MediaURL:     p.MediaURL,
		Kind:         p.Kind,
		RewardAmount: p.RewardAmount,
		CurrencyCode: currency,
		Active:       true,
		ExpiresAt:    p.ExpiresAt,
	}

	if err := s.offers.Create(ctx, o); err != nil {
		zap.L().Error("failed to create offer", zap.Error(err))
		return nil, err
	}

	return o, nil
}

// DeactivateExpired flips offers past their expiry to inactive and
// returns how many rows changed. The worker scheduler calls this daily.
func (s *Service) DeactivateExpired(ctx context.Context, kind Kind, now time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).
		Model(&Offer{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now)
	if kind != "" {
		tx = tx.Where("kind = ?", kind)
	}

	res := tx.Updates(map[string]any{
		"active":     false,
		"updated_at": now,
	})
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		zap.L().Info("deactivated expired offers",
			zap.String("kind", kind.String()),
			zap.Int64("count", res.RowsAffected),
		)
	}

	return res.RowsAffected, nil
}
