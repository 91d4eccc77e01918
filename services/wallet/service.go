package wallet

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/db/option"
	"affiliatehub/pkg/db/pagination"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
	"affiliatehub/services/profile"
)

const defaultListLimit = 50

type Service struct {
	db *gorm.DB

	entries  repository.Repository[TransactionEntry]
	profiles *profile.Service
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Profiles *profile.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		entries:  repository.ProvideStore[TransactionEntry](p.DB),
		profiles: p.Profiles,
	}
}

// Balance is the wallet view of a profile.
type Balance struct {
	UserID        string `json:"user_id"`
	Balance       string `json:"balance"`
	TotalEarnings string `json:"total_earnings"`
	CurrencyCode  string `json:"currency_code"`
}

func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Balance{
		UserID:        p.UserID,
		Balance:       p.Balance.StringFixed(2),
		TotalEarnings: p.TotalEarnings.StringFixed(2),
		CurrencyCode:  "USD",
	}, nil
}

// ListTransactions returns one page of the user's entries, newest
// first, with a cursor for the next page.
func (s *Service) ListTransactions(ctx context.Context, userID string, p pagination.Pagination) ([]*TransactionEntry, *pagination.PageInfo, error) {
	if p.Limit <= 0 || p.Limit > defaultListLimit {
		p.Limit = defaultListLimit
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "id",
			OrderBy: "desc",
			Allow:   map[string]bool{"id": true},
		}),
		option.WithLimit(p.Limit + 1),
	}

	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		before, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		lastID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		// Tie-break on id so entries sharing a timestamp at the page
		// boundary are not skipped.
		opts = append(opts, option.WithWhere(
			"created_at < ? OR (created_at = ? AND id < ?)",
			before, before, lastID,
		))
	}

	entries, err := s.entries.Find(ctx, &TransactionEntry{UserID: userID}, opts...)
	if err != nil {
		zap.L().Error("failed to list transactions", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, err
	}

	entries, pageInfo := pagination.BuildCursorPageInfo(entries, p.Limit, func(e *TransactionEntry) string {
		cursor, err := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        e.ID.String(),
		})
		if err != nil {
			return ""
		}
		return cursor
	})

	return entries, pageInfo, nil
}
