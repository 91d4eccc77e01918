package profile

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	profiles repository.Repository[Profile]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		profiles: repository.ProvideStore[Profile](p.DB),
	}
}

// GetProfile returns the user's profile, provisioning an empty one on
// first reference.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	found, err := s.profiles.FindOne(ctx, &Profile{UserID: userID})
	if err != nil {
		zap.L().Error("failed to query profile", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("could not fetch user profile", err)
	}
	if found != nil {
		return found, nil
	}

	created := &Profile{
		ID:     s.node.Generate(),
		UserID: userID,
	}
	if err := s.profiles.Create(ctx, created); err != nil {
		// lost a provisioning race; the row exists now
		if existing, ferr := s.profiles.FindOne(ctx, &Profile{UserID: userID}); ferr == nil && existing != nil {
			return existing, nil
		}
		zap.L().Error("failed to provision profile", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("could not provision user profile", err)
	}

	zap.L().Info("provisioned profile", zap.String("user_id", userID))
	return created, nil
}

type UpdateProfileParams struct {
	DisplayName *string `json:"display_name"`
	Email       *string `json:"email"`
}

// UpdateProfile changes display fields only. Balance is not settable
// through the API.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p UpdateProfileParams) (*Profile, error) {
	current, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if p.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*p.DisplayName)
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, errutil.ValidationFailed("invalid email address", nil)
		}
		updates["email"] = email
	}

	if len(updates) == 0 {
		return current, nil
	}

	if err := s.profiles.Update(ctx, current.ID.String(), updates); err != nil {
		zap.L().Error("failed to update profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return s.profiles.FindOne(ctx, &Profile{UserID: userID})
}
