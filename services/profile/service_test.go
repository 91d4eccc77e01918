package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/errutil"
	"affiliatehub/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newProfileService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Profile{})
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func strPtr(s string) *string { return &s }

func TestGetProfileProvisionsOnFirstReference(t *testing.T) {
	svc, db := newProfileService(t)

	prof, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", prof.UserID)
	require.True(t, prof.Balance.IsZero())
	require.True(t, prof.TotalEarnings.IsZero())

	again, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, prof.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&Profile{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUpdateProfileDisplayFields(t *testing.T) {
	svc, _ := newProfileService(t)

	updated, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileParams{
		DisplayName: strPtr("  Dana  "),
		Email:       strPtr("dana@example.com"),
	})
	require.NoError(t, err)
	require.Equal(t, "Dana", updated.DisplayName)
	require.Equal(t, "dana@example.com", updated.Email)
}

func TestUpdateProfileRejectsBadEmail(t *testing.T) {
	svc, _ := newProfileService(t)

	_, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileParams{
		Email: strPtr("not-an-email"),
	})

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusValidationFailed, be.Status())
}

func TestUpdateProfileNoFieldsIsNoop(t *testing.T) {
	svc, _ := newProfileService(t)

	before, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)

	after, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileParams{})
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestUpdateProfileCannotTouchBalance(t *testing.T) {
	svc, db := newProfileService(t)

	prof, err := svc.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, db.Model(prof).Update("balance", decimal.RequireFromString("42.00")).Error)

	updated, err := svc.UpdateProfile(context.Background(), "user-1", UpdateProfileParams{
		DisplayName: strPtr("Dana"),
	})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("42.00").Equal(updated.Balance))
}
