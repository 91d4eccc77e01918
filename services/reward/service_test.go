package reward

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db/option"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
	"affiliatehub/services/offer"
	"affiliatehub/services/profile"
	"affiliatehub/services/testutil"
	"affiliatehub/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn     func(tx *gorm.DB) repository.Repository[T]
	findFn        func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn     func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn      func(ctx context.Context, resource *T) error
	updateFn      func(ctx context.Context, resourceID string, resource any) error
	batchCreateFn func(ctx context.Context, resources []*T) error
	batchUpdateFn func(ctx context.Context, resources []*T) error
	countFn       func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if m.batchCreateFn != nil {
		return m.batchCreateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error {
	if m.batchUpdateFn != nil {
		return m.batchUpdateFn(ctx, resources)
	}
	return nil
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, query)
	}
	return 0, nil
}

type enqueuerMock struct {
	tasks  []*asynq.Task
	queues []string
	err    error
}

func (m *enqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.tasks = append(m.tasks, task)
	for _, opt := range opts {
		if opt.Type() == asynq.QueueOpt {
			m.queues = append(m.queues, opt.Value().(string))
		}
	}
	return &asynq.TaskInfo{}, nil
}

type flagsMock struct {
	enabled bool
}

func (m *flagsMock) IsEnabled(ctx context.Context, feature string) bool {
	return m.enabled
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reward.ClaimTimeout = 5 * time.Second
	cfg.Reward.CurrencyCode = "USD"
	return cfg
}

func newClaimService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &offer.Offer{}, &profile.Profile{}, &Completion{}, &wallet.TransactionEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{DB: db, Node: node, Config: testConfig()})
	return svc, db
}

func seedOffer(t *testing.T, db *gorm.DB, node *snowflake.Node, kind offer.Kind, amount string) *offer.Offer {
	t.Helper()

	off := &offer.Offer{
		ID:           node.Generate(),
		Title:        "Rate the jingle",
		Kind:         kind,
		RewardAmount: decimal.RequireFromString(amount),
		CurrencyCode: "USD",
		Active:       true,
	}
	require.NoError(t, db.Create(off).Error)
	return off
}

func seedProfile(t *testing.T, db *gorm.DB, node *snowflake.Node, userID, balance string) *profile.Profile {
	t.Helper()

	prof := &profile.Profile{
		ID:            node.Generate(),
		UserID:        userID,
		Balance:       decimal.RequireFromString(balance),
		TotalEarnings: decimal.RequireFromString(balance),
	}
	require.NoError(t, db.Create(prof).Error)
	return prof
}

func audioSubmission() Submission {
	return Submission{Kind: SubmissionAudioResponse, Text: "the ad was really catchy"}
}

func TestNewService(t *testing.T) {
	svc, _ := newClaimService(t)

	require.NotNil(t, svc.offers)
	require.NotNil(t, svc.profiles)
	require.NotNil(t, svc.completions)
	require.NotNil(t, svc.entries)
}

func TestClaimCreditsBalance(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")
	seedProfile(t, db, svc.node, "user-1", "10.00")

	result, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)
	require.False(t, result.AlreadyClaimed)
	require.NotNil(t, result.Completion)
	require.True(t, decimal.RequireFromString("2.50").Equal(result.Amount))
	require.True(t, decimal.RequireFromString("12.50").Equal(result.NewBalance))
	require.True(t, strings.HasPrefix(result.TransactionCode, "TXN-"))

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("12.50").Equal(prof.Balance))
	require.True(t, decimal.RequireFromString("12.50").Equal(prof.TotalEarnings))

	var entry wallet.TransactionEntry
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&entry).Error)
	require.Equal(t, wallet.DirectionCredit, entry.Direction)
	require.Equal(t, wallet.StatusApproved, entry.Status)
	require.Equal(t, result.TransactionCode, entry.Code)
	require.Equal(t, "USD", entry.CurrencyCode)
	require.Contains(t, string(entry.Metadata), "audio_response")
}

func TestClaimProvisionsMissingProfile(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "1.25")

	result, err := svc.Claim(context.Background(), "fresh-user", off.ID, audioSubmission())
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("1.25").Equal(result.NewBalance))

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "fresh-user").First(&prof).Error)
	require.True(t, decimal.RequireFromString("1.25").Equal(prof.Balance))
}

func TestClaimIdempotent(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindVideo, "2.50")
	seedProfile(t, db, svc.node, "user-1", "10.00")

	sub := Submission{Kind: SubmissionVideoReport, TimeMark: "1:30", Description: "logo appears on screen"}

	first, err := svc.Claim(context.Background(), "user-1", off.ID, sub)
	require.NoError(t, err)
	require.False(t, first.AlreadyClaimed)

	second, err := svc.Claim(context.Background(), "user-1", off.ID, sub)
	require.NoError(t, err)
	require.True(t, second.AlreadyClaimed)
	require.Equal(t, first.Completion.ID, second.Completion.ID)
	require.True(t, decimal.RequireFromString("12.50").Equal(second.NewBalance))

	var completions int64
	require.NoError(t, db.Model(&Completion{}).Count(&completions).Error)
	require.Equal(t, int64(1), completions)

	var entries int64
	require.NoError(t, db.Model(&wallet.TransactionEntry{}).Count(&entries).Error)
	require.Equal(t, int64(1), entries)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("12.50").Equal(prof.Balance))
}

func TestClaimOfferNotFound(t *testing.T) {
	svc, _ := newClaimService(t)

	result, err := svc.Claim(context.Background(), "user-1", svc.node.Generate(), audioSubmission())
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())
}

func TestClaimExpiredOffer(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(off).Update("expires_at", past).Error)

	result, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusUnprocessableEntity, be.Status())
}

func TestClaimValidationFailureLeavesNoTrace(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindVideo, "2.50")
	seedProfile(t, db, svc.node, "user-1", "10.00")

	result, err := svc.Claim(context.Background(), "user-1", off.ID, Submission{
		Kind:        SubmissionVideoReport,
		TimeMark:    "not-a-time",
		Description: "logo appears on screen",
	})
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusValidationFailed, be.Status())

	var completions int64
	require.NoError(t, db.Model(&Completion{}).Count(&completions).Error)
	require.Zero(t, completions)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("10.00").Equal(prof.Balance))
}

func TestClaimTimeoutRollsBack(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")
	seedProfile(t, db, svc.node, "user-1", "10.00")

	svc.config.Reward.ClaimTimeout = -time.Nanosecond

	result, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusTimeout, be.Status())

	var completions int64
	require.NoError(t, db.Model(&Completion{}).Count(&completions).Error)
	require.Zero(t, completions)

	var entries int64
	require.NoError(t, db.Model(&wallet.TransactionEntry{}).Count(&entries).Error)
	require.Zero(t, entries)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("10.00").Equal(prof.Balance))
}

func TestClaimFeatureDisabled(t *testing.T) {
	svc, _ := newClaimService(t)
	svc.flags = &flagsMock{enabled: false}

	result, err := svc.Claim(context.Background(), "user-1", svc.node.Generate(), audioSubmission())
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusForbidden, be.Status())
}

func TestClaimEnqueuesReceipt(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")

	enq := &enqueuerMock{}
	svc.enqueuer = enq

	_, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, "reward:receipt", enq.tasks[0].Type())
	require.Contains(t, string(enq.tasks[0].Payload()), "user-1")
	require.Equal(t, []string{"low"}, enq.queues)
}

func TestClaimReceiptQueueFromConfig(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")

	enq := &enqueuerMock{}
	svc.enqueuer = enq
	svc.config.Reward.ReceiptsQueue = "receipts"

	_, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)
	require.Equal(t, []string{"receipts"}, enq.queues)
}

func TestClaimDuplicateSkipsReceipt(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")

	enq := &enqueuerMock{}
	svc.enqueuer = enq

	_, err := svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
}

func TestClaimOfferLookupError(t *testing.T) {
	svc := &Service{
		config: testConfig(),
		offers: &repoMock[offer.Offer]{
			findOneFn: func(ctx context.Context, _ *offer.Offer, opts ...option.QueryOption) (*offer.Offer, error) {
				return nil, errors.New("connection reset")
			},
		},
	}

	result, err := svc.Claim(context.Background(), "user-1", snowflake.ID(42), audioSubmission())
	require.Nil(t, result)

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusInternal, be.Status())
}

func TestGetCompletion(t *testing.T) {
	svc, db := newClaimService(t)
	off := seedOffer(t, db, svc.node, offer.KindAudio, "2.50")

	_, err := svc.GetCompletion(context.Background(), "user-1", off.ID)
	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, errutil.StatusNotFound, be.Status())

	_, err = svc.Claim(context.Background(), "user-1", off.ID, audioSubmission())
	require.NoError(t, err)

	found, err := svc.GetCompletion(context.Background(), "user-1", off.ID)
	require.NoError(t, err)
	require.Equal(t, off.ID, found.OfferID)
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, isUniqueViolation(nil))
	require.False(t, isUniqueViolation(errors.New("connection reset")))
	require.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, isUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "idx_completions_user_offer"`)))
	require.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: completions.user_id, completions.offer_id")))
}
