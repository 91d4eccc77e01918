package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/errutil"
	"affiliatehub/services/profile"
	"affiliatehub/services/testutil"
	"affiliatehub/services/wallet"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type seqMock struct {
	prefix string
	n      int
	err    error
}

func (m *seqMock) NextWithdrawalCode(ctx context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.n++
	return fmt.Sprintf("%s%03d", m.prefix, m.n), nil
}

func (m *seqMock) NextResourceCode(ctx context.Context) (string, error) {
	return m.NextWithdrawalCode(ctx)
}

type enqueuerMock struct {
	tasks []*asynq.Task
}

func (m *enqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.tasks = append(m.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Reward.CurrencyCode = "USD"
	return cfg
}

func newWithdrawalService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &profile.Profile{}, &wallet.TransactionEntry{}, &Request{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Config:   testConfig(),
		Sequence: &seqMock{prefix: "WD-260830-"},
	})
	return svc, db
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

func submitParams(amount string) SubmitParams {
	return SubmitParams{
		Amount:      decimal.RequireFromString(amount),
		Method:      MethodPaypal,
		Destination: "payee@example.com",
	}
}

func requireStatusErr(t *testing.T, err error, want errutil.CoreStatus) {
	t.Helper()

	var be errutil.BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, want, be.Status())
}

func TestSubmitDebitsBalance(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("12.50"))
	require.NoError(t, err)
	require.Equal(t, StatusPending, request.Status)
	require.Equal(t, "WD-260830-001", request.Code)
	require.NotEmpty(t, request.TransactionCode)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("7.50").Equal(prof.Balance))
	require.True(t, decimal.RequireFromString("20.00").Equal(prof.TotalEarnings))

	var entry wallet.TransactionEntry
	require.NoError(t, db.Where("code = ?", request.TransactionCode).First(&entry).Error)
	require.Equal(t, wallet.DirectionDebit, entry.Direction)
	require.Equal(t, wallet.StatusPending, entry.Status)
	require.Contains(t, string(entry.Metadata), "paypal")
}

func TestSubmitInsufficientBalance(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "5.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("10.00"))
	require.Nil(t, request)
	requireStatusErr(t, err, errutil.StatusUnprocessableEntity)

	var requests int64
	require.NoError(t, db.Model(&Request{}).Count(&requests).Error)
	require.Zero(t, requests)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("5.00").Equal(prof.Balance))
}

func TestSubmitUnknownUser(t *testing.T) {
	svc, _ := newWithdrawalService(t)

	request, err := svc.Submit(context.Background(), "ghost", submitParams("10.00"))
	require.Nil(t, request)
	requireStatusErr(t, err, errutil.StatusUnprocessableEntity)
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newWithdrawalService(t)

	cases := []struct {
		name   string
		params SubmitParams
	}{
		{name: "zero amount", params: SubmitParams{Amount: decimal.Zero, Method: MethodPaypal, Destination: "x@y.z"}},
		{name: "negative amount", params: SubmitParams{Amount: decimal.RequireFromString("-1"), Method: MethodPaypal, Destination: "x@y.z"}},
		{name: "bad method", params: SubmitParams{Amount: decimal.RequireFromString("5"), Method: "cheque", Destination: "x@y.z"}},
		{name: "empty destination", params: SubmitParams{Amount: decimal.RequireFromString("5"), Method: MethodCrypto, Destination: "  "}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), "user-1", tc.params)
			requireStatusErr(t, err, errutil.StatusValidationFailed)
		})
	}
}

func TestSubmitFallsBackWhenSequenceFails(t *testing.T) {
	svc, db := newWithdrawalService(t)
	svc.seq = &seqMock{err: errors.New("redis down")}
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("1.00"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(request.Code, "WD-"))
}

func TestReviewReject(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("12.50"))
	require.NoError(t, err)

	reviewed, err := svc.Review(context.Background(), request.ID, false, "destination unverified")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("20.00").Equal(prof.Balance))

	var entry wallet.TransactionEntry
	require.NoError(t, db.Where("code = ?", request.TransactionCode).First(&entry).Error)
	require.Equal(t, wallet.StatusReversed, entry.Status)
}

func TestReviewApproveEnqueuesPayout(t *testing.T) {
	svc, db := newWithdrawalService(t)
	enq := &enqueuerMock{}
	svc.enqueuer = enq
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("12.50"))
	require.NoError(t, err)

	reviewed, err := svc.Review(context.Background(), request.ID, true, "")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, reviewed.Status)

	require.Len(t, enq.tasks, 1)
	require.Equal(t, "withdrawal:payout", enq.tasks[0].Type())
	require.Contains(t, string(enq.tasks[0].Payload()), request.ID.String())

	// the debit must stay in place while the payout is in flight
	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("7.50").Equal(prof.Balance))
}

func TestReviewTwiceConflicts(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("12.50"))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), request.ID, false, "first pass")
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), request.ID, true, "second pass")
	requireStatusErr(t, err, errutil.StatusConflict)
}

func TestReviewNotFound(t *testing.T) {
	svc, _ := newWithdrawalService(t)

	_, err := svc.Review(context.Background(), svc.node.Generate(), true, "")
	requireStatusErr(t, err, errutil.StatusNotFound)
}

func TestMarkPaid(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("12.50"))
	require.NoError(t, err)

	// pending requests cannot jump straight to paid
	_, err = svc.MarkPaid(context.Background(), request.ID)
	requireStatusErr(t, err, errutil.StatusConflict)

	_, err = svc.Review(context.Background(), request.ID, true, "")
	require.NoError(t, err)

	paid, err := svc.MarkPaid(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	var entry wallet.TransactionEntry
	require.NoError(t, db.Where("code = ?", request.TransactionCode).First(&entry).Error)
	require.Equal(t, wallet.StatusApproved, entry.Status)
}

func TestListPendingOrder(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "50.00")

	first, err := svc.Submit(context.Background(), "user-1", submitParams("5.00"))
	require.NoError(t, err)
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)

	second, err := svc.Submit(context.Background(), "user-1", submitParams("10.00"))
	require.NoError(t, err)

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, second.ID, pending[1].ID)
}

func TestReviewConcurrentRejectsRefundOnce(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("10.00"))
	require.NoError(t, err)

	// Two reviewers reject the same request at once. Whichever write
	// lands first flips the status; the other must lose on the status
	// guard, not refund a second time.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Review(context.Background(), request.ID, false, "duplicate review")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var conflicts, successes int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		requireStatusErr(t, err, errutil.StatusConflict)
		conflicts++
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)

	var prof profile.Profile
	require.NoError(t, db.Where("user_id = ?", "user-1").First(&prof).Error)
	require.True(t, decimal.RequireFromString("20.00").Equal(prof.Balance))

	var reversed int64
	require.NoError(t, db.Model(&wallet.TransactionEntry{}).
		Where("code = ? AND status = ?", request.TransactionCode, wallet.StatusReversed).
		Count(&reversed).Error)
	require.Equal(t, int64(1), reversed)
}

func TestMarkPaidRejectedConflicts(t *testing.T) {
	svc, db := newWithdrawalService(t)
	seedProfile(t, db, svc.node, "user-1", "20.00")

	request, err := svc.Submit(context.Background(), "user-1", submitParams("10.00"))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), request.ID, false, "no")
	require.NoError(t, err)

	_, err = svc.MarkPaid(context.Background(), request.ID)
	requireStatusErr(t, err, errutil.StatusConflict)
}
