package withdrawal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"affiliatehub/pkg/config"
	"affiliatehub/pkg/db/option"
	"affiliatehub/pkg/errutil"
	"affiliatehub/pkg/repository"
	"affiliatehub/pkg/sequence"
	"affiliatehub/pkg/task"
	"affiliatehub/services/profile"
	"affiliatehub/services/wallet"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config

	seq      sequence.Generator
	enqueuer task.Enqueuer

	requests repository.Repository[Request]
	profiles repository.Repository[profile.Profile]
	entries  repository.Repository[wallet.TransactionEntry]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config

	Sequence sequence.Generator `optional:"true"`
	Enqueuer task.Enqueuer      `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		config:   p.Config,
		seq:      p.Sequence,
		enqueuer: p.Enqueuer,

		requests: repository.ProvideStore[Request](p.DB),
		profiles: repository.ProvideStore[profile.Profile](p.DB),
		entries:  repository.ProvideStore[wallet.TransactionEntry](p.DB),
	}
}

type SubmitParams struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      Method          `json:"method"`
	Destination string          `json:"destination"`
}

func (p SubmitParams) validate() error {
	if !p.Amount.IsPositive() {
		return errutil.ValidationFailed("amount must be positive", nil)
	}
	if !p.Method.Valid() {
		return errutil.ValidationFailed("method must be paypal, bank_transfer or crypto", nil)
	}
	if strings.TrimSpace(p.Destination) == "" {
		return errutil.ValidationFailed("destination is required", nil)
	}
	return nil
}

// Submit debits the balance and queues a pending request in one
// transaction. A later rejection refunds the debit.
func (s *Service) Submit(ctx context.Context, userID string, params SubmitParams) (*Request, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
	)

	if err := params.validate(); err != nil {
		return nil, err
	}

	code := s.nextCode(ctx)

	var request *Request
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profTx := s.profiles.WithTrx(tx)
		entryTx := s.entries.WithTrx(tx)
		reqTx := s.requests.WithTrx(tx)

		prof, err := profTx.FindOne(ctx, &profile.Profile{UserID: userID}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("could not fetch user profile", err)
		}
		if prof == nil || prof.Balance.LessThan(params.Amount) {
			return errutil.UnprocessableEntity("insufficient balance", nil)
		}

		if err := profTx.Update(ctx, prof.ID.String(), map[string]any{
			"balance":    gorm.Expr("balance - ?", params.Amount),
			"updated_at": time.Now(),
		}); err != nil {
			return errutil.Internal("could not debit balance", err)
		}

		txnCode, err := wallet.GenerateTransactionCode()
		if err != nil {
			return errutil.Internal("could not generate transaction code", err)
		}

		metadata, _ := json.Marshal(map[string]string{
			"method":      string(params.Method),
			"destination": params.Destination,
		})
		entry := &wallet.TransactionEntry{
			ID:           s.node.Generate(),
			Code:         txnCode,
			UserID:       userID,
			Amount:       params.Amount,
			CurrencyCode: s.config.Reward.CurrencyCode,
			Direction:    wallet.DirectionDebit,
			Status:       wallet.StatusPending,
			Channel:      "api",
			Description:  "Withdrawal " + code,
			Metadata:     datatypes.JSON(metadata),
		}
		if err := entryTx.Create(ctx, entry); err != nil {
			return errutil.Internal("could not append transaction entry", err)
		}

		request = &Request{
			ID:              s.node.Generate(),
			Code:            code,
			UserID:          userID,
			Amount:          params.Amount,
			CurrencyCode:    s.config.Reward.CurrencyCode,
			Method:          params.Method,
			Destination:     params.Destination,
			Status:          StatusPending,
			TransactionCode: txnCode,
		}
		return reqTx.Create(ctx, request)
	}); err != nil {
		zapLog.Error("failed to submit withdrawal", zap.Error(err))
		return nil, err
	}

	zapLog.Info("withdrawal submitted",
		zap.String("code", request.Code),
		zap.String("amount", request.Amount.StringFixed(2)),
	)

	return request, nil
}

// nextCode falls back to a transaction-code style value when redis is
// not wired, so Submit still works in dev setups.
func (s *Service) nextCode(ctx context.Context) string {
	if s.seq != nil {
		code, err := s.seq.NextWithdrawalCode(ctx)
		if err == nil {
			return code
		}
		zap.L().Warn("sequence generator unavailable, falling back to random code", zap.Error(err))
	}

	code, err := wallet.GenerateTransactionCode()
	if err != nil {
		return "WD-" + s.node.Generate().String()
	}
	return "WD-" + strings.TrimPrefix(code, "TXN-")
}

// ListByUser returns the user's own requests, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Request, error) {
	return s.requests.Find(ctx, &Request{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

// ListPending returns the review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]*Request, error) {
	return s.requests.Find(ctx, &Request{Status: StatusPending},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "asc",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

func (s *Service) Get(ctx context.Context, requestID snowflake.ID) (*Request, error) {
	found, err := s.requests.FindOne(ctx, &Request{ID: requestID})
	if err != nil {
		return nil, errutil.Internal("could not fetch withdrawal request", err)
	}
	if found == nil {
		return nil, errutil.NotFound("withdrawal request not found", nil)
	}
	return found, nil
}

// Review settles a pending request. Approval schedules the payout
// task; rejection refunds the balance and reverses the entry, all in
// one transaction.
func (s *Service) Review(ctx context.Context, requestID snowflake.ID, approve bool, note string) (*Request, error) {
	zapLog := zap.L().With(zap.String("request_id", requestID.String()))

	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	target := StatusApproved
	if !approve {
		target = StatusRejected
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The status predicate settles concurrent reviews: only the
		// write that still sees pending flips the row, everyone else
		// matches nothing and never reaches the refund.
		res := tx.Model(&Request{}).
			Where("id = ? AND status = ?", request.ID, StatusPending).
			Updates(map[string]any{
				"status":      target,
				"note":        note,
				"reviewed_at": now,
			})
		if res.Error != nil {
			return errutil.Internal("could not update request", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("request is not pending review", nil)
		}

		if approve {
			return nil
		}

		profTx := s.profiles.WithTrx(tx)
		prof, err := profTx.FindOne(ctx, &profile.Profile{UserID: request.UserID}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("could not fetch user profile", err)
		}
		if prof == nil {
			return errutil.Internal("profile missing for request owner", nil)
		}
		if err := profTx.Update(ctx, prof.ID.String(), map[string]any{
			"balance":    gorm.Expr("balance + ?", request.Amount),
			"updated_at": now,
		}); err != nil {
			return errutil.Internal("could not refund balance", err)
		}

		return tx.Model(&wallet.TransactionEntry{}).
			Where("code = ?", request.TransactionCode).
			Update("status", wallet.StatusReversed).Error
	}); err != nil {
		zapLog.Error("failed to review withdrawal", zap.Error(err))
		return nil, err
	}

	request.Status = target
	request.Note = note
	request.ReviewedAt = &now

	if approve {
		s.enqueuePayout(request)
	}

	zapLog.Info("withdrawal reviewed", zap.String("status", string(target)))
	return request, nil
}

func (s *Service) enqueuePayout(request *Request) {
	if s.enqueuer == nil {
		return
	}

	payload, _ := json.Marshal(task.WithdrawalPayoutPayload{RequestID: request.ID.String()})
	if _, err := s.enqueuer.Enqueue(asynq.NewTask(task.WithdrawalPayoutTask, payload), asynq.Queue("critical")); err != nil {
		zap.L().Error("failed to enqueue payout",
			zap.String("request_id", request.ID.String()),
			zap.Error(err),
		)
	}
}

// MarkPaid finalizes an approved request. Called by the payout worker.
func (s *Service) MarkPaid(ctx context.Context, requestID snowflake.ID) (*Request, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Request{}).
			Where("id = ? AND status = ?", request.ID, StatusApproved).
			Updates(map[string]any{
				"status":  StatusPaid,
				"paid_at": now,
			})
		if res.Error != nil {
			return errutil.Internal("could not mark request paid", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("request is not approved", nil)
		}

		return tx.Model(&wallet.TransactionEntry{}).
			Where("code = ?", request.TransactionCode).
			Update("status", wallet.StatusApproved).Error
	}); err != nil {
		zap.L().Error("failed to mark withdrawal paid", zap.String("request_id", requestID.String()), zap.Error(err))
		return nil, err
	}

	request.Status = StatusPaid
	request.PaidAt = &now

	zap.L().Info("withdrawal paid",
		zap.String("request_id", request.ID.String()),
		zap.String("code", request.Code),
	)
	return request, nil
}
