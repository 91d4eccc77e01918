package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"affiliatehub/pkg/featureflags"
	"affiliatehub/pkg/middleware"
	"affiliatehub/pkg/repository"
	"affiliatehub/pkg/task"
	"affiliatehub/services/offer"
	"affiliatehub/services/profile"
	"affiliatehub/services/wallet"
)

// ClaimsFeature is the Flagsmith kill switch for the whole flow.
const ClaimsFeature = "reward_claims_enabled"

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	config *config.Config

	flags    featureflags.FeatureFlag
	enqueuer task.Enqueuer

	offers      repository.Repository[offer.Offer]
	profiles    repository.Repository[profile.Profile]
	completions repository.Repository[Completion]
	entries     repository.Repository[wallet.TransactionEntry]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config

	Flags    featureflags.FeatureFlag `optional:"true"`
	Enqueuer task.Enqueuer            `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		config:   p.Config,
		flags:    p.Flags,
		enqueuer: p.Enqueuer,

		offers:      repository.ProvideStore[offer.Offer](p.DB),
		profiles:    repository.ProvideStore[profile.Profile](p.DB),
		completions: repository.ProvideStore[Completion](p.DB),
		entries:     repository.ProvideStore[wallet.TransactionEntry](p.DB),
	}
}

// ClaimResult reports the outcome of a claim. AlreadyClaimed means the
// (user, offer) pair had a completion before this call; no new writes
// happened.
type ClaimResult struct {
	AlreadyClaimed  bool            `json:"already_claimed"`
	Completion      *Completion     `json:"completion"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}

// Claim grants the offer's reward to the user at most once. All writes
// (completion record, balance credit, transaction entry) happen in one
// database transaction: a failure at any step leaves no partial state.
func (s *Service) Claim(ctx context.Context, userID string, offerID snowflake.ID, sub Submission) (*ClaimResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
		zap.String("offer_id", offerID.String()),
	)

	if s.flags != nil && !s.flags.IsEnabled(ctx, ClaimsFeature) {
		return nil, errutil.Forbidden("reward claims are temporarily disabled", nil)
	}

	off, err := s.offers.FindOne(ctx, &offer.Offer{ID: offerID})
	if err != nil {
		zapLog.Error("failed to query offer", zap.Error(err))
		return nil, errutil.Internal("could not fetch offer", err)
	}
	if off == nil {
		return nil, errutil.NotFound("offer not found", nil)
	}
	if !off.Active || (off.ExpiresAt != nil && off.ExpiresAt.Before(time.Now())) {
		return nil, errutil.UnprocessableEntity("offer is no longer available", nil)
	}

	if err := sub.Validate(off.Kind); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Reward.ClaimTimeout)
	defer cancel()

	var result ClaimResult
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.processClaim(ctx, tx, userID, off, sub, &result)
	}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			zapLog.Warn("claim timed out, transaction rolled back")
			return nil, errutil.Timeout("claim took too long, nothing was credited", err)
		}
		zapLog.Error("failed to process claim", zap.Error(err))
		return nil, err
	}

	if result.AlreadyClaimed {
		zapLog.Info("duplicate claim ignored")
		return &result, nil
	}

	zapLog.Info("reward credited",
		zap.String("amount", result.Amount.StringFixed(2)),
		zap.String("transaction_code", result.TransactionCode),
	)

	s.enqueueReceipt(userID, off, &result)

	return &result, nil
}

func (s *Service) processClaim(ctx context.Context, tx *gorm.DB, userID string, off *offer.Offer, sub Submission, result *ClaimResult) error {
	profTx := s.profiles.WithTrx(tx)
	compTx := s.completions.WithTrx(tx)
	entryTx := s.entries.WithTrx(tx)

	prof, err := profTx.FindOne(ctx, &profile.Profile{UserID: userID}, option.WithLockingUpdate())
	if err != nil {
		return errutil.Internal("could not fetch user profile", err)
	}
	if prof == nil {
		prof = &profile.Profile{ID: s.node.Generate(), UserID: userID}
		if err := profTx.Create(ctx, prof); err != nil {
			return errutil.Internal("could not provision user profile", err)
		}
	}

	// pre-check is UX only; the unique index below is the real guard
	if existing, err := compTx.FindOne(ctx, &Completion{UserID: userID, OfferID: off.ID}); err != nil {
		return err
	} else if existing != nil {
		result.AlreadyClaimed = true
		result.Completion = existing
		result.NewBalance = prof.Balance
		return nil
	}

	comp := &Completion{
		ID:      s.node.Generate(),
		UserID:  userID,
		OfferID: off.ID,
		Amount:  off.RewardAmount,
	}
	if err := compTx.Create(ctx, comp); err != nil {
		if isUniqueViolation(err) {
			existing, ferr := compTx.FindOne(ctx, &Completion{UserID: userID, OfferID: off.ID})
			if ferr != nil {
				return ferr
			}
			result.AlreadyClaimed = true
			result.Completion = existing
			result.NewBalance = prof.Balance
			return nil
		}
		return errutil.Internal("could not record completion", err)
	}

	if err := profTx.Update(ctx, prof.ID.String(), map[string]any{
		"balance":        gorm.Expr("balance + ?", off.RewardAmount),
		"total_earnings": gorm.Expr("total_earnings + ?", off.RewardAmount),
		"updated_at":     time.Now(),
	}); err != nil {
		return errutil.Internal("could not update balance", err)
	}

	code, err := wallet.GenerateTransactionCode()
	if err != nil {
		return errutil.Internal("could not generate transaction code", err)
	}

	metadata, err := json.Marshal(sub)
	if err != nil {
		return errutil.Internal("could not encode submission", err)
	}

	offerID := off.ID
	entry := &wallet.TransactionEntry{
		ID:           s.node.Generate(),
		Code:         code,
		UserID:       userID,
		OfferID:      &offerID,
		Amount:       off.RewardAmount,
		CurrencyCode: s.config.Reward.CurrencyCode,
		Direction:    wallet.DirectionCredit,
		Status:       wallet.StatusApproved,
		Channel:      middleware.GetChannel(ctx),
		Description:  fmt.Sprintf("Reward: %s", off.Title),
		Metadata:     datatypes.JSON(metadata),
	}
	if err := entryTx.Create(ctx, entry); err != nil {
		return errutil.Internal("could not append transaction entry", err)
	}

	result.Completion = comp
	result.TransactionCode = code
	result.Amount = off.RewardAmount
	result.NewBalance = prof.Balance.Add(off.RewardAmount)
	return nil
}

// enqueueReceipt is best-effort: the claim already committed, a lost
// receipt notification must not fail it.
func (s *Service) enqueueReceipt(userID string, off *offer.Offer, result *ClaimResult) {
	if s.enqueuer == nil {
		return
	}

	payload, _ := json.Marshal(task.RewardReceiptPayload{
		UserID:          userID,
		OfferID:         off.ID.String(),
		TransactionCode: result.TransactionCode,
		Amount:          result.Amount.StringFixed(2),
		CurrencyCode:    s.config.Reward.CurrencyCode,
	})

	queue := s.config.Reward.ReceiptsQueue
	if queue == "" {
		queue = "low"
	}
	if _, err := s.enqueuer.Enqueue(asynq.NewTask(task.RewardReceiptTask, payload), asynq.Queue(queue)); err != nil {
		zap.L().Warn("failed to enqueue reward receipt",
			zap.String("user_id", userID),
			zap.String("transaction_code", result.TransactionCode),
			zap.Error(err),
		)
	}
}

// GetCompletion reports whether the user already claimed the offer.
func (s *Service) GetCompletion(ctx context.Context, userID string, offerID snowflake.ID) (*Completion, error) {
	found, err := s.completions.FindOne(ctx, &Completion{UserID: userID, OfferID: offerID})
	if err != nil {
		zap.L().Error("failed to query completion", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if found == nil {
		return nil, errutil.NotFound("no completion for this offer", nil)
	}

	return found, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
