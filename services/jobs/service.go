package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"affiliatehub/pkg/task"
	"affiliatehub/services/offer"
	"affiliatehub/services/withdrawal"
)

// Service carries the asynq handlers the worker binary serves.
type Service struct {
	offers      *offer.Service
	withdrawals *withdrawal.Service
}

type ServiceParams struct {
	fx.In
	Offers      *offer.Service
	Withdrawals *withdrawal.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		offers:      p.Offers,
		withdrawals: p.Withdrawals,
	}
}

// HandleRewardReceipt delivers the post-claim notification. Delivery
// is log-based until an outbound channel exists; the claim itself
// committed before this task was queued.
func (s *Service) HandleRewardReceipt(ctx context.Context, t *asynq.Task) error {
	var payload task.RewardReceiptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to decode receipt payload: %w", err)
	}

	zap.L().Info("reward receipt issued",
		zap.String("user_id", payload.UserID),
		zap.String("offer_id", payload.OfferID),
		zap.String("transaction_code", payload.TransactionCode),
		zap.String("amount", payload.Amount),
		zap.String("currency_code", payload.CurrencyCode),
	)
	return nil
}

// HandleWithdrawalPayout finalizes an approved request. Retried by
// asynq on error; MarkPaid refuses double settlement.
func (s *Service) HandleWithdrawalPayout(ctx context.Context, t *asynq.Task) error {
	var payload task.WithdrawalPayoutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to decode payout payload: %w", err)
	}

	requestID, err := snowflake.ParseString(payload.RequestID)
	if err != nil {
		return fmt.Errorf("invalid request id %q: %w", payload.RequestID, err)
	}

	if _, err := s.withdrawals.MarkPaid(ctx, requestID); err != nil {
		return fmt.Errorf("failed to settle withdrawal %s: %w", payload.RequestID, err)
	}
	return nil
}

// HandleOfferExpiry sweeps expired offers, one goroutine per kind.
func (s *Service) HandleOfferExpiry(ctx context.Context, t *asynq.Task) error {
	var payload task.OfferExpiryPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to decode expiry payload: %w", err)
		}
	}

	kinds := []offer.Kind{offer.KindAudio, offer.KindVideo}
	if payload.Kind != "" {
		kinds = []offer.Kind{offer.Kind(payload.Kind)}
	}

	now := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			_, err := s.offers.DeactivateExpired(ctx, kind, now)
			return err
		})
	}
	return g.Wait()
}
