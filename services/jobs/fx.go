package jobs

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"affiliatehub/pkg/task"
)

var Module = fx.Module("jobs",
	fx.Provide(NewService),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(task.RewardReceiptTask, svc.HandleRewardReceipt)
	mux.HandleFunc(task.WithdrawalPayoutTask, svc.HandleWithdrawalPayout)
	mux.HandleFunc(task.OfferExpiryTask, svc.HandleOfferExpiry)
}
