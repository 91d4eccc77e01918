package reward

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Completion records a claimed reward once per (user, offer) pair. The
// composite unique index is the idempotency guard: a duplicate insert
// conflicts instead of double-crediting.
type Completion struct {
	ID        snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	UserID    string          `gorm:"column:user_id;not null;uniqueIndex:idx_completions_user_offer" json:"user_id"`
	OfferID   snowflake.ID    `gorm:"column:offer_id;not null;uniqueIndex:idx_completions_user_offer" json:"offer_id"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Completion) TableName() string {
	return "completions"
}
