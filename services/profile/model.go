package profile

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Profile is the per-user account record. Balance and TotalEarnings are
// only ever mutated inside reward and withdrawal transactions.
type Profile struct {
	ID            snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	UserID        string          `gorm:"column:user_id;uniqueIndex;not null" json:"user_id"`
	DisplayName   string          `gorm:"column:display_name" json:"display_name"`
	Email         string          `gorm:"column:email" json:"email"`
	Balance       decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0" json:"balance"`
	TotalEarnings decimal.Decimal `gorm:"column:total_earnings;type:numeric(14,2);not null;default:0" json:"total_earnings"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
