package offer

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind decides which submission fields a claim must carry.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

func (k Kind) String() string {
	return string(k)
}

// Offer is a promoted micro-task with a fixed reward. Read-only from
// the reward flow's perspective.
type Offer struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Title        string          `gorm:"column:title;not null" json:"title"`
	Prompt       string          `gorm:"column:prompt;type:text" json:"prompt"`
	MediaURL     string          `gorm:"column:media_url" json:"media_url"`
	Kind         Kind            `gorm:"column:kind;type:varchar(10);not null;index" json:"kind"`
	RewardAmount decimal.Decimal `gorm:"column:reward_amount;type:numeric(12,2);not null" json:"reward_amount"`
	CurrencyCode string          `gorm:"column:currency_code;type:varchar(3);default:'USD'" json:"currency_code"`
	Active       bool            `gorm:"column:active;index" json:"active"`
	ExpiresAt    *time.Time      `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Offer) TableName() string {
	return "offers"
}
