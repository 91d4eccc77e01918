package wallet

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusReversed Status = "reversed"
)

// TransactionEntry is the append-only record of every balance
// movement. Metadata carries the validated submission for reward
// credits and the payout destination for withdrawals.
type TransactionEntry struct {
	ID           snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Code         string          `gorm:"column:code;uniqueIndex;not null" json:"code"`
	UserID       string          `gorm:"column:user_id;index;not null" json:"user_id"`
	OfferID      *snowflake.ID   `gorm:"column:offer_id;index" json:"offer_id,omitempty"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	CurrencyCode string          `gorm:"column:currency_code;type:varchar(3);default:'USD'" json:"currency_code"`
	Direction    Direction       `gorm:"column:direction;type:varchar(10);not null" json:"direction"`
	Status       Status          `gorm:"column:status;type:varchar(10);not null" json:"status"`
	Channel      string          `gorm:"column:channel" json:"channel"`
	Description  string          `gorm:"column:description;type:text" json:"description"`
	Metadata     datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TransactionEntry) TableName() string {
	return "transaction_entries"
}

// GenerateTransactionCode builds a date-scoped code with a random
// suffix, e.g. TXN-20260830-4F21A9.
func GenerateTransactionCode() (string, error) {
	datePart := time.Now().Format("20060102")

	r := make([]byte, 3)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}
	randomPart := strings.ToUpper(fmt.Sprintf("%x", r))

	return fmt.Sprintf("TXN-%s-%s", datePart, randomPart), nil
}
