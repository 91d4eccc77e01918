package withdrawal

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodPaypal       Method = "paypal"
	MethodBankTransfer Method = "bank_transfer"
	MethodCrypto       Method = "crypto"
)

func (m Method) Valid() bool {
	return m == MethodPaypal || m == MethodBankTransfer || m == MethodCrypto
}

// Status follows the request lifecycle: pending to approved to paid,
// or pending to rejected. Transitions are enforced by status-guarded
// updates in the service, never by rewriting the row blindly.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// Request is a user's ask to cash out part of their balance. The funds
// are debited up front; a rejection refunds them and reverses the
// linked transaction entry.
type Request struct {
	ID              snowflake.ID    `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Code            string          `gorm:"column:code;uniqueIndex;not null" json:"code"`
	UserID          string          `gorm:"column:user_id;index;not null" json:"user_id"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	CurrencyCode    string          `gorm:"column:currency_code;type:varchar(3);default:'USD'" json:"currency_code"`
	Method          Method          `gorm:"column:method;type:varchar(20);not null" json:"method"`
	Destination     string          `gorm:"column:destination;not null" json:"destination"`
	Status          Status          `gorm:"column:status;type:varchar(10);index;not null" json:"status"`
	Note            string          `gorm:"column:note;type:text" json:"note,omitempty"`
	TransactionCode string          `gorm:"column:transaction_code;index" json:"transaction_code"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	ReviewedAt      *time.Time      `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	PaidAt          *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
}

func (Request) TableName() string {
	return "withdrawal_requests"
}
