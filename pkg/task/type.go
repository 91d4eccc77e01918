package task

const (
	RewardReceiptTask    = "reward:receipt"
	WithdrawalPayoutTask = "withdrawal:payout"
	OfferExpiryTask      = "offer:expiry"
)

// RewardReceiptPayload notifies the user that a reward has been credited.
type RewardReceiptPayload struct {
	UserID          string `json:"user_id"`
	OfferID         string `json:"offer_id"`
	TransactionCode string `json:"transaction_code"`
	Amount          string `json:"amount"`
	CurrencyCode    string `json:"currency_code"`
}

// WithdrawalPayoutPayload instructs the worker to settle an approved
// withdrawal request.
type WithdrawalPayoutPayload struct {
	RequestID string `json:"request_id"`
}

// OfferExpiryPayload scopes an expiry sweep to one offer kind.
type OfferExpiryPayload struct {
	Kind string `json:"kind"`
}
