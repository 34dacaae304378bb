package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction statuses. Transitions are pending→completed or
// pending→rejected, never reversed; completion fires the database trigger
// that moves the wallet balance. This code only ever flips status.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// Transaction types.
const (
	TypeTopup          = "topup"
	TypeWithdrawal     = "withdrawal"
	TypeTransferIn     = "transfer_in"
	TypeTransferOut    = "transfer_out"
	TypeCardPurchase   = "card_purchase"
	TypeCardSpend      = "card_spend"
	TypeReferralReward = "referral_reward"
)

// Transaction is a row of the transactions table. AmountUSDT is signed:
// credits positive, debits negative.
type Transaction struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Type       string          `json:"type"`
	AmountUSDT decimal.Decimal `json:"amount_usdt"`
	Status     string          `json:"status"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ReferralStats summarizes a user's referral standing.
type ReferralStats struct {
	Code            string          `json:"code"`
	InvitedCount    int             `json:"invited_count"`
	ClaimableUSDT   decimal.Decimal `json:"claimable_usdt"`
	TotalEarnedUSDT decimal.Decimal `json:"total_earned_usdt"`
}
