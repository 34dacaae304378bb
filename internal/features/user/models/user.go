package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verification statuses as stored in users.verification_status.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationApproved   = "approved"
	VerificationRejected   = "rejected"
)

// User is a row of the users table joined with the wallet balance.
type User struct {
	TelegramID         int64           `json:"telegram_id"`
	Username           string          `json:"username,omitempty"`
	FirstName          string          `json:"first_name,omitempty"`
	LastName           string          `json:"last_name,omitempty"`
	PhotoURL           string          `json:"photo_url,omitempty"`
	Role               string          `json:"role"`
	VerificationStatus string          `json:"verification_status"`
	VerifiedAt         *time.Time      `json:"verified_at,omitempty"`
	ReferralCode       string          `json:"referral_code,omitempty"`
	BalanceUSDT        decimal.Decimal `json:"balance_usdt"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsApproved reports whether the user passed KYC.
func (u *User) IsApproved() bool {
	return u.VerificationStatus == VerificationApproved
}
