package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Card statuses as stored in cards.status. Blocked is terminal and only ever
// set out-of-band; freeze/unfreeze moves between active and frozen.
const (
	CardStatusActive  = "active"
	CardStatusFrozen  = "frozen"
	CardStatusBlocked = "blocked"
)

// Purchase saga states. The happy path is debited -> issuing -> issued; a
// provider failure after the debit goes debited/issuing -> refund_pending ->
// refunded. A saga stays refund_pending until the refund lands, so every
// failed refund remains visible to the reconciler sweep.
const (
	SagaDebited       = "debited"
	SagaIssuing       = "issuing"
	SagaIssued        = "issued"
	SagaRefundPending = "refund_pending"
	SagaRefunded      = "refunded"
)

type Card struct {
	ID                   int64     `json:"id"`
	UserID               int64     `json:"-"`
	ProviderCardID       string    `json:"-"`
	ProviderCardholderID string    `json:"-"`
	Status               string    `json:"status"`
	Last4                string    `json:"last4"`
	Brand                string    `json:"brand"`
	CreatedAt            time.Time `json:"created_at"`
}

// Spendable reports whether the card may authorize new spend.
func (c *Card) Spendable() bool {
	return c.Status == CardStatusActive
}

// PurchaseSaga is a row of card_purchase_sagas. The amount is what was
// debited; compensation must refund exactly that amount to the same user.
type PurchaseSaga struct {
	ID                   int64
	UserID               int64
	AmountUSDT           decimal.Decimal
	State                string
	ProviderCardholderID string
	ProviderCardID       string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Details carries the sensitive PAN data fetched from the issuer on demand.
// Never persisted, never cached.
type Details struct {
	Number   string `json:"number"`
	CVC      string `json:"cvc"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
	Last4    string `json:"last4"`
}
