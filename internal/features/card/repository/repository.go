package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"cardtool-backend/internal/features/card/models"
)

var (
	// ErrRPCMissing means the named stored procedure is not installed.
	ErrRPCMissing = errors.New("database function missing")
	// ErrInsufficientFunds is raised by the debit RPC on a failed balance check.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrCardNotFound means no matching card row exists.
	ErrCardNotFound = errors.New("card not found")
)

// CardRepository owns the cards table, the card_purchase_sagas table, and the
// card ledger stored procedures. Balance math stays in the database.
type CardRepository interface {
	InsertCard(ctx context.Context, card *models.Card) (int64, error)
	CurrentCard(ctx context.Context, userID int64) (*models.Card, error)
	CardByProviderID(ctx context.Context, providerCardID string) (*models.Card, error)
	SetCardStatus(ctx context.Context, cardID int64, status string) error
	ListByUser(ctx context.Context, userID int64) ([]*models.Card, error)

	InsertSaga(ctx context.Context, userID int64, amount decimal.Decimal) (int64, error)
	SetSagaState(ctx context.Context, sagaID int64, state string) error
	AttachSagaProvider(ctx context.Context, sagaID int64, cardholderID, cardID string) error
	// StuckSagas returns sagas sitting in issuing or refund_pending since
	// before the cutoff, oldest first.
	StuckSagas(ctx context.Context, olderThan time.Time, limit int) ([]*models.PurchaseSaga, error)

	DeductBalanceForCard(ctx context.Context, userID int64, amount decimal.Decimal) error
	RefundCardPurchase(ctx context.Context, userID int64, amount decimal.Decimal) error
	CheckCardBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
	RecordCardTransaction(ctx context.Context, userID int64, amount decimal.Decimal, providerTxID string) error
}
