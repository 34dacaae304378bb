package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"cardtool-backend/internal/features/wallet/models"
)

var (
	// ErrRPCMissing means the named stored procedure is not installed.
	ErrRPCMissing = errors.New("database function missing")
	// ErrInsufficientFunds is raised by ledger RPCs on a failed balance check.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRecipientNotFound is raised by the transfer RPC.
	ErrRecipientNotFound = errors.New("recipient not found")
)

// WalletRepository fronts the ledger stored procedures. Every balance
// mutation is an RPC: this process never reads-then-writes a balance, so
// atomicity lives entirely in the database.
type WalletRepository interface {
	CreateTopup(ctx context.Context, userID int64, amount decimal.Decimal, method, orderID string) (int64, error)
	CompleteTopupByOrderID(ctx context.Context, orderID string) (bool, error)
	RejectTopupByOrderID(ctx context.Context, orderID string) (bool, error)

	CreateInternalTransfer(ctx context.Context, fromID int64, toUsername string, amount decimal.Decimal) (int64, error)
	CreateWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, address string) (int64, error)

	SetInviter(ctx context.Context, userID int64, referralCode string) error
	ClaimReferralRewards(ctx context.Context, userID int64) (decimal.Decimal, error)
	ReferralStats(ctx context.Context, userID int64) (*models.ReferralStats, error)

	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)

	PendingWithdrawals(ctx context.Context) ([]*models.Transaction, error)
	// ReviewWithdrawal resolves a pending withdrawal through the
	// admin_review_withdrawal RPC, which auto-rejects when the balance no
	// longer covers the amount. Returns the resulting status.
	ReviewWithdrawal(ctx context.Context, txID int64, approve bool, adminID int64) (string, error)
}
